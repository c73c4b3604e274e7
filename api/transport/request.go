package transport

import (
	"time"

	"github.com/fastygo/notifyagg/domain"
)

type ActorRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" validate:"required"`
	Avatar string `json:"avatar,omitempty" validate:"omitempty,url"`
	Type   string `json:"type,omitempty"`
}

type TargetRequest struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty" validate:"omitempty,url"`
}

// NotificationRequest is the intake body for POST /api/v1/notifications.
type NotificationRequest struct {
	ID        string         `json:"id,omitempty"`
	UserID    string         `json:"user_id" validate:"required"`
	Type      string         `json:"type" validate:"required"`
	Category  string         `json:"category" validate:"required"`
	Title     string         `json:"title" validate:"required"`
	Body      string         `json:"body,omitempty"`
	Priority  string         `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	Actors    []ActorRequest `json:"actors,omitempty" validate:"omitempty,dive"`
	Target    *TargetRequest `json:"target,omitempty" validate:"omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

func (r NotificationRequest) Event() domain.NotificationEvent {
	event := domain.NotificationEvent{
		ID:       r.ID,
		UserID:   r.UserID,
		Type:     r.Type,
		Category: r.Category,
		Title:    r.Title,
		Body:     r.Body,
		Priority: domain.Priority(r.Priority),
		Data:     r.Data,
	}
	for _, a := range r.Actors {
		event.Actors = append(event.Actors, domain.Actor{ID: a.ID, Name: a.Name, Avatar: a.Avatar, Type: a.Type})
	}
	if r.Target != nil {
		event.Target = &domain.Target{ID: r.Target.ID, Type: r.Target.Type, Name: r.Target.Name, URL: r.Target.URL}
	}
	if r.CreatedAt != nil {
		event.CreatedAt = *r.CreatedAt
	}
	return event
}

type QuietHoursRequest struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start" validate:"required_if=Enabled true"`
	End      string `json:"end" validate:"required_if=Enabled true"`
	Timezone string `json:"timezone,omitempty"`
}

// PreferencesRequest is the body for PUT /api/v1/preferences/{userId}.
type PreferencesRequest struct {
	Enabled             *bool              `json:"enabled" validate:"required"`
	DefaultFrequency    string             `json:"default_frequency" validate:"required,oneof=instant hourly daily weekly"`
	CategoryFrequencies map[string]string  `json:"category_frequencies,omitempty" validate:"omitempty,dive,keys,required,endkeys,oneof=instant hourly daily weekly"`
	QuietHours          *QuietHoursRequest `json:"quiet_hours,omitempty"`
	DigestTime          string             `json:"digest_time,omitempty"`
	DigestDay           *int               `json:"digest_day,omitempty" validate:"omitempty,gte=0,lte=6"`
}

func (r PreferencesRequest) Preferences(userID string) *domain.UserAggregationPreferences {
	prefs := &domain.UserAggregationPreferences{
		UserID:              userID,
		Enabled:             r.Enabled != nil && *r.Enabled,
		DefaultFrequency:    domain.Frequency(r.DefaultFrequency),
		CategoryFrequencies: make(map[string]domain.Frequency, len(r.CategoryFrequencies)),
		DigestTime:          r.DigestTime,
		DigestDay:           domain.DefaultDigestDay,
	}
	for category, f := range r.CategoryFrequencies {
		prefs.CategoryFrequencies[category] = domain.Frequency(f)
	}
	if r.QuietHours != nil {
		prefs.QuietHours = &domain.QuietHours{
			Enabled:  r.QuietHours.Enabled,
			Start:    r.QuietHours.Start,
			End:      r.QuietHours.End,
			Timezone: r.QuietHours.Timezone,
		}
	}
	if r.DigestDay != nil {
		prefs.DigestDay = time.Weekday(*r.DigestDay)
	}
	return prefs
}
