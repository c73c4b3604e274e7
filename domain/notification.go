package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/notifyagg/pkg/fieldpath"
)

// Priority ranks how urgently a notification must reach the user.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Actor is whoever caused a notification (a user, a bot, the system).
type Actor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Target is the object a notification is about.
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// NotificationEvent is a single fact to be delivered to one user.
type NotificationEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Category  string         `json:"category"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Priority  Priority       `json:"priority"`
	Actors    []Actor        `json:"actors,omitempty"`
	Target    *Target        `json:"target,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	GroupKey  string         `json:"group_key,omitempty"`
}

// Normalize fills optional fields that producers commonly leave empty.
func (e *NotificationEvent) Normalize(now time.Time) {
	if e == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if !e.Priority.Valid() {
		e.Priority = PriorityNormal
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
}

func (e *NotificationEvent) IsUrgent() bool {
	return e != nil && e.Priority == PriorityUrgent
}

// Value exposes the event to field-path lookups. Keys follow the JSON names.
func (e *NotificationEvent) Value() fieldpath.Value {
	if e == nil {
		return fieldpath.Absent
	}
	actors := make([]fieldpath.Value, len(e.Actors))
	for i, a := range e.Actors {
		actors[i] = a.value()
	}
	fields := map[string]fieldpath.Value{
		"id":         fieldpath.String(e.ID),
		"user_id":    fieldpath.String(e.UserID),
		"type":       fieldpath.String(e.Type),
		"category":   fieldpath.String(e.Category),
		"title":      fieldpath.String(e.Title),
		"body":       fieldpath.String(e.Body),
		"priority":   fieldpath.String(string(e.Priority)),
		"actors":     fieldpath.List(actors...),
		"created_at": fieldpath.FromAny(e.CreatedAt),
	}
	if e.Target != nil {
		fields["target"] = e.Target.value()
	}
	if e.Data != nil {
		fields["data"] = fieldpath.FromAny(e.Data)
	}
	return fieldpath.Map(fields)
}

func (a Actor) value() fieldpath.Value {
	fields := map[string]fieldpath.Value{
		"id":   fieldpath.String(a.ID),
		"name": fieldpath.String(a.Name),
	}
	if a.Avatar != "" {
		fields["avatar"] = fieldpath.String(a.Avatar)
	}
	if a.Type != "" {
		fields["type"] = fieldpath.String(a.Type)
	}
	return fieldpath.Map(fields)
}

func (t *Target) value() fieldpath.Value {
	fields := map[string]fieldpath.Value{
		"id":   fieldpath.String(t.ID),
		"type": fieldpath.String(t.Type),
	}
	if t.Name != "" {
		fields["name"] = fieldpath.String(t.Name)
	}
	if t.URL != "" {
		fields["url"] = fieldpath.String(t.URL)
	}
	return fieldpath.Map(fields)
}
