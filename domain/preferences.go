package domain

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is how often a user wants notifications of a category delivered.
type Frequency string

const (
	FrequencyInstant Frequency = "instant"
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyInstant, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// IsDigest reports whether flushed groups wait for a digest run.
func (f Frequency) IsDigest() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// Cadences lists the digest schedules in run order.
var Cadences = []Frequency{FrequencyHourly, FrequencyDaily, FrequencyWeekly}

// ParseCadence validates a digest cadence name.
func ParseCadence(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return f, nil
	}
	return "", WrapError(ErrCodeInvalid, ErrInvalidCadence.Message, fmt.Errorf("unknown cadence %q", s))
}

const (
	DefaultDigestTime = "09:00"
	DefaultDigestDay  = time.Monday
)

// QuietHours is a daily local-time window during which non-urgent deliveries wait.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone,omitempty"`
}

// Active reports whether now falls inside the window. Windows may wrap past
// midnight; an unparseable window is never active.
func (q *QuietHours) Active(now time.Time) bool {
	if q == nil || !q.Enabled {
		return false
	}
	start, err := ParseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(q.End)
	if err != nil || start == end {
		return false
	}
	loc := time.UTC
	if q.Timezone != "" {
		if l, err := time.LoadLocation(q.Timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func (q *QuietHours) Validate() error {
	if q == nil {
		return nil
	}
	if _, err := ParseClock(q.Start); err != nil {
		return err
	}
	if _, err := ParseClock(q.End); err != nil {
		return err
	}
	if q.Timezone != "" {
		if _, err := time.LoadLocation(q.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", q.Timezone, err)
		}
	}
	return nil
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// UserAggregationPreferences holds one user's batching choices.
type UserAggregationPreferences struct {
	UserID              string               `json:"user_id"`
	Enabled             bool                 `json:"enabled"`
	DefaultFrequency    Frequency            `json:"default_frequency"`
	CategoryFrequencies map[string]Frequency `json:"category_frequencies,omitempty"`
	QuietHours          *QuietHours          `json:"quiet_hours,omitempty"`
	DigestTime          string               `json:"digest_time"`
	DigestDay           time.Weekday         `json:"digest_day"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// DefaultPreferences returns the settings a user gets before changing anything.
func DefaultPreferences(userID string, frequency Frequency) *UserAggregationPreferences {
	if !frequency.Valid() {
		frequency = FrequencyHourly
	}
	return &UserAggregationPreferences{
		UserID:              userID,
		Enabled:             true,
		DefaultFrequency:    frequency,
		CategoryFrequencies: map[string]Frequency{},
		DigestTime:          DefaultDigestTime,
		DigestDay:           DefaultDigestDay,
	}
}

// FrequencyFor resolves the category override, falling back to the default.
func (p *UserAggregationPreferences) FrequencyFor(category string) Frequency {
	if p == nil {
		return FrequencyHourly
	}
	if f, ok := p.CategoryFrequencies[category]; ok && f.Valid() {
		return f
	}
	if p.DefaultFrequency.Valid() {
		return p.DefaultFrequency
	}
	return FrequencyHourly
}

// InQuietHours reports whether non-urgent delivery should wait at now.
func (p *UserAggregationPreferences) InQuietHours(now time.Time) bool {
	return p != nil && p.QuietHours.Active(now)
}

func (p *UserAggregationPreferences) Validate() error {
	if p == nil || strings.TrimSpace(p.UserID) == "" {
		return ErrInvalidPreferences
	}
	if !p.DefaultFrequency.Valid() {
		return WrapError(ErrCodeInvalid, ErrInvalidPreferences.Message, fmt.Errorf("unknown frequency %q", p.DefaultFrequency))
	}
	for category, f := range p.CategoryFrequencies {
		if !f.Valid() {
			return WrapError(ErrCodeInvalid, ErrInvalidPreferences.Message, fmt.Errorf("unknown frequency %q for %s", f, category))
		}
	}
	if p.DigestTime != "" {
		if _, err := ParseClock(p.DigestTime); err != nil {
			return WrapError(ErrCodeInvalid, ErrInvalidPreferences.Message, err)
		}
	}
	if p.DigestDay < time.Sunday || p.DigestDay > time.Saturday {
		return WrapError(ErrCodeInvalid, ErrInvalidPreferences.Message, fmt.Errorf("invalid digest day %d", p.DigestDay))
	}
	if err := p.QuietHours.Validate(); err != nil {
		return WrapError(ErrCodeInvalid, ErrInvalidPreferences.Message, err)
	}
	return nil
}
