package domain

import "time"

// AggregationRule describes how notifications of one category (and optionally
// one type) are batched. Rules are registered at startup and never change.
type AggregationRule struct {
	ID                string   `json:"id" yaml:"id" validate:"required"`
	Category          string   `json:"category" yaml:"category" validate:"required"`
	Type              string   `json:"type,omitempty" yaml:"type,omitempty"`
	GroupBy           []string `json:"group_by,omitempty" yaml:"group_by,omitempty" validate:"dive,required"`
	WindowMinutes     int      `json:"window_minutes" yaml:"window_minutes" validate:"gt=0"`
	MaxBatchSize      int      `json:"max_batch_size" yaml:"max_batch_size" validate:"gt=0"`
	SummaryTemplate   string   `json:"summary_template,omitempty" yaml:"summary_template,omitempty"`
	CollapseThreshold int      `json:"collapse_threshold,omitempty" yaml:"collapse_threshold,omitempty" validate:"gte=0"`
	Priority          int      `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Matches reports whether the rule applies to the event: same category, and
// either no type restriction or the same type.
func (r *AggregationRule) Matches(e *NotificationEvent) bool {
	if r == nil || e == nil {
		return false
	}
	if r.Category != e.Category {
		return false
	}
	return r.Type == "" || r.Type == e.Type
}

// Window is the flush delay measured from the first grouped notification.
func (r *AggregationRule) Window() time.Duration {
	if r == nil {
		return 0
	}
	return time.Duration(r.WindowMinutes) * time.Minute
}
