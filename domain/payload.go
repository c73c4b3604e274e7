package domain

import "time"

// PayloadKind identifies the shape handed to a NotificationSink.
type PayloadKind string

const (
	PayloadSingle     PayloadKind = "single"
	PayloadAggregated PayloadKind = "aggregated"
	PayloadDigest     PayloadKind = "digest"
)

// Payload is a fully formed delivery. Rendering for a concrete channel is the
// sink's concern.
type Payload interface {
	Kind() PayloadKind
	Recipient() string
}

// SinglePayload carries one notification that bypassed aggregation.
type SinglePayload struct {
	UserID       string            `json:"user_id"`
	Reason       ImmediateReason   `json:"reason"`
	Notification NotificationEvent `json:"notification"`
}

func (p *SinglePayload) Kind() PayloadKind { return PayloadSingle }
func (p *SinglePayload) Recipient() string { return p.UserID }

// AggregatedPayload carries a flushed group.
type AggregatedPayload struct {
	UserID          string    `json:"user_id"`
	GroupKey        string    `json:"group_key"`
	Category        string    `json:"category"`
	Type            string    `json:"type"`
	Summary         string    `json:"summary"`
	Body            string    `json:"body"`
	Count           int       `json:"count"`
	Actors          []Actor   `json:"actors"`
	Target          *Target   `json:"target,omitempty"`
	NotificationIDs []string  `json:"notification_ids"`
	FirstAt         time.Time `json:"first_at"`
	LastAt          time.Time `json:"last_at"`
}

func (p *AggregatedPayload) Kind() PayloadKind { return PayloadAggregated }
func (p *AggregatedPayload) Recipient() string { return p.UserID }

// DigestPayload carries a rendered digest for one user and cadence.
type DigestPayload struct {
	UserID     string    `json:"user_id"`
	Cadence    Frequency `json:"cadence"`
	Subject    string    `json:"subject"`
	HTMLBody   string    `json:"html_body"`
	TextBody   string    `json:"text_body"`
	TotalCount int       `json:"total_count"`
}

func (p *DigestPayload) Kind() PayloadKind { return PayloadDigest }
func (p *DigestPayload) Recipient() string { return p.UserID }
