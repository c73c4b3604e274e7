package domain

// ImmediateReason explains why an event skipped aggregation.
type ImmediateReason string

const (
	ReasonUrgent   ImmediateReason = "urgent"
	ReasonDisabled ImmediateReason = "aggregation_disabled"
	ReasonInstant  ImmediateReason = "instant_frequency"
	ReasonNoRule   ImmediateReason = "no_matching_rule"
)

// IntakeResult tells the producer what happened to an event.
type IntakeResult struct {
	Immediate bool            `json:"immediate"`
	GroupKey  string          `json:"group_key,omitempty"`
	Reason    ImmediateReason `json:"reason,omitempty"`
}

// AggregationStats is the operational view of one user's pending work.
type AggregationStats struct {
	UserID             string `json:"user_id"`
	PendingCount       int    `json:"pending_count"`
	GroupsCount        int    `json:"groups_count"`
	DigestPendingCount int    `json:"digest_pending_count"`
}
