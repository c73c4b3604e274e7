package usecase

import (
	"context"
	"time"

	"github.com/fastygo/notifyagg/domain"
)

// NotificationSink is the delivery boundary (push, email, SMS). Rendering for
// a concrete channel happens behind it.
type NotificationSink interface {
	Dispatch(ctx context.Context, payload domain.Payload) error
}

// WindowScheduler runs fn once after delay. Scheduling a key that already has
// a pending timer replaces that timer.
type WindowScheduler interface {
	ScheduleOnce(key string, delay time.Duration, fn func())
}

// PreferencesProvider returns a user's aggregation settings, creating
// defaults on first access.
type PreferencesProvider interface {
	Get(ctx context.Context, userID string) (*domain.UserAggregationPreferences, error)
}

// Metrics receives aggregation events for operational visibility.
type Metrics interface {
	IntakeObserved(outcome string)
	FlushObserved(outcome string)
	ActiveGroups(n int)
	DispatchObserved(kind domain.PayloadKind, err error)
	DigestRunObserved(cadence domain.Frequency, delivered, skipped, failed int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) IntakeObserved(string)                              {}
func (NopMetrics) FlushObserved(string)                               {}
func (NopMetrics) ActiveGroups(int)                                   {}
func (NopMetrics) DispatchObserved(domain.PayloadKind, error)         {}
func (NopMetrics) DigestRunObserved(domain.Frequency, int, int, int) {}
