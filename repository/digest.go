package repository

import (
	"context"

	"github.com/fastygo/notifyagg/domain"
)

// DigestRepository holds flushed groups waiting for a digest run, keyed by
// (user, cadence). Remove deletes only the named groups so anything appended
// after a Load survives the clear.
type DigestRepository interface {
	Append(ctx context.Context, cadence domain.Frequency, group domain.AggregationGroup) error
	Load(ctx context.Context, userID string, cadence domain.Frequency) (*domain.DigestEntry, error)
	Remove(ctx context.Context, userID string, cadence domain.Frequency, groupIDs []string) error
	Users(ctx context.Context, cadence domain.Frequency) ([]string, error)
	PendingCount(ctx context.Context, userID string) (int, error)
}
