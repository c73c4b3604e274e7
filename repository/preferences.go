package repository

import (
	"context"

	"github.com/fastygo/notifyagg/domain"
)

// PreferencesRepository persists per-user aggregation settings. Get returns
// domain.ErrPreferencesNotFound when nothing is stored for the user.
type PreferencesRepository interface {
	Get(ctx context.Context, userID string) (*domain.UserAggregationPreferences, error)
	Save(ctx context.Context, prefs *domain.UserAggregationPreferences) error
}
