package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/repository"
)

type preferencesRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewPreferencesRepository creates a Redis-backed preferences repository.
// A zero ttl keeps entries forever.
func NewPreferencesRepository(client *redislib.Client, ttl time.Duration) repository.PreferencesRepository {
	return &preferencesRepository{
		client: client,
		prefix: "aggregation:prefs:",
		ttl:    ttl,
	}
}

func (r *preferencesRepository) Get(ctx context.Context, userID string) (*domain.UserAggregationPreferences, error) {
	result, err := r.client.Get(ctx, r.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrPreferencesNotFound
		}
		return nil, err
	}

	return decodePreferences([]byte(result))
}

func (r *preferencesRepository) Save(ctx context.Context, prefs *domain.UserAggregationPreferences) error {
	if prefs == nil || prefs.UserID == "" {
		return domain.ErrInvalidPayload
	}
	if prefs.UpdatedAt.IsZero() {
		prefs.UpdatedAt = time.Now()
	}

	payload, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(prefs.UserID), payload, r.ttl).Err()
}

func decodePreferences(raw []byte) (*domain.UserAggregationPreferences, error) {
	var prefs domain.UserAggregationPreferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	if prefs.UserID == "" {
		return nil, fmt.Errorf("decode preferences: missing user_id")
	}
	if prefs.CategoryFrequencies == nil {
		prefs.CategoryFrequencies = map[string]domain.Frequency{}
	}
	return &prefs, nil
}

func (r *preferencesRepository) key(userID string) string {
	return fmt.Sprintf("%s%s", r.prefix, userID)
}
