package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/repository"
)

type preferencesRepository struct {
	pool *pgxpool.Pool
}

// NewPreferencesRepository instantiates a Postgres-backed preferences repository.
func NewPreferencesRepository(pool *pgxpool.Pool) repository.PreferencesRepository {
	return &preferencesRepository{pool: pool}
}

func (r *preferencesRepository) Get(ctx context.Context, userID string) (*domain.UserAggregationPreferences, error) {
	const query = `
		SELECT user_id, enabled, default_frequency, category_frequencies, quiet_hours, digest_time, digest_day, updated_at
		FROM aggregation_preferences
		WHERE user_id = $1
	`
	row := r.pool.QueryRow(ctx, query, userID)

	var (
		prefs       domain.UserAggregationPreferences
		frequency   string
		frequencies []byte
		quietHours  []byte
		digestDay   int
	)
	if err := row.Scan(
		&prefs.UserID,
		&prefs.Enabled,
		&frequency,
		&frequencies,
		&quietHours,
		&prefs.DigestTime,
		&digestDay,
		&prefs.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPreferencesNotFound
		}
		return nil, err
	}

	prefs.DefaultFrequency = domain.Frequency(frequency)
	prefs.DigestDay = time.Weekday(digestDay)
	var err error
	if prefs.CategoryFrequencies, err = unmarshalFrequencies(frequencies); err != nil {
		return nil, fmt.Errorf("decode category_frequencies for %s: %w", userID, err)
	}
	if prefs.QuietHours, err = unmarshalQuietHours(quietHours); err != nil {
		return nil, fmt.Errorf("decode quiet_hours for %s: %w", userID, err)
	}

	return &prefs, nil
}

func (r *preferencesRepository) Save(ctx context.Context, prefs *domain.UserAggregationPreferences) error {
	if prefs == nil || prefs.UserID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO aggregation_preferences (user_id, enabled, default_frequency, category_frequencies, quiet_hours, digest_time, digest_day, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
	ON CONFLICT (user_id) DO UPDATE
	SET enabled = EXCLUDED.enabled,
		default_frequency = EXCLUDED.default_frequency,
		category_frequencies = EXCLUDED.category_frequencies,
		quiet_hours = EXCLUDED.quiet_hours,
		digest_time = EXCLUDED.digest_time,
		digest_day = EXCLUDED.digest_day,
		updated_at = NOW()
	RETURNING updated_at;
	`

	return r.pool.QueryRow(ctx, query,
		prefs.UserID,
		prefs.Enabled,
		string(prefs.DefaultFrequency),
		marshalFrequencies(prefs.CategoryFrequencies),
		marshalQuietHours(prefs.QuietHours),
		prefs.DigestTime,
		int(prefs.DigestDay),
		nullTime(prefs.UpdatedAt),
	).Scan(&prefs.UpdatedAt)
}
