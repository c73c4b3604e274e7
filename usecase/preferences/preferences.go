package preferences

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/repository"
)

// UseCase reads and updates aggregation preferences. A user without stored
// preferences gets defaults, which are persisted on first read.
type UseCase struct {
	repo             repository.PreferencesRepository
	defaultFrequency domain.Frequency
	logger           *zap.Logger
	now              func() time.Time
}

func New(repo repository.PreferencesRepository, defaultFrequency domain.Frequency, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !defaultFrequency.Valid() {
		defaultFrequency = domain.FrequencyHourly
	}
	return &UseCase{
		repo:             repo,
		defaultFrequency: defaultFrequency,
		logger:           logger,
		now:              time.Now,
	}
}

func (uc *UseCase) Get(ctx context.Context, userID string) (*domain.UserAggregationPreferences, error) {
	if userID == "" {
		return nil, domain.ErrInvalidPreferences
	}
	prefs, err := uc.repo.Get(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, domain.ErrPreferencesNotFound) {
		return nil, err
	}

	prefs = domain.DefaultPreferences(userID, uc.defaultFrequency)
	prefs.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Save(ctx, prefs); err != nil {
		uc.logger.Warn("failed to persist default preferences", zap.String("user_id", userID), zap.Error(err))
	}
	return prefs, nil
}

func (uc *UseCase) Update(ctx context.Context, prefs *domain.UserAggregationPreferences) (*domain.UserAggregationPreferences, error) {
	if prefs == nil {
		return nil, domain.ErrInvalidPreferences
	}
	if prefs.DigestTime == "" {
		prefs.DigestTime = domain.DefaultDigestTime
	}
	if prefs.CategoryFrequencies == nil {
		prefs.CategoryFrequencies = map[string]domain.Frequency{}
	}
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	prefs.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Save(ctx, prefs); err != nil {
		return nil, err
	}
	uc.logger.Info("aggregation preferences updated",
		zap.String("user_id", prefs.UserID),
		zap.String("default_frequency", string(prefs.DefaultFrequency)),
		zap.Bool("enabled", prefs.Enabled))
	return prefs, nil
}
