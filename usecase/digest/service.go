package digest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/pkg/keylock"
	"github.com/fastygo/notifyagg/repository"
	"github.com/fastygo/notifyagg/usecase"
)

const defaultConcurrency = 8

// Outcome describes what a delivery attempt did for one user.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeEmpty     Outcome = "empty"
	OutcomeQuiet     Outcome = "quiet_hours"
	OutcomeFailed    Outcome = "failed"
)

// RunReport summarises one scheduled pass over a cadence.
type RunReport struct {
	Cadence   domain.Frequency `json:"cadence"`
	Users     int              `json:"users"`
	Delivered int              `json:"delivered"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
}

type Config struct {
	MaxItemsPerGroup int
	Concurrency      int
	Metrics          usecase.Metrics
	Clock            func() time.Time
}

// Service drains the digest store into rendered digests.
type Service struct {
	digests repository.DigestRepository
	prefs   usecase.PreferencesProvider
	sink    usecase.NotificationSink
	logger  *zap.Logger
	cfg     Config
	locks   *keylock.Map
}

func New(
	digests repository.DigestRepository,
	prefs usecase.PreferencesProvider,
	sink usecase.NotificationSink,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxItemsPerGroup <= 0 {
		cfg.MaxItemsPerGroup = DefaultMaxItems
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Metrics == nil {
		cfg.Metrics = usecase.NopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		digests: digests,
		prefs:   prefs,
		sink:    sink,
		logger:  logger,
		cfg:     cfg,
		locks:   keylock.New(),
	}
}

// Build loads what is pending for the user and cadence.
func (s *Service) Build(ctx context.Context, userID string, cadence domain.Frequency) (*domain.DigestEntry, error) {
	entry, err := s.digests.Load(ctx, userID, cadence)
	if err != nil {
		return nil, fmt.Errorf("load digest for %s: %w", userID, err)
	}
	return entry, nil
}

// Render turns an entry into the payload handed to the sink.
func (s *Service) Render(entry *domain.DigestEntry) (*domain.DigestPayload, error) {
	return Render(entry, s.cfg.MaxItemsPerGroup)
}

// Deliver sends the user's pending digest unless the user is in quiet hours.
// On a failed dispatch the entry stays in the store for the next run.
func (s *Service) Deliver(ctx context.Context, userID string, cadence domain.Frequency) (Outcome, error) {
	return s.deliver(ctx, userID, cadence, true)
}

// Trigger delivers right away, ignoring quiet hours. It reports whether
// anything was sent.
func (s *Service) Trigger(ctx context.Context, userID string, cadence domain.Frequency) (bool, error) {
	if !cadence.Valid() || cadence == domain.FrequencyInstant {
		return false, domain.ErrInvalidCadence
	}
	outcome, err := s.deliver(ctx, userID, cadence, false)
	if err != nil {
		return false, err
	}
	return outcome == OutcomeDelivered, nil
}

// Run delivers every pending digest for cadence, a bounded number of users at
// a time. Failures are counted and logged, never returned.
func (s *Service) Run(ctx context.Context, cadence domain.Frequency) RunReport {
	report := RunReport{Cadence: cadence}

	users, err := s.digests.Users(ctx, cadence)
	if err != nil {
		s.logger.Error("failed to list digest users", zap.String("cadence", string(cadence)), zap.Error(err))
		return report
	}
	report.Users = len(users)

	var delivered, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, userID := range users {
		if gctx.Err() != nil {
			failed.Add(1)
			continue
		}
		g.Go(func() error {
			outcome, err := s.Deliver(gctx, userID, cadence)
			switch {
			case err != nil:
				failed.Add(1)
			case outcome == OutcomeDelivered:
				delivered.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Delivered = int(delivered.Load())
	report.Skipped = int(skipped.Load())
	report.Failed = int(failed.Load())
	s.cfg.Metrics.DigestRunObserved(cadence, report.Delivered, report.Skipped, report.Failed)

	s.logger.Info("digest run finished",
		zap.String("cadence", string(cadence)),
		zap.Int("users", report.Users),
		zap.Int("delivered", report.Delivered),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report
}

func (s *Service) deliver(ctx context.Context, userID string, cadence domain.Frequency, honorQuietHours bool) (Outcome, error) {
	unlock := s.locks.Lock(string(cadence) + "\x00" + userID)
	defer unlock()

	entry, err := s.Build(ctx, userID, cadence)
	if err != nil {
		return OutcomeFailed, err
	}
	if entry.Empty() {
		return OutcomeEmpty, nil
	}

	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("cadence", string(cadence)),
		zap.Int("groups", entry.GroupCount()),
		zap.Int("count", entry.TotalCount()),
	}

	if honorQuietHours && s.inQuietHours(ctx, userID) {
		s.logger.Debug("digest held for quiet hours", fields...)
		return OutcomeQuiet, nil
	}

	payload, err := s.Render(entry)
	if err != nil {
		s.logger.Error("failed to render digest", append(fields, zap.Error(err))...)
		return OutcomeFailed, err
	}
	if err := s.sink.Dispatch(ctx, payload); err != nil {
		s.logger.Warn("digest dispatch failed, entry kept for retry", append(fields, zap.Error(err))...)
		return OutcomeFailed, fmt.Errorf("dispatch digest: %w", err)
	}

	if err := s.digests.Remove(ctx, userID, cadence, entry.GroupIDs()); err != nil {
		s.logger.Error("digest sent but store not cleared, next run may repeat it", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("digest delivered", fields...)
	}
	return OutcomeDelivered, nil
}

func (s *Service) inQuietHours(ctx context.Context, userID string) bool {
	if s.prefs == nil {
		return false
	}
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrPreferencesNotFound) {
			s.logger.Warn("preferences lookup failed, ignoring quiet hours", zap.String("user_id", userID), zap.Error(err))
		}
		return false
	}
	return prefs.InQuietHours(s.cfg.Clock())
}
