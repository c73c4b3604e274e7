package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/usecase/digest"
)

// DigestRunner drains one cadence of the digest store.
type DigestRunner interface {
	Run(ctx context.Context, cadence domain.Frequency) digest.RunReport
}

// ScheduleConfig controls when each digest cadence runs.
type ScheduleConfig struct {
	// HourlySpec is a six-field cron expression or descriptor such as "@hourly".
	HourlySpec string
	DailyTime  string
	WeeklyDay  time.Weekday
	WeeklyTime string
	Location   *time.Location
	RunTimeout time.Duration
}

// DigestScheduler triggers the hourly, daily and weekly digest runs.
type DigestScheduler struct {
	runner  DigestRunner
	logger  *zap.Logger
	cfg     ScheduleConfig
	cron    *cron.Cron
	entries map[domain.Frequency]cron.EntryID

	mu      sync.Mutex
	started bool
}

func NewDigestScheduler(runner DigestRunner, logger *zap.Logger, cfg ScheduleConfig) (*DigestScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HourlySpec == "" {
		cfg.HourlySpec = "0 0 * * * *"
	}
	if cfg.DailyTime == "" {
		cfg.DailyTime = domain.DefaultDigestTime
	}
	if cfg.WeeklyTime == "" {
		cfg.WeeklyTime = cfg.DailyTime
	}
	if cfg.WeeklyDay < time.Sunday || cfg.WeeklyDay > time.Saturday {
		cfg.WeeklyDay = domain.DefaultDigestDay
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}

	daily, err := clockSpec(cfg.DailyTime, "*")
	if err != nil {
		return nil, fmt.Errorf("daily digest time: %w", err)
	}
	weekly, err := clockSpec(cfg.WeeklyTime, strconv.Itoa(int(cfg.WeeklyDay)))
	if err != nil {
		return nil, fmt.Errorf("weekly digest time: %w", err)
	}

	cl := cronLogger{logger: logger.Sugar()}
	scheduler := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ds := &DigestScheduler{
		runner:  runner,
		logger:  logger,
		cfg:     cfg,
		cron:    scheduler,
		entries: make(map[domain.Frequency]cron.EntryID, len(domain.Cadences)),
	}

	specs := map[domain.Frequency]string{
		domain.FrequencyHourly: cfg.HourlySpec,
		domain.FrequencyDaily:  daily,
		domain.FrequencyWeekly: weekly,
	}
	for _, cadence := range domain.Cadences {
		id, err := ds.cron.AddFunc(specs[cadence], func() {
			ctx, cancel := context.WithTimeout(context.Background(), ds.cfg.RunTimeout)
			defer cancel()
			ds.RunNow(ctx, cadence)
		})
		if err != nil {
			return nil, fmt.Errorf("schedule %s digest %q: %w", cadence, specs[cadence], err)
		}
		ds.entries[cadence] = id
	}
	return ds, nil
}

// Start launches the cron scheduler.
func (ds *DigestScheduler) Start() {
	if ds == nil || ds.cron == nil {
		return
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.started {
		return
	}
	ds.started = true
	ds.cron.Start()
	ds.logger.Info("digest scheduler started",
		zap.Time("next_hourly", ds.Next(domain.FrequencyHourly)),
		zap.Time("next_daily", ds.Next(domain.FrequencyDaily)),
		zap.Time("next_weekly", ds.Next(domain.FrequencyWeekly)))
}

// Stop waits for running jobs or ctx, whichever comes first.
func (ds *DigestScheduler) Stop(ctx context.Context) error {
	if ds == nil || ds.cron == nil {
		return nil
	}
	stopCtx := ds.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	ds.logger.Info("digest scheduler stopped")
	return nil
}

// RunNow performs one run for cadence outside the schedule.
func (ds *DigestScheduler) RunNow(ctx context.Context, cadence domain.Frequency) digest.RunReport {
	started := time.Now()
	report := ds.runner.Run(ctx, cadence)
	ds.logger.Debug("digest run completed",
		zap.String("cadence", string(cadence)),
		zap.Duration("took", time.Since(started)))
	return report
}

// Next returns when cadence runs next. It is zero before Start.
func (ds *DigestScheduler) Next(cadence domain.Frequency) time.Time {
	id, ok := ds.entries[cadence]
	if !ok {
		return time.Time{}
	}
	return ds.cron.Entry(id).Next
}

// clockSpec turns "HH:MM" into a six-field cron spec for the given weekday field.
func clockSpec(clock, weekday string) (string, error) {
	minutes, err := domain.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0 %d %d * * %s", minutes%60, minutes/60, weekday), nil
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
