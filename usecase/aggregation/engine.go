package aggregation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/pkg/keylock"
	"github.com/fastygo/notifyagg/repository"
	"github.com/fastygo/notifyagg/usecase"
)

const (
	outcomeGrouped          = "grouped"
	outcomeDispatched       = "dispatched"
	outcomeDeferredDigest   = "deferred_digest"
	outcomeDeferredQuiet    = "deferred_quiet_hours"
	outcomeNoop             = "noop"
	triggerWindow           = "window"
	triggerBatchCap         = "batch_cap"
	triggerManual           = "manual"
	defaultFlushTimeout     = 30 * time.Second
	defaultDigestTriggerErr = "digest delivery is not configured"
)

// Digester delivers one user's pending digest on demand.
type Digester interface {
	Trigger(ctx context.Context, userID string, cadence domain.Frequency) (bool, error)
}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	DefaultFrequency domain.Frequency
	FlushTimeout     time.Duration
	Metrics          usecase.Metrics
	Digester         Digester
	Clock            func() time.Time
}

type liveGroup struct {
	group  *domain.AggregationGroup
	rule   domain.AggregationRule
	userID string
	count  atomic.Int64
}

// Engine decides, per incoming notification, whether it goes out immediately
// or joins an aggregation group, and flushes groups when their window closes
// or their batch cap is reached.
type Engine struct {
	catalog   *RuleCatalog
	prefs     usecase.PreferencesProvider
	digests   repository.DigestRepository
	sink      usecase.NotificationSink
	scheduler usecase.WindowScheduler
	logger    *zap.Logger
	cfg       Config

	mu     sync.RWMutex
	groups map[string]*liveGroup
	locks  *keylock.Map
}

func New(
	catalog *RuleCatalog,
	prefs usecase.PreferencesProvider,
	digests repository.DigestRepository,
	sink usecase.NotificationSink,
	scheduler usecase.WindowScheduler,
	logger *zap.Logger,
	cfg Config,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.DefaultFrequency.Valid() {
		cfg.DefaultFrequency = domain.FrequencyHourly
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = usecase.NopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		catalog:   catalog,
		prefs:     prefs,
		digests:   digests,
		sink:      sink,
		scheduler: scheduler,
		logger:    logger,
		cfg:       cfg,
		groups:    make(map[string]*liveGroup),
		locks:     keylock.New(),
	}
}

// AddNotification is the single intake point for producers. It never fails:
// delivery problems are logged and the result only reports the routing.
func (e *Engine) AddNotification(ctx context.Context, event domain.NotificationEvent) domain.IntakeResult {
	event.Normalize(e.cfg.Clock())

	if event.IsUrgent() {
		return e.immediate(ctx, event, domain.ReasonUrgent)
	}

	prefs := e.preferences(ctx, event.UserID)
	if !prefs.Enabled {
		return e.immediate(ctx, event, domain.ReasonDisabled)
	}
	if prefs.FrequencyFor(event.Category) == domain.FrequencyInstant {
		return e.immediate(ctx, event, domain.ReasonInstant)
	}

	rule, ok := e.findRule(&event)
	if !ok {
		return e.immediate(ctx, event, domain.ReasonNoRule)
	}

	key := BuildKey(&event, rule)
	unlock := e.locks.Lock(key)
	defer unlock()

	live, created := e.openGroup(key, &event, rule)
	live.group.Append(event, &live.rule)
	count := live.group.Len()
	live.count.Store(int64(count))
	e.cfg.Metrics.IntakeObserved(outcomeGrouped)

	if created {
		groupID := live.group.ID
		e.scheduler.ScheduleOnce(key, live.rule.Window(), func() {
			e.flushScheduled(key, groupID)
		})
		e.logger.Debug("aggregation group opened",
			zap.String("group_key", key),
			zap.String("rule_id", live.rule.ID),
			zap.Duration("window", live.rule.Window()))
	}

	if count >= live.rule.MaxBatchSize {
		e.flushLocked(ctx, key, live.group.ID, triggerBatchCap)
	}

	return domain.IntakeResult{GroupKey: key}
}

// Flush closes whatever group is live for key. A missing group is a no-op and
// reports false.
func (e *Engine) Flush(ctx context.Context, key string) bool {
	unlock := e.locks.Lock(key)
	defer unlock()
	return e.flushLocked(ctx, key, "", triggerManual)
}

// FlushAll closes every live group, typically during shutdown.
func (e *Engine) FlushAll(ctx context.Context) int {
	flushed := 0
	for _, key := range e.liveKeys() {
		if ctx.Err() != nil {
			break
		}
		if e.Flush(ctx, key) {
			flushed++
		}
	}
	return flushed
}

// ActiveGroups returns the number of live groups.
func (e *Engine) ActiveGroups() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.groups)
}

// GetStats reports the pending work for one user.
func (e *Engine) GetStats(ctx context.Context, userID string) domain.AggregationStats {
	stats := domain.AggregationStats{UserID: userID}

	e.mu.RLock()
	for _, live := range e.groups {
		if live.userID != userID {
			continue
		}
		stats.GroupsCount++
		stats.PendingCount += int(live.count.Load())
	}
	e.mu.RUnlock()

	if e.digests != nil {
		pending, err := e.digests.PendingCount(ctx, userID)
		if err != nil {
			e.logger.Warn("failed to count pending digest notifications", zap.String("user_id", userID), zap.Error(err))
		}
		stats.DigestPendingCount = pending
	}
	return stats
}

// TriggerDigest delivers the user's pending digest for cadence right away.
func (e *Engine) TriggerDigest(ctx context.Context, userID string, cadence domain.Frequency) (bool, error) {
	if e.cfg.Digester == nil {
		return false, domain.NewError(domain.ErrCodeUnavailable, defaultDigestTriggerErr)
	}
	return e.cfg.Digester.Trigger(ctx, userID, cadence)
}

func (e *Engine) immediate(ctx context.Context, event domain.NotificationEvent, reason domain.ImmediateReason) domain.IntakeResult {
	e.cfg.Metrics.IntakeObserved(string(reason))
	payload := &domain.SinglePayload{
		UserID:       event.UserID,
		Reason:       reason,
		Notification: event,
	}
	if err := e.sink.Dispatch(ctx, payload); err != nil {
		e.logger.Error("immediate dispatch failed",
			zap.String("user_id", event.UserID),
			zap.String("notification_id", event.ID),
			zap.String("reason", string(reason)),
			zap.Error(err))
	}
	return domain.IntakeResult{Immediate: true, Reason: reason}
}

func (e *Engine) findRule(event *domain.NotificationEvent) (*domain.AggregationRule, bool) {
	if e.catalog == nil {
		return nil, false
	}
	return e.catalog.FindMatchingRule(event)
}

func (e *Engine) openGroup(key string, event *domain.NotificationEvent, rule *domain.AggregationRule) (*liveGroup, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if live, ok := e.groups[key]; ok {
		return live, false
	}
	live := &liveGroup{
		group:  domain.NewGroup(key, event, rule),
		rule:   *rule,
		userID: event.UserID,
	}
	e.groups[key] = live
	e.cfg.Metrics.ActiveGroups(len(e.groups))
	return live, true
}

func (e *Engine) flushScheduled(key, groupID string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.FlushTimeout)
	defer cancel()

	unlock := e.locks.Lock(key)
	defer unlock()
	e.flushLocked(ctx, key, groupID, triggerWindow)
}

// flushLocked removes the live group for key and routes it. The caller holds
// the key lock. A non-empty groupID restricts the flush to that generation of
// the group so a stale timer cannot close a newer group under the same key.
func (e *Engine) flushLocked(ctx context.Context, key, groupID, trigger string) bool {
	e.mu.Lock()
	live, ok := e.groups[key]
	if !ok || (groupID != "" && live.group.ID != groupID) {
		e.mu.Unlock()
		e.cfg.Metrics.FlushObserved(outcomeNoop)
		e.logger.Debug("flush skipped, group already closed", zap.String("group_key", key), zap.String("trigger", trigger))
		return false
	}
	delete(e.groups, key)
	remaining := len(e.groups)
	e.mu.Unlock()
	e.cfg.Metrics.ActiveGroups(remaining)

	e.route(ctx, live, trigger)
	return true
}

// route hands a closed group to exactly one of the digest store or the sink.
func (e *Engine) route(ctx context.Context, live *liveGroup, trigger string) {
	group := live.group
	prefs := e.preferences(ctx, group.UserID)
	frequency := prefs.FrequencyFor(group.Category)
	now := e.cfg.Clock()

	fields := []zap.Field{
		zap.String("group_key", group.GroupKey),
		zap.String("user_id", group.UserID),
		zap.Int("count", group.Count),
		zap.String("trigger", trigger),
	}

	switch {
	case frequency.IsDigest():
		if e.deferToDigest(ctx, group, frequency, outcomeDeferredDigest, fields) {
			return
		}
	case prefs.InQuietHours(now):
		if e.deferToDigest(ctx, group, domain.FrequencyHourly, outcomeDeferredQuiet, fields) {
			return
		}
	}

	group.MarkSent(now)
	if err := e.sink.Dispatch(ctx, group.Payload()); err != nil {
		e.logger.Error("aggregated dispatch failed", append(fields, zap.Error(err))...)
	} else {
		e.logger.Info("aggregation group dispatched", fields...)
	}
	e.cfg.Metrics.FlushObserved(outcomeDispatched)
}

func (e *Engine) deferToDigest(ctx context.Context, group *domain.AggregationGroup, cadence domain.Frequency, outcome string, fields []zap.Field) bool {
	if e.digests == nil {
		return false
	}
	if err := e.digests.Append(ctx, cadence, *group); err != nil {
		e.logger.Error("failed to store group for digest, dispatching instead",
			append(fields, zap.String("cadence", string(cadence)), zap.Error(err))...)
		return false
	}
	e.logger.Info("aggregation group deferred to digest", append(fields, zap.String("cadence", string(cadence)))...)
	e.cfg.Metrics.FlushObserved(outcome)
	return true
}

func (e *Engine) preferences(ctx context.Context, userID string) *domain.UserAggregationPreferences {
	if e.prefs == nil {
		return domain.DefaultPreferences(userID, e.cfg.DefaultFrequency)
	}
	prefs, err := e.prefs.Get(ctx, userID)
	if err != nil || prefs == nil {
		if err != nil && !errors.Is(err, domain.ErrPreferencesNotFound) {
			e.logger.Warn("preferences lookup failed, using defaults", zap.String("user_id", userID), zap.Error(err))
		}
		return domain.DefaultPreferences(userID, e.cfg.DefaultFrequency)
	}
	return prefs
}

func (e *Engine) liveKeys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := make([]string, 0, len(e.groups))
	for key := range e.groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
