package aggregation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fastygo/notifyagg/domain"
)

type scheduledFlush struct {
	key   string
	delay time.Duration
	fn    func()
}

// manualScheduler records timers and fires them only when told to.
type manualScheduler struct {
	mu      sync.Mutex
	pending map[string]scheduledFlush
	history []scheduledFlush
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{pending: make(map[string]scheduledFlush)}
}

func (s *manualScheduler) ScheduleOnce(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := scheduledFlush{key: key, delay: delay, fn: fn}
	s.pending[key] = entry
	s.history = append(s.history, entry)
}

// fire runs the pending timer for key. It reports false when none exists.
func (s *manualScheduler) fire(key string) bool {
	s.mu.Lock()
	entry, ok := s.pending[key]
	delete(s.pending, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	entry.fn()
	return true
}

// fireEntry runs a historic timer even if it was replaced.
func (s *manualScheduler) fireEntry(i int) {
	s.mu.Lock()
	entry := s.history[i]
	s.mu.Unlock()
	entry.fn()
}

func (s *manualScheduler) scheduled() []scheduledFlush {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduledFlush(nil), s.history...)
}

// recordingSink keeps every payload it receives and can be told to fail.
type recordingSink struct {
	mu       sync.Mutex
	payloads []domain.Payload
	fail     bool
}

var errSinkDown = errors.New("sink down")

func (s *recordingSink) Dispatch(_ context.Context, payload domain.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	if s.fail {
		return errSinkDown
	}
	return nil
}

func (s *recordingSink) all() []domain.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Payload(nil), s.payloads...)
}

func (s *recordingSink) aggregated() []*domain.AggregatedPayload {
	var out []*domain.AggregatedPayload
	for _, p := range s.all() {
		if agg, ok := p.(*domain.AggregatedPayload); ok {
			out = append(out, agg)
		}
	}
	return out
}

func (s *recordingSink) singles() []*domain.SinglePayload {
	var out []*domain.SinglePayload
	for _, p := range s.all() {
		if single, ok := p.(*domain.SinglePayload); ok {
			out = append(out, single)
		}
	}
	return out
}

type failingDigests struct{}

func (failingDigests) Append(context.Context, domain.Frequency, domain.AggregationGroup) error {
	return errors.New("disk full")
}

func (failingDigests) Load(_ context.Context, userID string, cadence domain.Frequency) (*domain.DigestEntry, error) {
	return domain.NewDigestEntry(userID, cadence), nil
}

func (failingDigests) Remove(context.Context, string, domain.Frequency, []string) error { return nil }

func (failingDigests) Users(context.Context, domain.Frequency) ([]string, error) { return nil, nil }

func (failingDigests) PendingCount(context.Context, string) (int, error) { return 0, nil }
