package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/usecase"
)

type windowTimer struct {
	timer *time.Timer
	gen   uint64
}

// WindowScheduler fires one callback per key after a delay. Scheduling a key
// again replaces its pending timer, so a key never has two timers in flight.
type WindowScheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[string]windowTimer
	gen     uint64
	stopped bool
	running sync.WaitGroup
}

func NewWindowScheduler(logger *zap.Logger) *WindowScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowScheduler{
		logger: logger,
		timers: make(map[string]windowTimer),
	}
}

// ScheduleOnce runs fn once, delay from now. After Stop it does nothing.
func (s *WindowScheduler) ScheduleOnce(key string, delay time.Duration, fn func()) {
	if fn == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.logger.Warn("window scheduler stopped, timer dropped", zap.String("group_key", key))
		return
	}
	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	timer := time.AfterFunc(delay, func() {
		s.fire(key, gen, fn)
	})
	s.timers[key] = windowTimer{timer: timer, gen: gen}
}

func (s *WindowScheduler) fire(key string, gen uint64, fn func()) {
	s.mu.Lock()
	current, ok := s.timers[key]
	if !ok || current.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("window flush panicked", zap.String("group_key", key), zap.Any("panic", r))
		}
	}()
	fn()
}

// Pending returns the number of timers that have not fired yet.
func (s *WindowScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer and waits for callbacks already running.
func (s *WindowScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for key, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ usecase.WindowScheduler = (*WindowScheduler)(nil)
