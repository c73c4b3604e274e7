package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check reports nil when a dependency is reachable.
type Check func(ctx context.Context) error

// Gauge reads a number worth exposing next to the health status.
type Gauge func() int

type probe struct {
	name     string
	check    Check
	required bool
}

// Monitor periodically checks the configured backends and caches the result
// so health requests never block on a slow dependency.
type Monitor struct {
	probes  []probe
	gauges  map[string]Gauge
	timeout time.Duration

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		gauges:   make(map[string]Gauge),
		timeout:  3 * time.Second,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// AddProbe registers a dependency. A failing required probe marks the
// service offline; optional probes only show up in the component list.
func (m *Monitor) AddProbe(name string, check Check, required bool) {
	if check == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, probe{name: name, check: check, required: required})
}

// AddGauge registers a value reported with every status.
func (m *Monitor) AddGauge(name string, gauge Gauge) {
	if gauge == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = gauge
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

// GetStatus returns the cached status with fresh gauge readings.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	status := m.status.clone()
	gauges := make(map[string]Gauge, len(m.gauges))
	for name, g := range m.gauges {
		gauges[name] = g
	}
	m.mu.RUnlock()

	status.Gauges = make(map[string]int, len(gauges))
	for name, g := range gauges {
		status.Gauges[name] = g()
	}
	return status
}

// Refresh runs every probe now.
func (m *Monitor) Refresh(ctx context.Context) Status {
	m.mu.RLock()
	probes := append([]probe(nil), m.probes...)
	m.mu.RUnlock()

	status := Status{
		Online:     true,
		Components: make([]Component, 0, len(probes)),
		LastCheck:  time.Now().UTC(),
	}
	for _, p := range probes {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := p.check(checkCtx)
		cancel()

		component := Component{Name: p.name, Healthy: err == nil, Required: p.required}
		if err != nil {
			component.Error = err.Error()
			m.logger.Warn("health probe failed", zap.String("component", p.name), zap.Error(err))
			if p.required {
				status.Online = false
			}
		}
		status.Components = append(status.Components, component)
	}
	sort.Slice(status.Components, func(i, j int) bool {
		return status.Components[i].Name < status.Components[j].Name
	})

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return m.GetStatus()
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}
