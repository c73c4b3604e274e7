package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/usecase"
)

// Collector holds the Prometheus metrics of the aggregation service. Each
// collector owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	intake       *prometheus.CounterVec
	flushes      *prometheus.CounterVec
	activeGroups prometheus.Gauge
	dispatches   *prometheus.CounterVec
	digestUsers  *prometheus.CounterVec
	digestRuns   *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "notifyagg"
	}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		intake: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intake_total",
				Help:      "Notifications received, by outcome (grouped or the immediate reason).",
			},
			[]string{"outcome"},
		),
		flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "group_flushes_total",
				Help:      "Aggregation group flushes, by outcome.",
			},
			[]string{"outcome"},
		),
		activeGroups: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_groups",
				Help:      "Aggregation groups currently waiting for their window to close.",
			},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_dispatches_total",
				Help:      "Payloads handed to the notification sink, by kind and status.",
			},
			[]string{"kind", "status"},
		),
		digestUsers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "digest_users_total",
				Help:      "Per-user digest delivery attempts, by cadence and result.",
			},
			[]string{"cadence", "result"},
		),
		digestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "digest_runs_total",
				Help:      "Completed digest runs, by cadence.",
			},
			[]string{"cadence"},
		),
	}

	c.registry.MustRegister(
		c.intake,
		c.flushes,
		c.activeGroups,
		c.dispatches,
		c.digestUsers,
		c.digestRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) IntakeObserved(outcome string) {
	c.intake.WithLabelValues(outcome).Inc()
}

func (c *Collector) FlushObserved(outcome string) {
	c.flushes.WithLabelValues(outcome).Inc()
}

func (c *Collector) ActiveGroups(n int) {
	c.activeGroups.Set(float64(n))
}

func (c *Collector) DispatchObserved(kind domain.PayloadKind, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.dispatches.WithLabelValues(string(kind), status).Inc()
}

func (c *Collector) DigestRunObserved(cadence domain.Frequency, delivered, skipped, failed int) {
	label := string(cadence)
	c.digestRuns.WithLabelValues(label).Inc()
	c.digestUsers.WithLabelValues(label, "delivered").Add(float64(delivered))
	c.digestUsers.WithLabelValues(label, "skipped").Add(float64(skipped))
	c.digestUsers.WithLabelValues(label, "failed").Add(float64(failed))
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

var _ usecase.Metrics = (*Collector)(nil)
