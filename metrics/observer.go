// Package metrics exposes construction and dispatch counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reoring/customdata"
)

// Config configures the Prometheus observer.
type Config struct {
	// Prefix is added to all metric names (default: "customdata").
	Prefix string

	// Buckets for the audit duration histogram (in seconds).
	Buckets []float64

	// Registry receives the collectors. A private registry is created when nil.
	Registry *prometheus.Registry
}

// DefaultBuckets returns the default audit duration buckets.
func DefaultBuckets() []float64 {
	return []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1}
}

// Observer is a customdata.Observer recording Prometheus metrics. Attach it
// with customdata.WithObserver.
type Observer struct {
	registry *prometheus.Registry

	audits        *prometheus.CounterVec
	auditDuration *prometheus.HistogramVec
	dispatches    *prometheus.CounterVec
}

var _ customdata.Observer = (*Observer)(nil)

// New creates an Observer and registers its collectors.
func New(cfg Config) *Observer {
	if cfg.Prefix == "" {
		cfg.Prefix = "customdata"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = DefaultBuckets()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	o := &Observer{registry: cfg.Registry}
	o.audits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: cfg.Prefix + "_audits_total",
			Help: "Total number of data object audits",
		},
		[]string{"type", "result"},
	)
	o.auditDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    cfg.Prefix + "_audit_duration_seconds",
			Help:    "Audit duration in seconds",
			Buckets: cfg.Buckets,
		},
		[]string{"type"},
	)
	o.dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: cfg.Prefix + "_dispatch_total",
			Help: "Total number of handler dispatches",
		},
		[]string{"handler", "method", "mode", "result"},
	)
	cfg.Registry.MustRegister(o.audits, o.auditDuration, o.dispatches)
	return o
}

// Audited implements customdata.Observer.
func (o *Observer) Audited(typeName string, took time.Duration, err error) {
	o.audits.WithLabelValues(typeName, result(err)).Inc()
	o.auditDuration.WithLabelValues(typeName).Observe(took.Seconds())
}

// Dispatched implements customdata.Observer.
func (o *Observer) Dispatched(handler, method string, deferred bool, err error) {
	mode := "sync"
	if deferred {
		mode = "deferred"
	}
	o.dispatches.WithLabelValues(handler, method, mode, result(err)).Inc()
}

// Registry returns the registry holding the collectors.
func (o *Observer) Registry() *prometheus.Registry { return o.registry }

// Handler returns the HTTP handler for a /metrics endpoint.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
