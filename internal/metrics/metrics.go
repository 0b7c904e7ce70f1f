// Package metrics exposes the ledger's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const (
	MetricRequestsTotal          = "ledger_http_requests_total"
	MetricRequestDurationSeconds = "ledger_http_request_duration_seconds"
	MetricEntriesRecordedTotal   = "ledger_entries_recorded_total"
	MetricRateLimitedTotal       = "ledger_rate_limited_total"
)

// Registry owns a private prometheus.Registry so tests and multiple servers
// in one process never collide on the default one.
type Registry struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	entries     *prometheus.CounterVec
	rateLimited prometheus.Counter
}

type Config struct {
	// RuntimeCollectors adds the Go and process collectors.
	RuntimeCollectors bool
	// HistogramBuckets defaults to prometheus.DefBuckets.
	HistogramBuckets []float64
}

func New(cfg Config) *Registry {
	if len(cfg.HistogramBuckets) == 0 {
		cfg.HistogramBuckets = prometheus.DefBuckets
	}

	r := &Registry{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDurationSeconds,
			Help:    "HTTP request latency by route and method.",
			Buckets: cfg.HistogramBuckets,
		}, []string{"route", "method"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEntriesRecordedTotal,
			Help: "Ledger entries recorded by kind.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitedTotal,
			Help: "Requests rejected by the rate limiter.",
		}),
	}

	r.registry.MustRegister(r.requests, r.duration, r.entries, r.rateLimited)
	if cfg.RuntimeCollectors {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Instrument wraps h so its requests are counted and timed under route.
// route should be the mux pattern, not the raw path, to bound cardinality.
func (r *Registry) Instrument(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		r.duration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(r.requests.MustCurryWith(labels), h),
	)
}

func (r *Registry) EntryRecorded(kind string) {
	r.entries.WithLabelValues(kind).Inc()
}

func (r *Registry) RateLimited() {
	r.rateLimited.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gather is exposed for tests.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}
