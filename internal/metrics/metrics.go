// Package metrics exposes the server's Prometheus collectors. All methods
// are safe on a nil *Metrics so tests can skip wiring.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	decisions     *prometheus.CounterVec
	directoryOps  *prometheus.CounterVec
	entryFailures prometheus.Counter
	entriesPruned prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secureentry",
			Name:      "verify_decisions_total",
			Help:      "Verification decisions by entry code.",
		}, []string{"code", "granted"}),
		directoryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secureentry",
			Name:      "directory_operations_total",
			Help:      "Worker directory operations by outcome.",
		}, []string{"op", "outcome"}),
		entryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secureentry",
			Name:      "entry_write_failures_total",
			Help:      "Entry log writes that failed.",
		}),
		entriesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secureentry",
			Name:      "entries_pruned_total",
			Help:      "Entry log rows removed by retention.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secureentry",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "secureentry",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decisions, m.directoryOps, m.entryFailures, m.entriesPruned,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveDecision(code int) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(strconv.Itoa(code), strconv.FormatBool(code == 0)).Inc()
}

// ObserveDirectoryOp counts op with outcome "ok", "not_found", "invalid"
// or "error". classify maps err to one of the last three.
func (m *Metrics) ObserveDirectoryOp(op string, err error, classify func(error) string) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if classify != nil {
			outcome = classify(err)
		}
	}
	m.directoryOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) EntryWriteFailed() {
	if m == nil {
		return
	}
	m.entryFailures.Inc()
}

func (m *Metrics) EntriesPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.entriesPruned.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ErrorOutcome is a classify func for errors that carry no category.
func ErrorOutcome(error) string { return "error" }

