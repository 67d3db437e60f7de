// Package metrics provides Prometheus metrics for form runtimes, lookups and
// the HTTP surface. A nil *Collector is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "formengine"

// Collector holds all Prometheus metrics.
type Collector struct {
	// Runtime metrics
	Transactions        *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec
	StaleResults        *prometheus.CounterVec
	ActiveInstances     prometheus.Gauge
	Submissions         *prometheus.CounterVec

	// Lookup metrics
	LookupRequests *prometheus.CounterVec
	LookupDuration *prometheus.HistogramVec

	// Schema metrics
	SchemaReloads      prometheus.Counter
	SchemaReloadErrors prometheus.Counter

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates a collector registered with reg. A nil reg creates unregistered
// metrics, which is useful in tests.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of runtime transactions applied",
			},
			[]string{"form_id", "kind"},
		),
		TransactionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Time spent applying one runtime transaction",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"form_id"},
		),
		StaleResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_results_total",
				Help:      "Async results discarded because the field changed meanwhile",
			},
			[]string{"kind"},
		),
		ActiveInstances: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_instances",
				Help:      "Number of open form runtime instances",
			},
		),
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of form submissions by outcome",
			},
			[]string{"form_id", "outcome"},
		),

		LookupRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookup_requests_total",
				Help:      "Lookup resolutions by outcome (hit, miss, shared, bypass, error)",
			},
			[]string{"lookup", "outcome"},
		),
		LookupDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lookup_duration_seconds",
				Help:      "Lookup resolution duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"lookup"},
		),

		SchemaReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reloads_total",
				Help:      "Total number of successful schema reloads",
			},
		),
		SchemaReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reload_errors_total",
				Help:      "Total number of failed schema reloads",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveLookup records one lookup resolution.
func (c *Collector) ObserveLookup(lookup, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.LookupRequests.WithLabelValues(lookup, outcome).Inc()
	c.LookupDuration.WithLabelValues(lookup).Observe(elapsed.Seconds())
}

// ObserveTransaction records one applied runtime transaction.
func (c *Collector) ObserveTransaction(formID, kind string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Transactions.WithLabelValues(formID, kind).Inc()
	c.TransactionDuration.WithLabelValues(formID).Observe(elapsed.Seconds())
}

// StaleResult records an async result dropped by a generation check.
func (c *Collector) StaleResult(kind string) {
	if c == nil {
		return
	}
	c.StaleResults.WithLabelValues(kind).Inc()
}

// InstanceOpened increments the active instance gauge.
func (c *Collector) InstanceOpened() {
	if c == nil {
		return
	}
	c.ActiveInstances.Inc()
}

// InstanceClosed decrements the active instance gauge.
func (c *Collector) InstanceClosed() {
	if c == nil {
		return
	}
	c.ActiveInstances.Dec()
}

// Submitted records a submission outcome.
func (c *Collector) Submitted(formID string, ok bool) {
	if c == nil {
		return
	}
	outcome := "invalid"
	if ok {
		outcome = "ok"
	}
	c.Submissions.WithLabelValues(formID, outcome).Inc()
}

// SchemaReloaded records a reload attempt.
func (c *Collector) SchemaReloaded(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.SchemaReloadErrors.Inc()
		return
	}
	c.SchemaReloads.Inc()
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
