// Package metrics exposes Prometheus instrumentation for override decisions
// and approval request outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records all service metrics
type Collector struct {
	registry *prometheus.Registry

	decisions           *prometheus.CounterVec
	decisionDuration    prometheus.Histogram
	requestOutcomes     *prometheus.CounterVec
	consumptionFailures prometheus.Counter
	pendingRequests     prometheus.Gauge
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		decisions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "override_decisions_total",
			Help: "Override attempts evaluated, by verdict",
		}, []string{"verdict"}),
		decisionDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "override_decision_duration_seconds",
			Help:    "Time taken to resolve rule and ladder for an attempt",
			Buckets: prometheus.DefBuckets,
		}),
		requestOutcomes: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "approval_requests_total",
			Help: "Approval requests reaching a terminal state, by outcome",
		}, []string{"outcome"}),
		consumptionFailures: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "approval_consumption_failures_total",
			Help: "Child consumption attempts that failed",
		}),
		pendingRequests: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "approval_requests_pending",
			Help: "Approval requests currently awaiting a response",
		}),
	}
}

// RecordDecision counts one evaluated attempt
func (c *Collector) RecordDecision(duration time.Duration, requiresApproval bool) {
	verdict := "self_serve"
	if requiresApproval {
		verdict = "approval_required"
	}
	c.decisions.WithLabelValues(verdict).Inc()
	c.decisionDuration.Observe(duration.Seconds())
}

// RequestOpened tracks a new pending request
func (c *Collector) RequestOpened() {
	c.pendingRequests.Inc()
}

// RequestClosed records the terminal outcome of a request
func (c *Collector) RequestClosed(outcome string) {
	c.pendingRequests.Dec()
	c.requestOutcomes.WithLabelValues(outcome).Inc()
}

// ConsumptionFailed counts one failed child application
func (c *Collector) ConsumptionFailed() {
	c.consumptionFailures.Inc()
}

// Handler returns the scrape endpoint handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
