// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPRequests counts served requests by route template.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "basey",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method, route and status.",
}, []string{"method", "route", "status"})

// HTTPDuration records request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "basey",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// FareEstimates counts fare estimates by result (ok, invalid, unknown_place, error).
var FareEstimates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "basey",
	Subsystem: "fare",
	Name:      "estimates_total",
	Help:      "Total fare estimates by result.",
}, []string{"result"})

// PenaltyDecisions counts decisions by offense ordinal; ordinals of 4 and above share "4+".
var PenaltyDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "basey",
	Subsystem: "penalty",
	Name:      "decisions_total",
	Help:      "Total penalty decisions by offense ordinal.",
}, []string{"ordinal"})

// PenaltyDegraded counts decisions made without violation history.
var PenaltyDegraded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "basey",
	Subsystem: "penalty",
	Name:      "degraded_total",
	Help:      "Total penalty decisions that fell back to first offense.",
})

// HistoryLookup records violation history lookup latency by outcome.
var HistoryLookup = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "basey",
	Subsystem: "history",
	Name:      "lookup_duration_seconds",
	Help:      "Violation history lookup latency in seconds.",
	Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
}, []string{"outcome"})

// ObserveHistoryLookup is a penalty.WithLookupObserver callback.
func ObserveHistoryLookup(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	HistoryLookup.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordPenalty counts a decision.
func RecordPenalty(ordinal int, degraded bool) {
	label := strconv.Itoa(ordinal)
	if ordinal >= 4 {
		label = "4+"
	}
	PenaltyDecisions.WithLabelValues(label).Inc()
	if degraded {
		PenaltyDegraded.Inc()
	}
}
