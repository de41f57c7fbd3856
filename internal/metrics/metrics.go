// Package metrics holds the process-wide Prometheus collectors.
//
// Collectors register with the default registry on import and are served by
// promhttp.Handler at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskboard"

// HTTP
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	RateLimitRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limit_rejected_total",
		Help:      "Requests rejected with 429.",
	})

	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "idempotent_replays_total",
		Help:      "Responses replayed for a repeated Idempotency-Key.",
	})
)

// Reconcile
var (
	ReconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Reverse-index reconcile passes by result (clean, repaired, error).",
	}, []string{"result"})

	ReconcileRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "repairs_total",
		Help:      "Reverse-index repairs written, by kind (rewrite, unassign).",
	}, []string{"kind"})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "duration_seconds",
		Help:      "Time taken by one reconcile pass.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Reconcile result labels
const (
	ResultClean    = "clean"
	ResultRepaired = "repaired"
	ResultError    = "error"
)
