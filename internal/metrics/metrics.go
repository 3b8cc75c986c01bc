// Package metrics exposes Prometheus instrumentation for executor
// reconcile ticks, trigger latency, and HAProxy slot occupancy, in the
// prometheus.NewXVec package-variable style other vendors in this
// ecosystem use for controller-style reconcile loops.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const prefix = "perfectstorm"

var (
	// ReconcileTotal counts reconcile ticks per reconciler and outcome
	// ("success" or "error").
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_reconcile_total",
			Help: "Total number of reconcile ticks, by reconciler and outcome",
		},
		[]string{"reconciler", "outcome"},
	)

	// ReconcileDuration tracks how long a full reconcile tick takes.
	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_reconcile_duration_seconds",
			Help:    "Duration of a reconcile tick, by reconciler",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"reconciler"},
	)

	// TriggerLatency tracks the time from submitting a trigger to it
	// reaching a terminal status.
	TriggerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_trigger_latency_seconds",
			Help:    "Time from trigger submission to terminal status, by recipe name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"recipe"},
	)

	// TriggerFailuresTotal counts triggers that reached the error status.
	TriggerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_trigger_failures_total",
			Help: "Total number of triggers that reached the error status, by recipe name",
		},
		[]string{"recipe"},
	)

	// HAProxySlotsActive gauges the currently bound (active) HAProxy
	// slots per backend.
	HAProxySlotsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_haproxy_slots_active",
			Help: "Number of active (bound) HAProxy slots, by backend",
		},
		[]string{"backend"},
	)

	// HAProxySlotsFree gauges the remaining free slot pool per backend.
	HAProxySlotsFree = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_haproxy_slots_free",
			Help: "Number of free HAProxy slots remaining, by backend",
		},
		[]string{"backend"},
	)
)

// MustRegister registers every collector in this package against reg. A
// process registers this once at startup, typically against
// prometheus.DefaultRegisterer.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		ReconcileTotal,
		ReconcileDuration,
		TriggerLatency,
		TriggerFailuresTotal,
		HAProxySlotsActive,
		HAProxySlotsFree,
	)
}

// ObserveReconcile records a reconcile tick's outcome and duration.
func ObserveReconcile(reconciler string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ReconcileTotal.WithLabelValues(reconciler, outcome).Inc()
	ReconcileDuration.WithLabelValues(reconciler).Observe(time.Since(start).Seconds())
}

// ObserveTrigger records a completed trigger's latency and, on failure,
// increments the failure counter.
func ObserveTrigger(recipeName string, start time.Time, failed bool) {
	TriggerLatency.WithLabelValues(recipeName).Observe(time.Since(start).Seconds())
	if failed {
		TriggerFailuresTotal.WithLabelValues(recipeName).Inc()
	}
}
