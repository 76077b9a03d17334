// Package metrics defines the Prometheus metrics exported on /metrics.
//
// Metric naming follows Prometheus conventions:
//   - socdash_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CyclesTotal counts checker cycles by trigger and result.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdash_cycles_total",
			Help: "Total number of checker cycles by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	CycleDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socdash_cycle_duration_seconds",
			Help:    "Duration of checker cycles in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"trigger"},
	)

	// ProbeDurationSeconds observes every probe, successful or not.
	ProbeDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socdash_probe_duration_seconds",
			Help:    "Duration of single service probes in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "status"},
	)

	// AlertsTotal counts written alerts by source and status.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdash_alerts_total",
			Help: "Total alerts written to the alert log.",
		},
		[]string{"source", "status"},
	)

	// ServiceStatus is 1 for the current status of a service key and 0 otherwise.
	ServiceStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "socdash_service_status",
			Help: "Current status of each service key (1 = active status).",
		},
		[]string{"key", "status"},
	)

	NotifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "socdash_notify_failures_total",
			Help: "Alert notifications that could not be delivered.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleDurationSeconds,
		ProbeDurationSeconds,
		AlertsTotal,
		ServiceStatus,
		NotifyFailuresTotal,
	)
}

var statuses = []string{"UP", "DEGRADED", "DOWN"}

// RecordCycle records a finished cycle. err decides the result label.
func RecordCycle(trigger string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CyclesTotal.WithLabelValues(trigger, result).Inc()
	CycleDurationSeconds.WithLabelValues(trigger).Observe(duration.Seconds())
}

func RecordProbe(kind, status string, duration time.Duration) {
	ProbeDurationSeconds.WithLabelValues(kind, status).Observe(duration.Seconds())
}

func RecordAlert(source, status string) {
	AlertsTotal.WithLabelValues(source, status).Inc()
}

// SetServiceStatus flips the status gauges of key so exactly one is 1.
func SetServiceStatus(key, status string) {
	for _, s := range statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		ServiceStatus.WithLabelValues(key, s).Set(v)
	}
}

func RecordNotifyFailure() {
	NotifyFailuresTotal.Inc()
}
