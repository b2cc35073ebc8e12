package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	resourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "addonctl",
			Subsystem: "engine",
			Name:      "resource_total",
			Help:      "Total resources processed by mode and action",
		},
		[]string{"cluster", "mode", "action"},
	)

	resourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "addonctl",
			Subsystem: "engine",
			Name:      "resource_duration_seconds",
			Help:      "Duration of per-resource reconciliation in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"cluster", "mode"},
	)

	runTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "addonctl",
			Subsystem: "engine",
			Name:      "run_total",
			Help:      "Total runs by mode and final status",
		},
		[]string{"mode", "status"},
	)
)

func init() {
	prometheus.MustRegister(resourceTotal, resourceDuration, runTotal)
}
