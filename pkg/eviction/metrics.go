package eviction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	passScope  = "scope"
	passGlobal = "global"
	passExpiry = "expiry"
	passManual = "manual"
)

type metrics struct {
	stripped    *prometheus.CounterVec
	deleted     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	runDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		stripped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "flamekeeper_eviction_stripped_total",
			Help: "Number of retention reasons removed from profiles.",
		}, []string{"pass"}),
		deleted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "flamekeeper_eviction_deleted_total",
			Help: "Number of profiles deleted.",
		}, []string{"pass"}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "flamekeeper_eviction_failures_total",
			Help: "Number of failed eviction passes.",
		}, []string{"pass"}),
		runDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "flamekeeper_eviction_run_duration_seconds",
			Help:    "Duration of eviction runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}
