package profiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
	runs         prometheus.Counter
	thinning     prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		saves: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "flamekeeper_profiler_saves_total",
			Help: "Number of profile saves by result.",
		}, []string{"kind", "result"}),
		saveDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "flamekeeper_profiler_save_duration_seconds",
			Help:    "Time spent saving profiles.",
			Buckets: prometheus.DefBuckets,
		}),
		runs: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flamekeeper_profiler_runs_started_total",
			Help: "Number of profiling runs started.",
		}),
		thinning: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "flamekeeper_profiler_sample_rate",
			Help:    "Sampling rate of runs at their final save. 1 means no sample was dropped.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}
