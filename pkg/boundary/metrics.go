package boundary

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cacheErrors  prometheus.Counter
	storeQueries prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		cacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flamekeeper_boundary_cache_hits_total",
			Help: "Number of boundary lookups served from the cache.",
		}),
		cacheMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flamekeeper_boundary_cache_misses_total",
			Help: "Number of boundary lookups not found in the cache.",
		}),
		cacheErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flamekeeper_boundary_cache_errors_total",
			Help: "Number of failed boundary cache operations.",
		}),
		storeQueries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "flamekeeper_boundary_store_queries_total",
			Help: "Number of boundaries computed from the store.",
		}),
	}
}
