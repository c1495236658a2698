package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics shared by all cache instances, partitioned by the
// instance name ("document", "embedding").
var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s23_cache_hits_total",
		Help: "Total cache lookups that returned a live entry.",
	}, []string{"cache"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s23_cache_misses_total",
		Help: "Total cache lookups that found no entry or an expired one.",
	}, []string{"cache"})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s23_cache_evictions_total",
		Help: "Total entries removed by capacity pressure or TTL expiry.",
	}, []string{"cache"})

	cacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "s23_cache_entries",
		Help: "Current number of live cache entries.",
	}, []string{"cache"})
)
