package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kos_cache_hits_total",
			Help: "Total number of KOS response cache hits",
		},
		[]string{"backend"}, // "disk", "redis"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kos_cache_misses_total",
			Help: "Total number of KOS response cache misses",
		},
		[]string{"backend"},
	)

	// CacheWrites tracks entries written
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kos_cache_writes_total",
			Help: "Total number of KOS response cache entries written",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kos_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "init", "lookup", "store"
	)
)
