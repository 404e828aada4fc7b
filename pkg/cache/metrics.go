package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamegate_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamegate_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheWrites tracks cached payloads
	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamegate_cache_writes_total",
			Help: "Total number of payloads written to the cache",
		},
	)

	// CacheInvalidations tracks entries removed by prefix invalidation
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamegate_cache_invalidated_entries_total",
			Help: "Total number of entries removed by prefix invalidation",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamegate_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "delete", "invalidate"
	)
)
