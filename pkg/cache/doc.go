// Package cache provides the Redis-backed result cache for upstream
// responses.
//
// The store keeps successful payloads only; error outcomes are never
// cached. It implements the following:
//
// - Per-resource-type TTL policies (unbounded for immutable history)
// - Lazy logical expiry on read plus Redis-side TTL reclamation
// - Deterministic namespaced cache keys from resource type + sorted params
// - Prefix invalidation with removed-entry counts
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache store
//	store := cache.NewStore(redisClient)
//
//	// Create cache key
//	key := cache.Key{
//		Resource: "match",
//		Params:   map[string]string{"id": "EUW1_4512345"},
//	}
//
//	// Get from cache
//	entry, err := store.Get(ctx, key)
//	if err == cache.ErrMiss {
//		// Cache miss - fetch from the upstream
//	}
//
//	// Store a payload under the resource's TTL policy
//	policy := cache.DefaultPolicies().For("match")
//	if err := store.Put(ctx, key, payload, policy.TTL); err != nil {
//		return err
//	}
//
// # Invalidation
//
//	// Remove every cached entry of one resource type
//	removed, err := store.Invalidate(ctx, cache.Prefix("player"))
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - gamegate_cache_hits_total - Cache hits
//   - gamegate_cache_misses_total - Cache misses
//   - gamegate_cache_writes_total - Cache writes
//   - gamegate_cache_invalidated_entries_total - Entries removed by prefix invalidation
//   - gamegate_cache_errors_total{operation} - Cache operation errors
package cache
