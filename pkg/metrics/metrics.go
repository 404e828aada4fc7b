// Package metrics provides the centralized Prometheus registry reference for
// gamegate. All metrics are defined in their respective packages (gateway,
// upstream, ratelimit, keypool, cache, dedup) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by gamegate.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Admission Metrics (pkg/ratelimit):
//   - gamegate_ratelimit_acquired_total (Counter): Admissions granted by the dual-window limiter
//   - gamegate_ratelimit_wait_seconds (Histogram): Time spent waiting for admission
//   - gamegate_ratelimit_cancelled_total (Counter): Waiters cancelled before admission
//
// Credential Pool Metrics (pkg/keypool):
//   - gamegate_keypool_handouts_total{key_id} (Counter): Credentials handed out, by credential ID
//   - gamegate_keypool_cooldowns_total{key_id} (Counter): Cooldowns applied, by credential ID
//   - gamegate_keypool_cooling_keys (Gauge): Credentials currently in cooldown
//   - gamegate_keypool_exhausted_total (Counter): Handouts abandoned because every credential was cooling
//
// Cache Metrics (pkg/cache):
//   - gamegate_cache_hits_total (Counter): Cache hits
//   - gamegate_cache_misses_total (Counter): Cache misses (includes logically expired entries)
//   - gamegate_cache_writes_total (Counter): Payloads written to the cache
//   - gamegate_cache_invalidated_entries_total (Counter): Entries removed by prefix invalidation
//   - gamegate_cache_errors_total{operation} (Counter): Cache operation errors (get, put, delete, invalidate)
//
// Upstream Metrics (pkg/upstream):
//   - gamegate_upstream_requests_total{kind} (Counter): Upstream attempts by outcome kind
//   - gamegate_upstream_request_duration_seconds{kind} (Histogram): Attempt duration by outcome kind
//   - gamegate_upstream_backoff_seconds (Histogram): Backoff duration before upstream retries
//
// Orchestration Metrics (pkg/gateway):
//   - gamegate_gateway_fetches_total{resource, result} (Counter): Fetches by resource type and result (hit, fetched, error)
//   - gamegate_gateway_fetch_duration_seconds{resource} (Histogram): End-to-end fetch duration by resource type
//   - gamegate_gateway_rotations_total (Counter): Credential rotations triggered by upstream throttles
//   - gamegate_gateway_backoff_retries_total{kind} (Counter): Backoff retries by outcome kind of the failed attempt
//   - gamegate_gateway_retry_exhausted_total{kind} (Counter): Fetches that spent their retry budget, by last outcome kind
//
// Dedup Metrics (pkg/dedup):
//   - gamegate_dedup_marked_total (Counter): IDs marked as processed for the first time
//   - gamegate_dedup_duplicates_total (Counter): Marks that hit an already-processed ID
//   - gamegate_dedup_errors_total{operation} (Counter): Dedup operation errors (mark, seen, first_seen, count)
//
// Daemon Metrics (cmd/gamegate):
//   - gamegate_inbound_rejected_total (Counter): Inbound requests rejected by the per-client limiter
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(gamegate_cache_hits_total[5m])) /
//   (sum(rate(gamegate_cache_hits_total[5m])) + sum(rate(gamegate_cache_misses_total[5m])))
//
//   # Upstream Error Rate by Kind
//   sum by (kind) (rate(gamegate_upstream_requests_total{kind!="success"}[5m]))
//
//   # Throttle Pressure
//   rate(gamegate_gateway_rotations_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(gamegate_gateway_fetch_duration_seconds_bucket[5m]))
//
//   # P99 Admission Wait
//   histogram_quantile(0.99, rate(gamegate_ratelimit_wait_seconds_bucket[5m]))
//
//   # Credential Pool Exhaustion (alert when nonzero)
//   rate(gamegate_keypool_exhausted_total[5m])
