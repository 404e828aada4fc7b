// Package gateway implements the fetch orchestration core: cache check,
// admission through the dual-window limiter, credential selection,
// upstream invocation, and cache write-through.
//
// One Gateway instance is constructed at startup and shared by all
// callers. Cache hits return without ever touching the limiter or the
// credential pool; misses pay for exactly one admitted upstream call,
// plus bounded retries on throttles and recoverable failures.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kalrey/gamegate/pkg/cache"
	"github.com/kalrey/gamegate/pkg/dedup"
	"github.com/kalrey/gamegate/pkg/keypool"
	"github.com/kalrey/gamegate/pkg/ratelimit"
	"github.com/kalrey/gamegate/pkg/upstream"
)

// Prometheus metrics for the orchestration core.
var (
	gatewayFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamegate_gateway_fetches_total",
		Help: "Total fetches by resource type and result (hit, fetched, error)",
	}, []string{"resource", "result"})

	gatewayFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamegate_gateway_fetch_duration_seconds",
		Help:    "Fetch duration in seconds by resource type",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"resource"})

	gatewayRotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamegate_gateway_rotations_total",
		Help: "Credential rotations triggered by upstream throttles",
	})

	gatewayBackoffRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamegate_gateway_backoff_retries_total",
		Help: "Backoff retries by outcome kind of the failed attempt",
	}, []string{"kind"})

	gatewayRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamegate_gateway_retry_exhausted_total",
		Help: "Fetches that spent their retry budget, by last outcome kind",
	}, []string{"kind"})
)

// Gateway coordinates one shared limiter, credential pool, invoker, cache
// store, and dedup tracker across all concurrent fetches. All methods are
// safe for concurrent use.
type Gateway struct {
	limiter *ratelimit.Limiter
	pool    *keypool.Pool
	invoker *upstream.Invoker
	store   *cache.Store
	tracker *dedup.Tracker
	config  Config
	logger  zerolog.Logger
}

// New creates the orchestration core. Every component is required; zero
// config fields fall back to the defaults.
func New(cfg Config, limiter *ratelimit.Limiter, pool *keypool.Pool, invoker *upstream.Invoker, store *cache.Store, tracker *dedup.Tracker) (*Gateway, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("credential pool is required")
	}
	if invoker == nil {
		return nil, fmt.Errorf("upstream invoker is required")
	}
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("dedup tracker is required")
	}
	cfg = cfg.withDefaults()

	logger := log.With().Str("component", "gateway").Logger()

	return &Gateway{
		limiter: limiter,
		pool:    pool,
		invoker: invoker,
		store:   store,
		tracker: tracker,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Fetch returns the payload for the keyed resource, serving it from the
// cache when a fresh entry exists and calling the upstream otherwise. The
// build function supplies the upstream call shape; the gateway never
// inspects endpoint semantics. Errors carry the upstream's own message,
// verbatim.
func (g *Gateway) Fetch(ctx context.Context, key cache.Key, build upstream.RequestBuilder) ([]byte, error) {
	return g.fetch(ctx, key, build, false)
}

// ForceRefresh fetches from the upstream even when a fresh cache entry
// exists. The result still writes through to the cache on success.
func (g *Gateway) ForceRefresh(ctx context.Context, key cache.Key, build upstream.RequestBuilder) ([]byte, error) {
	return g.fetch(ctx, key, build, true)
}

func (g *Gateway) fetch(ctx context.Context, key cache.Key, build upstream.RequestBuilder, skipRead bool) ([]byte, error) {
	start := time.Now()
	logger := g.logger.With().
		Str("request_id", uuid.NewString()).
		Str("resource", key.Resource).
		Str("cache_key", key.String()).
		Logger()
	defer func() {
		gatewayFetchDuration.WithLabelValues(key.Resource).Observe(time.Since(start).Seconds())
	}()

	// Every suspension point below (cache read, admission, pool wait,
	// invocation, backoff) answers to this one deadline.
	ctx, cancel := context.WithTimeout(ctx, g.config.RequestDeadline)
	defer cancel()

	if !skipRead {
		entry, err := g.store.Get(ctx, key)
		switch {
		case err == nil:
			gatewayFetchesTotal.WithLabelValues(key.Resource, "hit").Inc()
			logger.Debug().Dur("age", entry.Age()).Msg("Cache hit")
			return entry.Payload, nil
		case errors.Is(err, cache.ErrMiss):
			logger.Debug().Msg("Cache miss")
		default:
			// A broken cache degrades to upstream fetches, it does not
			// take requests down with it.
			logger.Warn().Err(err).Msg("Cache read failed, fetching from upstream")
		}
	}

	payload, err := g.fetchUpstream(ctx, logger, key, build)
	if err != nil {
		gatewayFetchesTotal.WithLabelValues(key.Resource, "error").Inc()
		return nil, err
	}

	gatewayFetchesTotal.WithLabelValues(key.Resource, "fetched").Inc()
	return payload, nil
}

// fetchUpstream drives the admission/invoke/retry loop for one cache miss.
// Throttles rotate the credential, recoverable failures back off on the
// same one, and both budgets are bounded. Every retry re-enters the
// limiter, so retries never outrun the quota.
func (g *Gateway) fetchUpstream(ctx context.Context, logger zerolog.Logger, key cache.Key, build upstream.RequestBuilder) ([]byte, error) {
	var (
		cred      *keypool.Credential
		rotations int
		retries   int
	)

	for {
		if err := g.limiter.Acquire(ctx); err != nil {
			return nil, requestError(err)
		}

		if cred == nil {
			var err error
			cred, err = g.pool.Next(ctx)
			if err != nil {
				if errors.Is(err, keypool.ErrExhaustedCredentials) {
					logger.Error().Err(err).Msg("No usable credential within wait budget")
					return nil, &upstream.Error{
						Kind:    upstream.KindUnavailable,
						Message: "no usable credential",
						Err:     err,
					}
				}
				return nil, requestError(err)
			}
		}

		outcome, err := g.invoker.Invoke(ctx, build, cred)
		if err != nil {
			return nil, requestError(err)
		}

		switch {
		case outcome.Kind == upstream.KindSuccess:
			ttl := g.config.Policies.For(key.Resource).TTL
			if err := g.store.Put(ctx, key, outcome.Payload, ttl); err != nil {
				logger.Warn().Err(err).Msg("Cache write failed")
			} else {
				logger.Debug().Dur("ttl", ttl).Msg("Cached upstream payload")
			}
			return outcome.Payload, nil

		case outcome.Kind == upstream.KindRateLimited:
			until := time.Now().Add(g.cooldownFor(outcome))
			g.pool.Cooldown(cred, until)
			cred = nil

			rotations++
			if rotations > g.config.RotationBudget {
				logger.Warn().Int("throttles", rotations).Msg("Throttled beyond rotation budget")
				gatewayRetryExhaustedTotal.WithLabelValues(string(outcome.Kind)).Inc()
				return nil, budgetError(outcome)
			}
			gatewayRotationsTotal.Inc()
			logger.Debug().
				Int("rotation", rotations).
				Time("cooldown_until", until).
				Msg("Upstream throttled, rotating credential")

		case outcome.Kind.Retryable():
			retries++
			if retries >= g.config.Backoff.MaxAttempts {
				logger.Warn().
					Int("attempts", retries).
					Str("kind", string(outcome.Kind)).
					Msg("Recoverable failures exhausted retry budget")
				gatewayRetryExhaustedTotal.WithLabelValues(string(outcome.Kind)).Inc()
				return nil, budgetError(outcome)
			}

			delay := g.config.Backoff.DelayFor(retries)
			gatewayBackoffRetriesTotal.WithLabelValues(string(outcome.Kind)).Inc()
			logger.Debug().
				Int("attempt", retries).
				Dur("backoff", delay).
				Str("kind", string(outcome.Kind)).
				Msg("Recoverable failure, backing off")
			if err := upstream.Wait(ctx, delay); err != nil {
				return nil, requestError(err)
			}

		default:
			// Terminal: the upstream's answer is final and passes through
			// exactly as it arrived.
			return nil, outcome.Err()
		}
	}
}

// cooldownFor resolves how long a throttled credential stays parked.
// The upstream's own Retry-After hint wins over the configured default.
func (g *Gateway) cooldownFor(outcome upstream.Outcome) time.Duration {
	if outcome.RetryAfter > 0 {
		return outcome.RetryAfter
	}
	return g.config.DefaultCooldown
}

// Invalidate removes every cached entry under the given key prefix,
// returning how many were dropped. Meant to run after state-changing
// upstream calls; use cache.Prefix to scope a whole resource type.
func (g *Gateway) Invalidate(ctx context.Context, prefix string) (int, error) {
	removed, err := g.store.Invalidate(ctx, prefix)
	if err != nil {
		return removed, fmt.Errorf("invalidate %q: %w", prefix, err)
	}

	g.logger.Info().
		Str("prefix", prefix).
		Int("removed", removed).
		Msg("Cache entries invalidated")
	return removed, nil
}

// MarkProcessed records an external entity ID as handled so later runs can
// skip it. Marking is idempotent; the first call returns true.
func (g *Gateway) MarkProcessed(ctx context.Context, id string) (bool, error) {
	return g.tracker.MarkSeen(ctx, id)
}

// IsProcessed reports whether the ID was marked as handled before.
func (g *Gateway) IsProcessed(ctx context.Context, id string) (bool, error) {
	return g.tracker.Seen(ctx, id)
}

// requestError converts a context failure into the caller-visible result:
// deadline expiry becomes a timeout outcome, cancellation passes through
// as the bare context error.
func requestError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &upstream.Error{
			Kind:    upstream.KindTimeout,
			Message: "request deadline exceeded",
			Err:     err,
		}
	}
	return err
}

// budgetError is the terminal result once a retry budget is spent: an
// unavailable error that keeps the last upstream message and retry hint
// intact for the caller.
func budgetError(last upstream.Outcome) error {
	return &upstream.Error{
		Kind:       upstream.KindUnavailable,
		StatusCode: last.StatusCode,
		Message:    last.Message,
		RetryAfter: last.RetryAfter,
		Err:        upstream.ErrRetryExhausted,
	}
}
