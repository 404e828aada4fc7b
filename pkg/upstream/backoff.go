package upstream

import (
	"context"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gamegate_upstream_backoff_seconds",
		Help:    "Backoff duration before upstream retries",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	})
)

// BackoffConfig holds the retry schedule for recoverable upstream failures.
type BackoffConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the backoff before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultBackoffConfig returns the default backoff schedule.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DelayFor returns the jittered backoff preceding the given retry (1 is the
// first retry after the initial attempt). Jitter is ±20% to prevent
// thundering herd.
func (c BackoffConfig) DelayFor(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}

	backoff := float64(c.InitialBackoff)
	for i := 1; i < retry; i++ {
		backoff *= c.BackoffMultiplier
		if backoff >= float64(c.MaxBackoff) {
			backoff = float64(c.MaxBackoff)
			break
		}
	}

	// Add jitter (±20% randomness)
	return time.Duration(backoff * (0.8 + rand.Float64()*0.4))
}

// Wait sleeps for the given backoff with context cancellation support.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	upstreamBackoffSeconds.Observe(d.Seconds())

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
