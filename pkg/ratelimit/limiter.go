// Package ratelimit implements the dual-window admission gate that keeps
// outbound upstream traffic inside the request quota. Every outbound call
// acquires from two independent rolling windows (a short burst window and a
// long sustained window); both must admit the call before it proceeds.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for admission control.
var (
	acquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamegate_ratelimit_acquired_total",
		Help: "Total number of admissions granted by the dual-window limiter",
	})

	acquireWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gamegate_ratelimit_wait_seconds",
		Help:    "Time spent waiting for admission",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	acquireCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamegate_ratelimit_cancelled_total",
		Help: "Total number of waiters cancelled before admission",
	})
)

// ErrCostTooLarge is returned when an acquisition cost exceeds a window
// capacity and could therefore never be admitted.
var ErrCostTooLarge = errors.New("cost exceeds window capacity")

// WindowConfig describes one rolling window: at most Capacity admissions
// within any interval of Length.
type WindowConfig struct {
	Capacity int
	Length   time.Duration
}

// Config holds the limiter configuration.
type Config struct {
	// Short is the burst window (e.g. 20 requests per second).
	Short WindowConfig

	// Long is the sustained window (e.g. 100 requests per 2 minutes).
	Long WindowConfig
}

// DefaultConfig returns the standard development-tier quota.
func DefaultConfig() Config {
	return Config{
		Short: WindowConfig{Capacity: 20, Length: 1 * time.Second},
		Long:  WindowConfig{Capacity: 100, Length: 2 * time.Minute},
	}
}

// Limiter gates outbound calls on two rolling windows. One instance is
// shared by all in-flight requests; Acquire parks the caller without
// busy-waiting until both windows admit the cost.
type Limiter struct {
	mu     sync.Mutex
	short  *window
	long   *window
	logger zerolog.Logger
}

// New creates a dual-window limiter.
func New(cfg Config, logger zerolog.Logger) (*Limiter, error) {
	if cfg.Short.Capacity <= 0 || cfg.Long.Capacity <= 0 {
		return nil, fmt.Errorf("window capacity must be positive (short %d, long %d)",
			cfg.Short.Capacity, cfg.Long.Capacity)
	}
	if cfg.Short.Length <= 0 || cfg.Long.Length <= 0 {
		return nil, fmt.Errorf("window length must be positive (short %v, long %v)",
			cfg.Short.Length, cfg.Long.Length)
	}

	return &Limiter{
		short:  newWindow(cfg.Short),
		long:   newWindow(cfg.Long),
		logger: logger,
	}, nil
}

// Acquire admits one call, blocking until both windows have a free token.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.AcquireN(ctx, 1)
}

// AcquireN admits a call of the given cost, blocking until both windows can
// cover it, then debits both atomically. The effective wait is the maximum
// of the two windows' individual waits. A caller cancelled while waiting
// consumes no tokens. Waiters are not served in strict FIFO order, but every
// waiter is woken as soon as capacity can exist for it.
func (l *Limiter) AcquireN(ctx context.Context, cost int) error {
	if cost <= 0 {
		return fmt.Errorf("cost must be positive (got %d)", cost)
	}
	if cost > l.short.capacity || cost > l.long.capacity {
		return fmt.Errorf("%w: cost %d, short %d, long %d",
			ErrCostTooLarge, cost, l.short.capacity, l.long.capacity)
	}

	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			acquireCancelledTotal.Inc()
			return err
		}

		l.mu.Lock()
		now := time.Now()
		wait := l.short.waitFor(now, cost)
		if longWait := l.long.waitFor(now, cost); longWait > wait {
			wait = longWait
		}
		if wait <= 0 {
			l.short.spend(now, cost)
			l.long.spend(now, cost)
			l.mu.Unlock()

			acquiresTotal.Inc()
			acquireWaitSeconds.Observe(time.Since(start).Seconds())
			return nil
		}
		l.mu.Unlock()

		l.logger.Debug().
			Dur("wait", wait).
			Int("cost", cost).
			Msg("Admission blocked, parking until a token returns")

		// Park until the gating window can possibly admit the cost, then
		// re-check: another waiter may have claimed the returned token first.
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			acquireCancelledTotal.Inc()
			l.logger.Debug().
				Dur("waited", time.Since(start)).
				Msg("Waiter cancelled before admission")
			return ctx.Err()
		case <-timer.C:
		}
	}
}
