package keypool

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

var (
	keypoolHandouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamegate_keypool_handouts_total",
		Help: "Credentials handed out by the pool, labeled by credential ID.",
	}, []string{"key_id"})

	keypoolCooldowns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamegate_keypool_cooldowns_total",
		Help: "Cooldowns applied to credentials, labeled by credential ID.",
	}, []string{"key_id"})

	keypoolCooling = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gamegate_keypool_cooling_keys",
		Help: "Number of credentials currently in cooldown.",
	})

	keypoolExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamegate_keypool_exhausted_total",
		Help: "Times the pool gave up because every credential was cooling beyond the wait budget.",
	})
)

// DefaultMaxWait bounds how long Next blocks when every credential is
// cooling before giving up with ErrExhaustedCredentials.
const DefaultMaxWait = 10 * time.Second

var (
	// ErrNoCredentials is returned by New when the credential list is empty.
	ErrNoCredentials = errors.New("keypool: no credentials configured")

	// ErrExhaustedCredentials is returned by Next when every credential is
	// cooling and none will heal within the wait budget.
	ErrExhaustedCredentials = errors.New("keypool: all credentials cooling")
)

// Config holds the pool settings.
type Config struct {
	// Credentials is the set of upstream credentials to rotate across.
	// Must not be empty.
	Credentials []Credential

	// MaxWait bounds how long Next blocks when every credential is cooling.
	// Zero means DefaultMaxWait.
	MaxWait time.Duration
}

// Pool hands out credentials in round-robin order, skipping any that are
// cooling after an upstream throttle. All methods are safe for concurrent
// use.
type Pool struct {
	mu      sync.Mutex
	creds   []*Credential
	cursor  int
	maxWait time.Duration
	logger  zerolog.Logger
}

// New creates a credential pool. Credentials are copied, so the caller's
// slice may be reused.
func New(cfg Config, logger zerolog.Logger) (*Pool, error) {
	if len(cfg.Credentials) == 0 {
		return nil, ErrNoCredentials
	}
	if cfg.MaxWait < 0 {
		return nil, fmt.Errorf("keypool: max wait must not be negative, got %v", cfg.MaxWait)
	}

	maxWait := cfg.MaxWait
	if maxWait == 0 {
		maxWait = DefaultMaxWait
	}

	seen := make(map[string]struct{}, len(cfg.Credentials))
	creds := make([]*Credential, 0, len(cfg.Credentials))
	for i, c := range cfg.Credentials {
		if c.ID == "" {
			return nil, fmt.Errorf("keypool: credential %d has empty ID", i)
		}
		if c.Secret == "" {
			return nil, fmt.Errorf("keypool: credential %q has empty secret", c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("keypool: duplicate credential ID %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		creds = append(creds, &Credential{ID: c.ID, Secret: c.Secret})
	}

	logger.Info().
		Int("credentials", len(creds)).
		Dur("max_wait", maxWait).
		Msg("Credential pool initialized")

	return &Pool{
		creds:   creds,
		maxWait: maxWait,
		logger:  logger,
	}, nil
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.creds)
}

// Next returns the next usable credential in round-robin order. Cooling
// credentials are skipped; a cooled credential re-enters the rotation on its
// own once its cooldown passes. When every credential is cooling, Next
// blocks until the earliest cooldown ends, the context is done, or the
// earliest cooldown lies beyond the pool's wait budget, in which case it
// fails fast with ErrExhaustedCredentials.
func (p *Pool) Next(ctx context.Context) (*Credential, error) {
	deadline := time.Now().Add(p.maxWait)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.Lock()
		now := time.Now()
		n := len(p.creds)
		for i := 0; i < n; i++ {
			idx := (p.cursor + i) % n
			c := p.creds[idx]
			if c.State(now) == StateHealthy {
				p.cursor = (idx + 1) % n
				p.updateCoolingGauge(now)
				p.mu.Unlock()

				keypoolHandouts.WithLabelValues(c.ID).Inc()
				return c, nil
			}
		}

		earliest := p.creds[0].coolingUntil
		for _, c := range p.creds[1:] {
			if c.coolingUntil.Before(earliest) {
				earliest = c.coolingUntil
			}
		}
		p.updateCoolingGauge(now)
		p.mu.Unlock()

		if earliest.After(deadline) {
			keypoolExhausted.Inc()
			p.logger.Error().
				Time("earliest_heal", earliest).
				Dur("max_wait", p.maxWait).
				Msg("Credential pool exhausted")
			return nil, fmt.Errorf("%w: earliest cooldown ends in %v, wait budget is %v",
				ErrExhaustedCredentials, earliest.Sub(now).Round(time.Millisecond), p.maxWait)
		}

		p.logger.Debug().
			Dur("wait", earliest.Sub(now)).
			Msg("All credentials cooling, waiting for earliest heal")

		timer := time.NewTimer(earliest.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Cooldown parks the credential until the given time. Later calls can only
// extend a cooldown, never shorten it, so overlapping throttle responses
// resolve to the longest requested pause. Calling it again with the same or
// an earlier time is a no-op.
func (p *Pool) Cooldown(c *Credential, until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !until.After(c.coolingUntil) {
		return
	}
	c.coolingUntil = until
	p.updateCoolingGauge(time.Now())

	keypoolCooldowns.WithLabelValues(c.ID).Inc()
	p.logger.Warn().
		Str("key_id", c.ID).
		Time("until", until).
		Msg("Credential placed in cooldown")
}

// updateCoolingGauge recounts cooling credentials. Callers must hold p.mu.
func (p *Pool) updateCoolingGauge(now time.Time) {
	cooling := 0
	for _, c := range p.creds {
		if c.State(now) == StateCooling {
			cooling++
		}
	}
	keypoolCooling.Set(float64(cooling))
}
