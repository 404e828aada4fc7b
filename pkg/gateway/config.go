package gateway

import (
	"time"

	"github.com/kalrey/gamegate/pkg/cache"
	"github.com/kalrey/gamegate/pkg/upstream"
)

// DefaultRequestDeadline bounds one logical fetch end to end, including
// every rate-limit wait, pool wait, retry, and backoff inside it.
const DefaultRequestDeadline = 30 * time.Second

// DefaultRotationBudget is how many times a fetch rotates to a fresh
// credential after upstream throttles before giving up.
const DefaultRotationBudget = 3

// DefaultCooldown parks a throttled credential when the upstream's 429
// carried no Retry-After hint.
const DefaultCooldown = 30 * time.Second

// Config holds the orchestration settings. Construction-time only; the
// gateway is never reconfigured at runtime.
type Config struct {
	// RequestDeadline is the overall per-fetch deadline. Exceeding it
	// yields a timeout outcome instead of further retrying.
	// Zero means DefaultRequestDeadline.
	RequestDeadline time.Duration

	// RotationBudget bounds credential rotations after throttles.
	// Zero means DefaultRotationBudget.
	RotationBudget int

	// DefaultCooldown parks a throttled credential when the upstream sent
	// no Retry-After. A provided Retry-After always wins.
	// Zero means DefaultCooldown.
	DefaultCooldown time.Duration

	// Backoff is the retry schedule for recoverable upstream failures.
	// Zero fields mean upstream.DefaultBackoffConfig.
	Backoff upstream.BackoffConfig

	// Policies maps resource types to cache TTLs.
	// Nil means cache.DefaultPolicies.
	Policies cache.PolicyTable
}

// DefaultConfig returns the standard orchestration settings.
func DefaultConfig() Config {
	return Config{
		RequestDeadline: DefaultRequestDeadline,
		RotationBudget:  DefaultRotationBudget,
		DefaultCooldown: DefaultCooldown,
		Backoff:         upstream.DefaultBackoffConfig(),
		Policies:        cache.DefaultPolicies(),
	}
}

func (c Config) withDefaults() Config {
	if c.RequestDeadline <= 0 {
		c.RequestDeadline = DefaultRequestDeadline
	}
	if c.RotationBudget <= 0 {
		c.RotationBudget = DefaultRotationBudget
	}
	if c.DefaultCooldown <= 0 {
		c.DefaultCooldown = DefaultCooldown
	}
	if c.Backoff.MaxAttempts <= 0 {
		c.Backoff = upstream.DefaultBackoffConfig()
	}
	if c.Policies == nil {
		c.Policies = cache.DefaultPolicies()
	}
	return c
}
