// Package keypool rotates outbound calls across upstream API credentials
// and tracks per-credential throttle cooldowns.
package keypool

import (
	"time"
)

// State classifies a credential at a point in time.
type State string

const (
	// StateHealthy means the credential may be handed out.
	StateHealthy State = "healthy"

	// StateCooling means the credential was throttled and is parked until
	// its cooldown passes.
	StateCooling State = "cooling"
)

// Credential is one upstream API credential. ID identifies the credential in
// logs and metrics; Secret is the token sent to the upstream and never
// appears in either.
type Credential struct {
	ID     string
	Secret string

	// coolingUntil is guarded by the owning pool's mutex.
	coolingUntil time.Time
}

// State reports whether the credential is usable at the given instant.
// A cooling credential heals automatically once coolingUntil passes.
func (c *Credential) State(now time.Time) State {
	if now.Before(c.coolingUntil) {
		return StateCooling
	}
	return StateHealthy
}

// CoolingUntil returns the end of the current cooldown. The zero time means
// the credential was never cooled.
func (c *Credential) CoolingUntil() time.Time {
	return c.coolingUntil
}
