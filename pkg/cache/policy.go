package cache

import (
	"time"
)

// DefaultTTL applies to resource types without an explicit policy.
const DefaultTTL = 5 * time.Minute

// Unbounded marks entries that never expire. Finished matches and their
// timelines are immutable, so caching them forever is safe.
const Unbounded time.Duration = 0

// Policy describes how long one resource type stays fresh.
type Policy struct {
	TTL time.Duration
}

// PolicyTable maps resource types to their TTL policies. The table is fixed
// at construction; callers never choose TTLs per request.
type PolicyTable map[string]Policy

// For returns the policy for a resource type, falling back to DefaultTTL
// for unknown types.
func (t PolicyTable) For(resource string) Policy {
	if p, ok := t[resource]; ok {
		return p
	}
	return Policy{TTL: DefaultTTL}
}

// DefaultPolicies returns the standard TTL table: immutable history is
// unbounded, volatile views are short-lived.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		"match":       {TTL: Unbounded},
		"timeline":    {TTL: Unbounded},
		"static-data": {TTL: 24 * time.Hour},
		"player":      {TTL: time.Hour},
		"ranking":     {TTL: 10 * time.Minute},
		"match-list":  {TTL: 5 * time.Minute},
		"live-match":  {TTL: 30 * time.Second},
	}
}
