package cache

import (
	"time"
)

// Entry is a cached upstream payload together with its expiry bookkeeping.
type Entry struct {
	// Payload is the successful upstream response body.
	Payload []byte `json:"payload"`

	// StoredAt is when the payload was written to the cache.
	StoredAt time.Time `json:"stored_at"`

	// TTL is how long the entry stays fresh after StoredAt.
	// Zero means the entry never expires (immutable history).
	TTL time.Duration `json:"ttl"`
}

// ExpiresAt returns the instant the entry becomes stale. The second return
// is false for unbounded entries, which never expire.
func (e *Entry) ExpiresAt() (time.Time, bool) {
	if e.TTL <= 0 {
		return time.Time{}, false
	}
	return e.StoredAt.Add(e.TTL), true
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	expires, bounded := e.ExpiresAt()
	if !bounded {
		return false
	}
	return time.Now().After(expires)
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.StoredAt)
}
