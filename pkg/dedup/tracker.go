// Package dedup tracks which resource IDs have already been processed, so
// bulk jobs can skip work they completed in earlier runs. The set is
// persistent and carries no TTL: processed history never expires.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	// DedupMarked tracks first-time marks
	DedupMarked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamegate_dedup_marked_total",
			Help: "Total number of IDs marked as processed for the first time",
		},
	)

	// DedupDuplicates tracks marks of already-processed IDs
	DedupDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamegate_dedup_duplicates_total",
			Help: "Total number of marks that hit an already-processed ID",
		},
	)

	// DedupErrors tracks tracker operation errors
	DedupErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamegate_dedup_errors_total",
			Help: "Total number of dedup operation errors",
		},
		[]string{"operation"}, // "mark", "seen", "first_seen", "count"
	)
)

// DefaultSetKey is the Redis hash holding the processed-ID set.
const DefaultSetKey = "gamegate:processed"

// ErrNotSeen indicates the ID was never marked as processed.
var ErrNotSeen = errors.New("id never marked as processed")

// Tracker is the persistent processed-ID set with Redis backend. Each ID
// maps to the instant it was first marked; marking is idempotent and safe
// under concurrent writers.
type Tracker struct {
	redis *redis.Client
	key   string
}

// NewTracker creates a new dedup tracker with Redis backend.
func NewTracker(redisClient *redis.Client) *Tracker {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Tracker{
		redis: redisClient,
		key:   DefaultSetKey,
	}
}

// MarkSeen records the ID as processed. The first writer wins: repeated or
// concurrent marks are no-ops and the original first-seen instant survives.
// Returns true when this call inserted the ID.
func (t *Tracker) MarkSeen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("id cannot be empty")
	}

	// HSETNX gives atomic first-writer-wins semantics, which makes marking
	// commutative: any interleaving of marks yields the same set.
	inserted, err := t.redis.HSetNX(ctx, t.key, id, time.Now().UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		DedupErrors.WithLabelValues("mark").Inc()
		return false, fmt.Errorf("redis hsetnx: %w", err)
	}

	if inserted {
		DedupMarked.Inc()
	} else {
		DedupDuplicates.Inc()
	}
	return inserted, nil
}

// Seen reports whether the ID was already marked as processed.
func (t *Tracker) Seen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("id cannot be empty")
	}

	seen, err := t.redis.HExists(ctx, t.key, id).Result()
	if err != nil {
		DedupErrors.WithLabelValues("seen").Inc()
		return false, fmt.Errorf("redis hexists: %w", err)
	}
	return seen, nil
}

// FirstSeenAt returns the instant the ID was first marked.
// Returns ErrNotSeen if the ID was never marked.
func (t *Tracker) FirstSeenAt(ctx context.Context, id string) (time.Time, error) {
	if id == "" {
		return time.Time{}, fmt.Errorf("id cannot be empty")
	}

	value, err := t.redis.HGet(ctx, t.key, id).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, ErrNotSeen
		}
		DedupErrors.WithLabelValues("first_seen").Inc()
		return time.Time{}, fmt.Errorf("redis hget: %w", err)
	}

	firstSeen, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		DedupErrors.WithLabelValues("first_seen").Inc()
		return time.Time{}, fmt.Errorf("parse first-seen timestamp: %w", err)
	}
	return firstSeen, nil
}

// Count returns the number of processed IDs.
func (t *Tracker) Count(ctx context.Context) (int64, error) {
	count, err := t.redis.HLen(ctx, t.key).Result()
	if err != nil {
		DedupErrors.WithLabelValues("count").Inc()
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return count, nil
}
