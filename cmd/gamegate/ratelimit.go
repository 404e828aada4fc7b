package main

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var inboundRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gamegate_inbound_rejected_total",
	Help: "Inbound requests rejected by the per-client limiter",
})

// clientLimiter protects the daemon itself: each client gets a token
// bucket, and idle buckets are swept periodically. This is separate from
// the upstream admission limiter, which guards the shared quota.
type clientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = int(rps) * 2
	}
	return &clientLimiter{
		buckets: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

// get returns the bucket for a client key, creating it on first sight.
func (cl *clientLimiter) get(key string) *rate.Limiter {
	now := time.Now()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if b, ok := cl.buckets[key]; ok {
		b.lastSeen = now
		return b.lim
	}

	lim := rate.NewLimiter(cl.rps, cl.burst)
	cl.buckets[key] = &clientBucket{lim: lim, lastSeen: now}
	return lim
}

// cleanup drops buckets idle past the TTL.
func (cl *clientLimiter) cleanup() {
	cutoff := time.Now().Add(-cl.idleTTL)

	cl.mu.Lock()
	defer cl.mu.Unlock()

	for key, b := range cl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(cl.buckets, key)
		}
	}
}

// startJanitor sweeps idle buckets until the context ends.
func (cl *clientLimiter) startJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cl.cleanup()
			}
		}
	}()
}

// middleware rejects clients that outrun their bucket with a 429 and a
// one-second retry hint.
func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cl.get(clientKey(r)).Allow() {
			inboundRejectedTotal.Inc()
			w.Header().Set("Retry-After", "1")
			writeErrorEnvelope(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies one caller. RealIP middleware already folded
// X-Forwarded-For into RemoteAddr, so the host part is enough.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
