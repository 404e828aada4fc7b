package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kalrey/gamegate/internal/testutil"
	"github.com/kalrey/gamegate/pkg/cache"
	"github.com/kalrey/gamegate/pkg/dedup"
	"github.com/kalrey/gamegate/pkg/keypool"
	"github.com/kalrey/gamegate/pkg/ratelimit"
	"github.com/kalrey/gamegate/pkg/upstream"
)

// setupTestRedis creates a test Redis client. Uses a DB separate from the
// cache package's tests so parallel package runs never flush each other.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   14,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func testCredentials(n int) []keypool.Credential {
	creds := make([]keypool.Credential, n)
	for i := range creds {
		creds[i] = keypool.Credential{
			ID:     fmt.Sprintf("key-%d", i+1),
			Secret: fmt.Sprintf("secret-%d", i+1),
		}
	}
	return creds
}

// testConfig returns fast-turnaround orchestration settings.
func testConfig() Config {
	return Config{
		RequestDeadline: 5 * time.Second,
		RotationBudget:  3,
		DefaultCooldown: 100 * time.Millisecond,
		Backoff: upstream.BackoffConfig{
			MaxAttempts:       3,
			InitialBackoff:    10 * time.Millisecond,
			MaxBackoff:        50 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		Policies: cache.DefaultPolicies(),
	}
}

func newTestGateway(t *testing.T, client *redis.Client, upstreamURL string, creds []keypool.Credential, poolMaxWait time.Duration, cfg Config) *Gateway {
	t.Helper()

	limiter, err := ratelimit.New(ratelimit.Config{
		Short: ratelimit.WindowConfig{Capacity: 100, Length: time.Second},
		Long:  ratelimit.WindowConfig{Capacity: 1000, Length: time.Minute},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("ratelimit.New() error = %v", err)
	}

	pool, err := keypool.New(keypool.Config{Credentials: creds, MaxWait: poolMaxWait}, zerolog.Nop())
	if err != nil {
		t.Fatalf("keypool.New() error = %v", err)
	}

	invoker, err := upstream.New(upstream.DefaultConfig(upstreamURL, "gamegate-test/1.0"))
	if err != nil {
		t.Fatalf("upstream.New() error = %v", err)
	}

	gw, err := New(cfg, limiter, pool, invoker, cache.NewStore(client), dedup.NewTracker(client))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw
}

func TestNew_Validation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	limiter, _ := ratelimit.New(ratelimit.DefaultConfig(), zerolog.Nop())
	pool, _ := keypool.New(keypool.Config{Credentials: testCredentials(1)}, zerolog.Nop())
	invoker, _ := upstream.New(upstream.DefaultConfig("https://api.example.com", "test/1.0"))
	store := cache.NewStore(client)
	tracker := dedup.NewTracker(client)

	tests := []struct {
		name    string
		build   func() (*Gateway, error)
		wantErr bool
	}{
		{
			name: "all components",
			build: func() (*Gateway, error) {
				return New(DefaultConfig(), limiter, pool, invoker, store, tracker)
			},
		},
		{
			name: "nil limiter",
			build: func() (*Gateway, error) {
				return New(DefaultConfig(), nil, pool, invoker, store, tracker)
			},
			wantErr: true,
		},
		{
			name: "nil pool",
			build: func() (*Gateway, error) {
				return New(DefaultConfig(), limiter, nil, invoker, store, tracker)
			},
			wantErr: true,
		},
		{
			name: "nil invoker",
			build: func() (*Gateway, error) {
				return New(DefaultConfig(), limiter, pool, nil, store, tracker)
			},
			wantErr: true,
		},
		{
			name: "nil store",
			build: func() (*Gateway, error) {
				return New(DefaultConfig(), limiter, pool, invoker, nil, tracker)
			},
			wantErr: true,
		},
		{
			name: "nil tracker",
			build: func() (*Gateway, error) {
				return New(DefaultConfig(), limiter, pool, invoker, store, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_ConfigDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	limiter, _ := ratelimit.New(ratelimit.DefaultConfig(), zerolog.Nop())
	pool, _ := keypool.New(keypool.Config{Credentials: testCredentials(1)}, zerolog.Nop())
	invoker, _ := upstream.New(upstream.DefaultConfig("https://api.example.com", "test/1.0"))

	gw, err := New(Config{}, limiter, pool, invoker, cache.NewStore(client), dedup.NewTracker(client))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if gw.config.RequestDeadline != DefaultRequestDeadline {
		t.Errorf("RequestDeadline = %v, want %v", gw.config.RequestDeadline, DefaultRequestDeadline)
	}
	if gw.config.RotationBudget != DefaultRotationBudget {
		t.Errorf("RotationBudget = %d, want %d", gw.config.RotationBudget, DefaultRotationBudget)
	}
	if gw.config.DefaultCooldown != DefaultCooldown {
		t.Errorf("DefaultCooldown = %v, want %v", gw.config.DefaultCooldown, DefaultCooldown)
	}
	if gw.config.Backoff.MaxAttempts != 3 {
		t.Errorf("Backoff.MaxAttempts = %d, want 3", gw.config.Backoff.MaxAttempts)
	}
	if gw.config.Policies == nil {
		t.Error("Policies not defaulted")
	}
}

func TestFetch_MissThenHit(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	payload := `{"name":"rekkles","level":523}`
	mock.SetResponse("/player/profile", testutil.NewPayloadResponse(payload))

	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, testConfig())
	key := cache.Key{Resource: "player", Params: map[string]string{"id": "rekkles"}}
	build := gw.invoker.NewGetRequest("/player/profile", nil)
	ctx := context.Background()

	got, err := gw.Fetch(ctx, key, build)
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	if string(got) != payload {
		t.Errorf("first Fetch() = %s, want %s", got, payload)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("upstream requests = %d, want 1", mock.RequestCount())
	}

	// The second fetch must come from the cache without an upstream call.
	got, err = gw.Fetch(ctx, key, build)
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if string(got) != payload {
		t.Errorf("second Fetch() = %s, want %s", got, payload)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("upstream requests after cache hit = %d, want 1", mock.RequestCount())
	}
}

func TestFetch_ErrorOutcomesNeverCached(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/player/profile", testutil.NewErrorResponse(404, "Data not found"))

	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, testConfig())
	key := cache.Key{Resource: "player", Params: map[string]string{"id": "ghost"}}
	build := gw.invoker.NewGetRequest("/player/profile", nil)
	ctx := context.Background()

	if _, err := gw.Fetch(ctx, key, build); err == nil {
		t.Fatal("Fetch() of missing resource should fail")
	}

	if _, err := gw.store.Get(ctx, key); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("error outcome was cached: store.Get() = %v, want ErrMiss", err)
	}

	// Once the upstream recovers, the next fetch must reach it again and
	// succeed rather than replaying a cached failure.
	mock.SetResponse("/player/profile", testutil.NewPayloadResponse(`{"name":"ghost"}`))
	got, err := gw.Fetch(ctx, key, build)
	if err != nil {
		t.Fatalf("Fetch() after recovery error = %v", err)
	}
	if string(got) != `{"name":"ghost"}` {
		t.Errorf("Fetch() after recovery = %s", got)
	}
}

func TestFetch_ThrottleRotatesCredential(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	payload := `{"matchId":"EUW1_1"}`
	mock.SetHandler("/match/EUW1_1", testutil.NewFlakyHandler(1, testutil.NewThrottleResponse(time.Second), payload))

	gw := newTestGateway(t, client, mock.URL(), testCredentials(2), 2*time.Second, testConfig())
	key := cache.Key{Resource: "match", Params: map[string]string{"id": "EUW1_1"}}
	build := gw.invoker.NewGetRequest("/match/EUW1_1", nil)

	got, err := gw.Fetch(context.Background(), key, build)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != payload {
		t.Errorf("Fetch() = %s, want %s", got, payload)
	}

	seen := mock.CredentialsSeen()
	if len(seen) != 2 {
		t.Fatalf("upstream requests = %d, want 2", len(seen))
	}
	if seen[0] != "secret-1" || seen[1] != "secret-2" {
		t.Errorf("credentials seen = %v, want rotation from secret-1 to secret-2", seen)
	}

	// The throttled credential stays out of rotation while cooling.
	next, err := gw.pool.Next(context.Background())
	if err != nil {
		t.Fatalf("pool.Next() error = %v", err)
	}
	if next.ID == "key-1" {
		t.Error("throttled credential handed out while still cooling")
	}
}

func TestFetch_RetryAfterHintWinsOverDefault(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	payload := `{"ok":true}`
	mock.SetHandler("/ranking/top", testutil.NewFlakyHandler(1, testutil.NewThrottleResponse(time.Second), payload))

	// A huge default cooldown proves the 1s upstream hint took precedence:
	// with only one credential the fetch can only finish once it heals.
	cfg := testConfig()
	cfg.DefaultCooldown = 10 * time.Minute
	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), 3*time.Second, cfg)

	key := cache.Key{Resource: "ranking", Params: map[string]string{"queue": "top"}}
	build := gw.invoker.NewGetRequest("/ranking/top", nil)

	start := time.Now()
	got, err := gw.Fetch(context.Background(), key, build)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != payload {
		t.Errorf("Fetch() = %s, want %s", got, payload)
	}
	if elapsed < 900*time.Millisecond {
		t.Errorf("Fetch() finished after %v, want >= ~1s (upstream hint)", elapsed)
	}
	if elapsed > 3*time.Second {
		t.Errorf("Fetch() took %v, the 10m default cooldown must not apply", elapsed)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2", mock.RequestCount())
	}
}

func TestFetch_DefaultCooldownWhenNoHint(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	payload := `{"ok":true}`
	// Retry-After of zero omits the header entirely.
	mock.SetHandler("/ranking/solo", testutil.NewFlakyHandler(1, testutil.NewThrottleResponse(0), payload))

	cfg := testConfig()
	cfg.DefaultCooldown = 150 * time.Millisecond
	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, cfg)

	key := cache.Key{Resource: "ranking", Params: map[string]string{"queue": "solo"}}
	build := gw.invoker.NewGetRequest("/ranking/solo", nil)

	start := time.Now()
	if _, err := gw.Fetch(context.Background(), key, build); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Errorf("Fetch() finished after %v, want >= configured 150ms cooldown", elapsed)
	}
}

func TestFetch_ThrottleBudgetExhausted(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/match/EUW1_2", testutil.NewThrottleResponse(time.Second))

	cfg := testConfig()
	cfg.RotationBudget = 1
	gw := newTestGateway(t, client, mock.URL(), testCredentials(2), time.Second, cfg)

	key := cache.Key{Resource: "match", Params: map[string]string{"id": "EUW1_2"}}
	build := gw.invoker.NewGetRequest("/match/EUW1_2", nil)

	_, err := gw.Fetch(context.Background(), key, build)
	if err == nil {
		t.Fatal("Fetch() should fail once the rotation budget is spent")
	}

	var ue *upstream.Error
	if !errors.As(err, &ue) {
		t.Fatalf("Fetch() error = %v, want *upstream.Error", err)
	}
	if ue.Kind != upstream.KindUnavailable {
		t.Errorf("Kind = %s, want %s", ue.Kind, upstream.KindUnavailable)
	}
	if !errors.Is(err, upstream.ErrRetryExhausted) {
		t.Error("error should wrap ErrRetryExhausted")
	}
	if ue.Message != "Rate limit exceeded" {
		t.Errorf("Message = %q, want the upstream text preserved", ue.Message)
	}
	if ue.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want the upstream hint preserved", ue.RetryAfter)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2 (initial + 1 rotation)", mock.RequestCount())
	}
}

func TestFetch_RecoverableRetriesKeepCredential(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	payload := `{"timeline":[]}`
	mock.SetHandler("/timeline/EUW1_3", testutil.NewFlakyHandler(2, testutil.NewErrorResponse(500, "Internal error"), payload))

	gw := newTestGateway(t, client, mock.URL(), testCredentials(2), time.Second, testConfig())
	key := cache.Key{Resource: "timeline", Params: map[string]string{"id": "EUW1_3"}}
	build := gw.invoker.NewGetRequest("/timeline/EUW1_3", nil)

	got, err := gw.Fetch(context.Background(), key, build)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != payload {
		t.Errorf("Fetch() = %s, want %s", got, payload)
	}

	seen := mock.CredentialsSeen()
	if len(seen) != 3 {
		t.Fatalf("upstream requests = %d, want 3 (2 failures + success)", len(seen))
	}
	for i, secret := range seen {
		if secret != "secret-1" {
			t.Errorf("attempt %d used %s; recoverable retries must keep the credential", i, secret)
		}
	}
}

func TestFetch_RecoverableBudgetExhausted(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/static-data/items", testutil.NewErrorResponse(502, "bad gateway upstream"))

	cfg := testConfig()
	cfg.Backoff.MaxAttempts = 2
	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, cfg)

	key := cache.Key{Resource: "static-data", Params: map[string]string{"set": "items"}}
	build := gw.invoker.NewGetRequest("/static-data/items", nil)

	_, err := gw.Fetch(context.Background(), key, build)
	var ue *upstream.Error
	if !errors.As(err, &ue) {
		t.Fatalf("Fetch() error = %v, want *upstream.Error", err)
	}
	if ue.Kind != upstream.KindUnavailable {
		t.Errorf("Kind = %s, want %s", ue.Kind, upstream.KindUnavailable)
	}
	if ue.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502", ue.StatusCode)
	}
	if ue.Message != "bad gateway upstream" {
		t.Errorf("Message = %q, want the upstream text preserved", ue.Message)
	}
	if !errors.Is(err, upstream.ErrRetryExhausted) {
		t.Error("error should wrap ErrRetryExhausted")
	}
	if mock.RequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2 attempts", mock.RequestCount())
	}
}

func TestFetch_TerminalErrorPassthrough(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/player/profile", testutil.NewErrorResponse(404, "X"))

	gw := newTestGateway(t, client, mock.URL(), testCredentials(2), time.Second, testConfig())
	key := cache.Key{Resource: "player", Params: map[string]string{"id": "unknown"}}
	build := gw.invoker.NewGetRequest("/player/profile", nil)

	_, err := gw.Fetch(context.Background(), key, build)

	var ue *upstream.Error
	if !errors.As(err, &ue) {
		t.Fatalf("Fetch() error = %v, want *upstream.Error", err)
	}
	if ue.Kind != upstream.KindNotFound {
		t.Errorf("Kind = %s, want %s", ue.Kind, upstream.KindNotFound)
	}
	if ue.Message != "X" {
		t.Errorf("Message = %q, want exactly %q", ue.Message, "X")
	}
	if mock.RequestCount() != 1 {
		t.Errorf("upstream requests = %d, want 1 (terminal errors never retry)", mock.RequestCount())
	}
}

func TestFetch_DeadlineYieldsTimeout(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/live-match/p1", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"live":true}`,
		Delay:      300 * time.Millisecond,
	})

	cfg := testConfig()
	cfg.RequestDeadline = 100 * time.Millisecond
	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, cfg)

	key := cache.Key{Resource: "live-match", Params: map[string]string{"id": "p1"}}
	build := gw.invoker.NewGetRequest("/live-match/p1", nil)

	_, err := gw.Fetch(context.Background(), key, build)

	var ue *upstream.Error
	if !errors.As(err, &ue) {
		t.Fatalf("Fetch() error = %v, want *upstream.Error", err)
	}
	if ue.Kind != upstream.KindTimeout {
		t.Errorf("Kind = %s, want %s", ue.Kind, upstream.KindTimeout)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout should wrap context.DeadlineExceeded")
	}
}

func TestFetch_CancellationPassesThroughBare(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, testConfig())
	key := cache.Key{Resource: "player", Params: map[string]string{"id": "p1"}}
	build := gw.invoker.NewGetRequest("/player/profile", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Fetch(ctx, key, build)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}

	var ue *upstream.Error
	if errors.As(err, &ue) {
		t.Errorf("cancellation surfaced as %s outcome, want the bare context error", ue.Kind)
	}
}

func TestFetch_ExhaustedCredentialsIsUnavailable(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), 50*time.Millisecond, testConfig())

	cred, err := gw.pool.Next(context.Background())
	if err != nil {
		t.Fatalf("pool.Next() error = %v", err)
	}
	gw.pool.Cooldown(cred, time.Now().Add(time.Hour))

	key := cache.Key{Resource: "player", Params: map[string]string{"id": "p1"}}
	build := gw.invoker.NewGetRequest("/player/profile", nil)

	_, err = gw.Fetch(context.Background(), key, build)

	var ue *upstream.Error
	if !errors.As(err, &ue) {
		t.Fatalf("Fetch() error = %v, want *upstream.Error", err)
	}
	if ue.Kind != upstream.KindUnavailable {
		t.Errorf("Kind = %s, want %s", ue.Kind, upstream.KindUnavailable)
	}
	if !errors.Is(err, keypool.ErrExhaustedCredentials) {
		t.Error("error should wrap keypool.ErrExhaustedCredentials")
	}
	if mock.RequestCount() != 0 {
		t.Errorf("upstream requests = %d, want 0", mock.RequestCount())
	}
}

func TestForceRefresh_SkipsReadStillWrites(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	fresh := `{"name":"rekkles","level":524}`
	mock.SetResponse("/player/profile", testutil.NewPayloadResponse(fresh))

	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, testConfig())
	key := cache.Key{Resource: "player", Params: map[string]string{"id": "rekkles"}}
	build := gw.invoker.NewGetRequest("/player/profile", nil)
	ctx := context.Background()

	stale := []byte(`{"name":"rekkles","level":1}`)
	if err := gw.store.Put(ctx, key, stale, time.Hour); err != nil {
		t.Fatalf("seeding cache failed: %v", err)
	}

	got, err := gw.ForceRefresh(ctx, key, build)
	if err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}
	if string(got) != fresh {
		t.Errorf("ForceRefresh() = %s, want the upstream payload", got)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("upstream requests = %d, want 1", mock.RequestCount())
	}

	// Write-through must have replaced the stale entry.
	entry, err := gw.store.Get(ctx, key)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if string(entry.Payload) != fresh {
		t.Errorf("cached payload = %s, want the refreshed one", entry.Payload)
	}
}

func TestInvalidate_RemovesMatchingEntries(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, testConfig())
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		key := cache.Key{Resource: "player", Params: map[string]string{"id": id}}
		if err := gw.store.Put(ctx, key, []byte(`{}`), time.Minute); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	removed, err := gw.Invalidate(ctx, cache.Prefix("player"))
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Invalidate() removed %d, want 2", removed)
	}
}

func TestMarkProcessed_Idempotent(t *testing.T) {
	client := setupTestRedis(t)
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	gw := newTestGateway(t, client, mock.URL(), testCredentials(1), time.Second, testConfig())
	ctx := context.Background()

	inserted, err := gw.MarkProcessed(ctx, "EUW1_9001")
	if err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if !inserted {
		t.Error("first MarkProcessed() = false, want true")
	}

	inserted, err = gw.MarkProcessed(ctx, "EUW1_9001")
	if err != nil {
		t.Fatalf("second MarkProcessed() error = %v", err)
	}
	if inserted {
		t.Error("second MarkProcessed() = true, want false")
	}

	seen, err := gw.IsProcessed(ctx, "EUW1_9001")
	if err != nil {
		t.Fatalf("IsProcessed() error = %v", err)
	}
	if !seen {
		t.Error("IsProcessed() = false after marking")
	}
}
