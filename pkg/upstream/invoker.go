// Package upstream provides the single-attempt HTTP invoker for the
// rate-limited game-data API, with outcome classification and verbatim
// error passthrough.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kalrey/gamegate/pkg/keypool"
)

// Prometheus metrics for upstream operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamegate_upstream_requests_total",
		Help: "Total upstream attempts by outcome kind",
	}, []string{"kind"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamegate_upstream_request_duration_seconds",
		Help:    "Upstream attempt duration in seconds by outcome kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})
)

// DefaultAuthHeader carries the credential secret on upstream requests.
const DefaultAuthHeader = "X-Api-Token"

// DefaultTimeout bounds a single upstream attempt.
const DefaultTimeout = 15 * time.Second

// Config holds the invoker configuration.
type Config struct {
	// BaseURL is the upstream API root (e.g. "https://api.example.com").
	BaseURL string

	// AuthHeader names the request header carrying the credential secret.
	// Empty means DefaultAuthHeader.
	AuthHeader string

	// UserAgent identifies this service to the upstream.
	UserAgent string

	// Timeout bounds one attempt. Zero means DefaultTimeout. The caller's
	// context deadline still applies on top.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:    baseURL,
		AuthHeader: DefaultAuthHeader,
		UserAgent:  userAgent,
		Timeout:    DefaultTimeout,
	}
}

// RequestBuilder creates the outbound request for one attempt. Builders are
// invoked once per attempt so request bodies and headers are never reused
// across retries.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Invoker performs exactly one upstream HTTP call per Invoke and classifies
// what came back. Retry policy belongs to the caller.
type Invoker struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream invoker.
func New(cfg Config) (*Invoker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultAuthHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := log.With().Str("component", "upstream").Logger()

	return &Invoker{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// NewGetRequest returns a RequestBuilder for a GET against path, joined to
// the configured base URL, with the given query values.
func (inv *Invoker) NewGetRequest(path string, query url.Values) RequestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		u := strings.TrimRight(inv.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		return req, nil
	}
}

// Invoke performs one upstream attempt with the given credential and
// classifies the result. Network failures come back as outcomes, not
// errors; the error return covers request-building failures and context
// cancellation only. The credential secret goes into the auth header and
// nowhere else.
func (inv *Invoker) Invoke(ctx context.Context, build RequestBuilder, cred *keypool.Credential) (Outcome, error) {
	req, err := build(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", inv.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(inv.config.AuthHeader, cred.Secret)

	startTime := time.Now()

	resp, err := inv.httpClient.Do(req)
	if err != nil {
		// Cancellation is the caller's signal, not an upstream condition.
		if errors.Is(err, context.Canceled) {
			return Outcome{}, context.Canceled
		}

		outcome := classifyNetworkError(err)
		inv.observe(outcome, cred, time.Since(startTime))
		return outcome, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Outcome{}, context.Canceled
		}
		outcome := classifyNetworkError(err)
		inv.observe(outcome, cred, time.Since(startTime))
		return outcome, nil
	}

	outcome := classify(resp.StatusCode, resp.Header, body)
	inv.observe(outcome, cred, time.Since(startTime))
	return outcome, nil
}

// observe records metrics and a structured event for one attempt.
func (inv *Invoker) observe(outcome Outcome, cred *keypool.Credential, elapsed time.Duration) {
	upstreamRequestsTotal.WithLabelValues(string(outcome.Kind)).Inc()
	upstreamRequestDuration.WithLabelValues(string(outcome.Kind)).Observe(elapsed.Seconds())

	if outcome.Kind == KindSuccess {
		inv.logger.Debug().
			Str("key_id", cred.ID).
			Int("status", outcome.StatusCode).
			Dur("elapsed", elapsed).
			Msg("Upstream attempt succeeded")
		return
	}

	inv.logger.Warn().
		Str("key_id", cred.ID).
		Str("kind", string(outcome.Kind)).
		Int("status", outcome.StatusCode).
		Str("message", outcome.Message).
		Dur("elapsed", elapsed).
		Msg("Upstream attempt failed")
}

// classify maps one upstream response to its outcome. The mapping is fixed:
// 2xx success, 401/403 auth_error, 404 not_found, 429 rate_limited,
// 503 unavailable, other 5xx server_error, remaining 4xx client_error.
func classify(statusCode int, header http.Header, body []byte) Outcome {
	if statusCode >= 200 && statusCode < 300 {
		return Outcome{
			Kind:       KindSuccess,
			StatusCode: statusCode,
			Payload:    body,
		}
	}

	outcome := Outcome{
		StatusCode: statusCode,
		Message:    ParseErrorBody(body).Message(statusCode),
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		outcome.Kind = KindRateLimited
		outcome.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		outcome.Kind = KindAuthError
	case statusCode == http.StatusNotFound:
		outcome.Kind = KindNotFound
	case statusCode == http.StatusServiceUnavailable:
		outcome.Kind = KindUnavailable
	case statusCode >= 500:
		outcome.Kind = KindServerError
	default:
		outcome.Kind = KindClientError
	}

	return outcome
}

// classifyNetworkError maps a transport failure to its outcome. Deadline
// expiry becomes a timeout; everything else means the upstream could not be
// reached.
func classifyNetworkError(err error) Outcome {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Outcome{Kind: KindTimeout, Message: err.Error()}
	}
	return Outcome{Kind: KindUnavailable, Message: err.Error()}
}

// parseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. Returns 0 when absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
