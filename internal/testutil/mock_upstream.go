// Package testutil provides testing utilities for the gamegate core.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AuthHeader is the request header the upstream reads credentials from.
const AuthHeader = "X-Api-Token"

// MockResponse defines the behavior for a mock upstream endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable mock game-data API server. It records
// every request's credential so tests can assert rotation behavior.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount    int
	credentialsSeen []string
	lastHeader      http.Header
}

// NewMockUpstream creates a mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.credentialsSeen = append(mock.credentialsSeen, r.Header.Get(AuthHeader))
		mock.lastHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.credentialsSeen = nil
	m.lastHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests the server received.
func (m *MockUpstream) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// CredentialsSeen returns the credential secret of every request, in
// arrival order.
func (m *MockUpstream) CredentialsSeen() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make([]string, len(m.credentialsSeen))
	copy(seen, m.credentialsSeen)
	return seen
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockUpstream) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// defaultHandler answers paths without a configured handler.
func (m *MockUpstream) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

// ErrorEnvelope renders the upstream's structured error body:
//
//	{"status": {"status_code": 404, "message": "Data not found"}}
func ErrorEnvelope(statusCode int, message string) string {
	return fmt.Sprintf(`{"status":{"status_code":%d,"message":%q}}`, statusCode, message)
}

// NewPayloadResponse creates a standard 200 OK response with a JSON body.
func NewPayloadResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewErrorResponse creates an error response carrying the structured
// envelope the upstream emits.
func NewErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body:       ErrorEnvelope(statusCode, message),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewThrottleResponse creates a 429 with a Retry-After hint in seconds.
// Zero omits the header, like upstream throttles that carry no hint.
func NewThrottleResponse(retryAfter time.Duration) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       ErrorEnvelope(http.StatusTooManyRequests, "Rate limit exceeded"),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
	if retryAfter > 0 {
		resp.Headers["Retry-After"] = strconv.Itoa(int(retryAfter.Seconds()))
	}
	return resp
}

// NewThrottledHandler simulates the upstream's own quota enforcement: a
// token bucket admits requests and everything beyond it gets a 429 with
// a Retry-After hint, like the real API under load.
func NewThrottledHandler(rps float64, burst int, data string) http.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()

			seconds := int(delay.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(ErrorEnvelope(http.StatusTooManyRequests, "Rate limit exceeded")))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}

// NewFlakyHandler fails the first n requests with the given response,
// then serves the payload. Used to exercise retry behavior.
func NewFlakyHandler(failures int, failWith MockResponse, data string) http.HandlerFunc {
	var mu sync.Mutex
	served := 0

	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		served++
		failing := served <= failures
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if failing {
			for key, value := range failWith.Headers {
				w.Header().Set(key, value)
			}
			w.WriteHeader(failWith.StatusCode)
			w.Write([]byte(failWith.Body))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
