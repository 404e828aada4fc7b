package upstream

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the upstream layer.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// Kind classifies the result of one upstream attempt.
type Kind string

const (
	// KindSuccess is a 2xx response carrying a payload.
	KindSuccess Kind = "success"

	// KindClientError is a malformed or unsupported request (400 and
	// unlisted 4xx). Terminal; retrying cannot change the answer.
	KindClientError Kind = "client_error"

	// KindAuthError is a rejected credential (401, 403). Terminal.
	KindAuthError Kind = "auth_error"

	// KindNotFound is a missing resource (404). Terminal.
	KindNotFound Kind = "not_found"

	// KindRateLimited is an upstream throttle (429), optionally carrying a
	// Retry-After hint.
	KindRateLimited Kind = "rate_limited"

	// KindServerError is an upstream fault (5xx other than 503).
	KindServerError Kind = "server_error"

	// KindUnavailable is a 503 or a network-level connection failure.
	KindUnavailable Kind = "unavailable"

	// KindTimeout is an attempt or deadline expiry.
	KindTimeout Kind = "timeout"
)

// Retryable reports whether an outcome of this kind may be attempted again.
// Rate-limited outcomes retry on a different credential; the rest retry with
// backoff on the same one.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerError, KindUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

// Outcome is the classified result of exactly one upstream attempt.
type Outcome struct {
	// Kind is the outcome classification.
	Kind Kind

	// StatusCode is the upstream HTTP status, 0 for network failures.
	StatusCode int

	// Payload is the response body. Set only for success outcomes.
	Payload []byte

	// Message is the upstream's error text, passed through verbatim.
	// Empty for success outcomes.
	Message string

	// RetryAfter is the upstream's throttle hint. Set only for
	// rate-limited outcomes; 0 when the header was absent.
	RetryAfter time.Duration
}

// Err converts the outcome into the caller-visible typed error.
// Success outcomes return nil.
func (o Outcome) Err() error {
	if o.Kind == KindSuccess {
		return nil
	}
	return &Error{
		Kind:       o.Kind,
		StatusCode: o.StatusCode,
		Message:    o.Message,
		RetryAfter: o.RetryAfter,
	}
}

// Error represents an upstream failure with its classification and the
// upstream's own words.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}
