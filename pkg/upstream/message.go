package upstream

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// BodyKind tags the shape of a non-2xx upstream response body.
type BodyKind string

const (
	// BodyStructured is the upstream's JSON error envelope.
	BodyStructured BodyKind = "structured"

	// BodyRaw is any non-empty body that is not the envelope.
	BodyRaw BodyKind = "raw"

	// BodyEmpty is an absent or whitespace-only body.
	BodyEmpty BodyKind = "empty"
)

// ErrorBody is the parsed shape of a non-2xx upstream response body.
type ErrorBody struct {
	Kind BodyKind

	// StructuredMessage is the envelope's message field. Set for
	// BodyStructured only.
	StructuredMessage string

	// Raw is the body text. Set for BodyRaw only.
	Raw string
}

// statusEnvelope is the upstream's structured error shape:
//
//	{"status": {"status_code": 404, "message": "Data not found"}}
type statusEnvelope struct {
	Status struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
	} `json:"status"`
}

// ParseErrorBody classifies a non-2xx response body. A body that is not the
// structured envelope, or whose envelope carries no message, counts as raw
// text. Whitespace-only bodies count as empty.
func ParseErrorBody(body []byte) ErrorBody {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ErrorBody{Kind: BodyEmpty}
	}

	var env statusEnvelope
	if err := json.Unmarshal(trimmed, &env); err == nil && env.Status.Message != "" {
		return ErrorBody{Kind: BodyStructured, StructuredMessage: env.Status.Message}
	}

	return ErrorBody{Kind: BodyRaw, Raw: string(trimmed)}
}

// Message resolves the caller-visible error text for a response. Fallback
// order is fixed: the structured message, then the raw body text, then the
// canonical text for the status code. Upstream text passes through
// verbatim; it is never rephrased or augmented.
func (b ErrorBody) Message(statusCode int) string {
	switch b.Kind {
	case BodyStructured:
		return b.StructuredMessage
	case BodyRaw:
		return b.Raw
	default:
		return http.StatusText(statusCode)
	}
}
