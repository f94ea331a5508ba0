package commerce

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks transient transport-level failures (connection refused,
// timeout). Callers may surface it as "try again later"; it carries no detail.
var ErrUnavailable = errors.New("commerce backend unavailable")

// APIError is an upstream rejection with business-meaningful title/detail,
// e.g. insufficient stock. Title and Detail come verbatim from the errors
// envelope and are safe to show to the end user.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	URL        string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s) with code %d from %s", e.Title, e.Detail, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s with code %d from %s", e.Title, e.StatusCode, e.URL)
}

// MalformedResponseError reports a 2xx response whose body is not valid JSON
// or lacks the expected data envelope. Body holds a truncated copy for
// diagnostics; it must never reach the end user.
type MalformedResponseError struct {
	Reason string
	Body   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed commerce response: %s", e.Reason)
}

const maxDiagnosticBody = 512

func truncateBody(body []byte) string {
	if len(body) > maxDiagnosticBody {
		body = body[:maxDiagnosticBody]
	}
	return string(body)
}

// PriceError reports a formatted price string from which no numeric value
// could be derived.
type PriceError struct {
	Raw string
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("cannot derive numeric price from %q", e.Raw)
}
