package http

import (
	"errors"
	"fmt"
)

// Kind classifies a transfer failure for the retry policy.
type Kind int

const (
	// KindTransport is a timeout or connection reset; retryable.
	KindTransport Kind = iota

	// KindRateLimited is an HTTP 429; retryable after backoff.
	KindRateLimited

	// KindHostDown means the whole host is unreachable (no response,
	// HTTP 503 or 521); not retryable this run.
	KindHostDown

	// KindClient is a definitive client or upstream error; not retryable.
	KindClient

	// KindIncomplete means the stream ended before the declared size was
	// reached; retryable, the partial file resumes the transfer.
	KindIncomplete
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate limited"
	case KindHostDown:
		return "host down"
	case KindClient:
		return "client error"
	case KindIncomplete:
		return "incomplete stream"
	default:
		return "unknown"
	}
}

// Error is a classified transfer failure.
type Error struct {
	Kind       Kind
	StatusCode int
	URL        string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d for %s", e.Kind, e.StatusCode, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.URL)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	var he *Error
	return errors.As(err, &he) && he.Kind == kind
}
