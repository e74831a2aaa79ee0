package interfaces

import (
	"errors"
	"fmt"
)

// Common error variables the adapter may return
var (
	// ErrRequestFailed is returned when a remote request failed for a
	// transient reason and may be retried
	ErrRequestFailed = errors.New("remote request failed")

	// ErrRateLimitExceeded is returned when the exchange reports a
	// rate-limit status. On Coinbase this status code is also emitted for
	// unrelated transient server errors; the retry policy tells the two
	// apart by inspecting the error text.
	ErrRateLimitExceeded = errors.New("exchange rate limit exceeded")

	// ErrNotSupported is returned when an operation violates an adapter
	// precondition and was never sent to the exchange
	ErrNotSupported = errors.New("operation not supported")

	// ErrNotConnected is returned when a streaming operation is attempted
	// without an established feed connection
	ErrNotConnected = errors.New("exchange feed not connected")
)

// ExchangeError is an application-level error reported by the exchange.
// Message carries the raw exchange wording so callers can classify it.
type ExchangeError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange error: %s", e.Message)
}

// Unwrap returns the underlying error
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// NewExchangeError creates a new exchange-reported error
func NewExchangeError(message string, err error) error {
	return &ExchangeError{Message: message, Err: err}
}

// IsRemoteError reports whether err is one of the three remote error kinds:
// a transient request failure, a rate-limit status, or an exchange
// application error. Only these enter the instant-retry loop; anything else
// propagates immediately.
func IsRemoteError(err error) bool {
	var exchangeErr *ExchangeError
	return errors.Is(err, ErrRequestFailed) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.As(err, &exchangeErr)
}

// ErrorKind names the remote error kind for diagnostics.
func ErrorKind(err error) string {
	var exchangeErr *ExchangeError
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return "RateLimitExceeded"
	case errors.Is(err, ErrRequestFailed):
		return "RequestFailed"
	case errors.As(err, &exchangeErr):
		return "ExchangeError"
	default:
		return "Unclassified"
	}
}
