// Package retry implements the adapter's instant-retry policy.
//
// Coinbase reports unrelated transient server errors under its rate-limit
// status code. The transport's token-bucket limiter already handles real
// throttling, so an error carrying that marker is safe to retry
// immediately; everything else propagates on first occurrence. Operations
// compose with the policy explicitly via Do rather than through any
// implicit interception.
package retry

import (
	"context"
	"fmt"
	"strings"

	"github.com/avast/retry-go"
	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/logging"
	"github.com/veiloq/coinbase-adapter/pkg/metrics"
)

// Policy decides whether a failed remote operation is retried immediately.
type Policy struct {
	// Marker is the literal substring identifying the fake rate-limit
	// error in an error's text.
	Marker string

	// Attempts is the total attempt budget, minimum 1.
	Attempts uint

	logger logging.Logger
}

// NewPolicy creates a retry policy. A zero attempts value is raised to 1;
// a nil logger falls back to the default.
func NewPolicy(marker string, attempts uint, logger logging.Logger) *Policy {
	if attempts == 0 {
		attempts = 1
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Policy{Marker: marker, Attempts: attempts, logger: logger}
}

// retryable reports whether err enters the instant-retry loop: it must be
// one of the three remote error kinds and its text must carry the marker.
func (p *Policy) retryable(err error) bool {
	return interfaces.IsRemoteError(err) && strings.Contains(err.Error(), p.Marker)
}

// Do executes fn under the policy. Retries are issued back to back with no
// delay; pacing is the transport limiter's job. Logging and metrics on each
// retry are fire-and-forget and never affect control flow.
func Do[T any](ctx context.Context, p *Policy, op string, args []any, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := retry.Do(
		func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			result = v
			return nil
		},
		retry.Attempts(p.Attempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(p.retryable),
		retry.OnRetry(func(n uint, err error) {
			metrics.InstantRetries.WithLabelValues(op).Inc()
			p.logger.Debug("transient rate-limit marker, retrying now",
				logging.String("operation", op),
				logging.Any("args", args),
				logging.Uint("attempt", n+1),
				logging.Uint("max_attempts", p.Attempts),
				logging.Error(err),
			)
		}),
	)
	if err == nil {
		return result, nil
	}
	if p.retryable(err) {
		return result, &ExhaustedError{
			Op:       op,
			Args:     args,
			Attempts: p.Attempts,
			Marker:   p.Marker,
			Err:      err,
		}
	}
	return result, err
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, p *Policy, op string, args []any, fn func(context.Context) error) error {
	_, err := Do(ctx, p, op, args, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExhaustedError is returned when every attempt kept failing with the
// instant-retry marker. It chains the last underlying error.
type ExhaustedError struct {
	Op       string
	Args     []any
	Attempts uint
	Marker   string
	Err      error
}

// Error implements the error interface
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf(
		"request failed after %d attempts on %s(args=%v) due to %s error code, last error: %v (%s)",
		e.Attempts, e.Op, e.Args, e.Marker, e.Err, interfaces.ErrorKind(e.Err),
	)
}

// Unwrap returns the last underlying error
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is reports the error as a request failure so callers can match it with
// errors.Is against interfaces.ErrRequestFailed.
func (e *ExhaustedError) Is(target error) bool {
	return target == interfaces.ErrRequestFailed
}
