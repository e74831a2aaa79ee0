package interfaces

import "context"

// Transport is the low-level remote channel to the exchange. It owns
// authentication, request signing, its own rate limiting and timeouts; the
// adapter layers retry and normalization on top of it.
type Transport interface {
	// LoadMarkets fetches (or refreshes, when reload is true) the market
	// catalogue and status flags.
	LoadMarkets(ctx context.Context, reload bool) error

	// Request executes one named remote operation and returns the decoded
	// payload. Failures are one of ErrRequestFailed, ErrRateLimitExceeded
	// or *ExchangeError; the response shape is exchange-controlled and not
	// guaranteed stable.
	Request(ctx context.Context, method string, params map[string]any) (RawResponse, error)

	// ServerTimeMillis returns the exchange's notion of "now" in unix
	// milliseconds. Pagination windows are computed against this clock,
	// not the local one.
	ServerTimeMillis() int64
}

// RawResponse is an untyped payload as returned by the transport. It is
// consumed immediately and never persisted.
//
// Every accessor is total: a missing or differently-typed field yields the
// documented fallback, never a panic. Normalization passes depend on this
// to degrade gracefully on malformed payloads.
type RawResponse map[string]any

// String returns the field as a string, or "" when absent or not a string.
func (r RawResponse) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Float returns a pointer to the field's numeric value, or nil when the
// field is absent or not numeric. JSON numbers decode as float64; integer
// values stored by producers are accepted too.
func (r RawResponse) Float(key string) *float64 {
	switch v := r[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

// FloatOr returns the field's numeric value or the given fallback.
func (r RawResponse) FloatOr(key string, fallback float64) float64 {
	if v := r.Float(key); v != nil {
		return *v
	}
	return fallback
}

// Int64 returns the field as int64, or 0 when absent or not numeric.
func (r RawResponse) Int64(key string) int64 {
	return int64(r.FloatOr(key, 0))
}

// Bool returns the field as bool, or false when absent or not a bool.
func (r RawResponse) Bool(key string) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return false
}

// Map returns a nested object, or an empty RawResponse when absent.
func (r RawResponse) Map(key string) RawResponse {
	switch v := r[key].(type) {
	case map[string]any:
		return RawResponse(v)
	case RawResponse:
		return v
	}
	return RawResponse{}
}

// List returns a nested array of objects; non-object elements are skipped.
// Absent or malformed fields yield nil.
func (r RawResponse) List(key string) []RawResponse {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]RawResponse, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			out = append(out, RawResponse(v))
		case RawResponse:
			out = append(out, v)
		}
	}
	return out
}
