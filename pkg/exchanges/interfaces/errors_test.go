package interfaces

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeErrorWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewExchangeError("order rejected", cause)

	assert.Contains(t, err.Error(), "order rejected")
	assert.ErrorIs(t, err, cause)

	var exErr *ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "order rejected", exErr.Message)
}

func TestIsRemoteError(t *testing.T) {
	assert.True(t, IsRemoteError(fmt.Errorf("wrap: %w", ErrRequestFailed)))
	assert.True(t, IsRemoteError(fmt.Errorf("wrap: %w", ErrRateLimitExceeded)))
	assert.True(t, IsRemoteError(NewExchangeError("denied", nil)))

	assert.False(t, IsRemoteError(nil))
	assert.False(t, IsRemoteError(errors.New("local failure")))
	assert.False(t, IsRemoteError(ErrNotSupported))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "RateLimitExceeded", ErrorKind(fmt.Errorf("w: %w", ErrRateLimitExceeded)))
	assert.Equal(t, "RequestFailed", ErrorKind(fmt.Errorf("w: %w", ErrRequestFailed)))
	assert.Equal(t, "ExchangeError", ErrorKind(NewExchangeError("x", nil)))
	assert.Equal(t, "Unclassified", ErrorKind(errors.New("other")))
}

func TestRawResponseAccessorsAreTotal(t *testing.T) {
	raw := RawResponse{
		"name":   "BTC-USD",
		"price":  50000.5,
		"count":  3,
		"open":   true,
		"nested": map[string]any{"id": "abc"},
		"items":  []any{map[string]any{"a": 1.0}, "skipped", map[string]any{"b": 2.0}},
	}

	assert.Equal(t, "BTC-USD", raw.String("name"))
	assert.Equal(t, "", raw.String("price"))
	assert.Equal(t, "", raw.String("missing"))

	require.NotNil(t, raw.Float("price"))
	assert.Equal(t, 50000.5, *raw.Float("price"))
	assert.Equal(t, 3.0, *raw.Float("count"))
	assert.Nil(t, raw.Float("name"))
	assert.Nil(t, raw.Float("missing"))
	assert.Equal(t, 1.0, raw.FloatOr("missing", 1))
	assert.Equal(t, int64(3), raw.Int64("count"))

	assert.True(t, raw.Bool("open"))
	assert.False(t, raw.Bool("missing"))

	assert.Equal(t, "abc", raw.Map("nested").String("id"))
	assert.Empty(t, raw.Map("missing"))
	assert.Empty(t, raw.Map("name"))

	// non-object elements are dropped, not fatal
	assert.Len(t, raw.List("items"), 2)
	assert.Nil(t, raw.List("missing"))
	assert.Nil(t, raw.List("name"))
}
