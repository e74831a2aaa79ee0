package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		symbol string
		base   string
		quote  string
	}{
		{"AAVE/USD", "AAVE", "USD"},
		{"BTC/USDC", "BTC", "USDC"},
		{"ETH-USD", "ETH", "USD"},
	}

	for _, tt := range tests {
		pair, err := Parse(tt.symbol)
		require.NoError(t, err, tt.symbol)
		assert.Equal(t, tt.base, pair.Base)
		assert.Equal(t, tt.quote, pair.Quote)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, symbol := range []string{"", "BTCUSD", "BTC/", "/USD", "BTC/USD/EUR", "-USD"} {
		_, err := Parse(symbol)
		assert.Error(t, err, "symbol %q", symbol)
	}
}

func TestProductIDRoundTrip(t *testing.T) {
	assert.Equal(t, "BTC-USD", ToProductID("BTC/USD"))
	assert.Equal(t, "BTC-USD", ToProductID("BTC-USD"))
	assert.Equal(t, "BTC/USD", FromProductID("BTC-USD"))
	assert.Equal(t, "BTC/USD", FromProductID(ToProductID("BTC/USD")))
}
