// Package symbols parses trading-pair symbols into their base and quote
// assets.
package symbols

import (
	"fmt"
	"strings"
)

// Pair is a parsed trading pair. Quote is the asset the price is
// denominated in, e.g. USD in AAVE/USD.
type Pair struct {
	Base  string
	Quote string
}

// Parse splits a trading-pair symbol into base and quote assets. Both the
// canonical slash form ("AAVE/USD") and the exchange's dash form
// ("AAVE-USD") are accepted.
func Parse(symbol string) (Pair, error) {
	sep := "/"
	if !strings.Contains(symbol, sep) {
		sep = "-"
	}
	parts := strings.Split(symbol, sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid trading pair symbol: %q", symbol)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}

// ToProductID converts a canonical symbol to the exchange's dash-separated
// product id. Symbols already in dash form pass through unchanged.
func ToProductID(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}

// FromProductID converts an exchange product id to the canonical slash
// form.
func FromProductID(productID string) string {
	return strings.ReplaceAll(productID, "-", "/")
}
