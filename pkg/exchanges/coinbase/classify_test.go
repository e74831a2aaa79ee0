package coinbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Category
	}{
		{
			name:     "order not found",
			text:     `NOT_FOUND: order with this orderID was not found`,
			expected: CategoryOrderNotFound,
		},
		{
			name:     "order not found from json body",
			text:     `{"error":"NOT_FOUND","message":"order with this orderID was not found"}`,
			expected: CategoryOrderNotFound,
		},
		{
			name:     "missing scopes",
			text:     `PERMISSION_DENIED: Missing required scopes`,
			expected: CategoryPermissionDenied,
		},
		{
			name:     "symbol disabled for trading",
			text:     `BadRequest: target is not enabled for trading`,
			expected: CategorySymbolNotTradable,
		},
		{
			name:     "conversion not allowed",
			text:     `PERMISSION_DENIED: User is not allowed to convert crypto`,
			expected: CategorySymbolNotTradable,
		},
		{
			name:     "account settling",
			text:     `INVALID_ARGUMENT: account is not available`,
			expected: CategoryAccountSyncPending,
		},
		{
			name:     "insufficient funds",
			text:     `Insufficient balance in source account`,
			expected: CategoryInsufficientFunds,
		},
		{
			name:     "unknown wording",
			text:     `INTERNAL: something unexpected happened`,
			expected: CategoryUnclassified,
		},
		{
			name:     "empty text",
			text:     "",
			expected: CategoryUnclassified,
		},
		{
			// both substrings must appear, order in text does not matter
			name:     "signature parts in any order",
			text:     `the order you requested returned NOT_FOUND`,
			expected: CategoryOrderNotFound,
		},
		{
			// a lone NOT_FOUND without order context stays unclassified
			name:     "partial signature does not match",
			text:     `NOT_FOUND: no such account`,
			expected: CategoryUnclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.text))
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, CategoryInsufficientFunds,
		Classify("INSUFFICIENT BALANCE IN SOURCE ACCOUNT"))
	assert.Equal(t, CategoryPermissionDenied,
		Classify("missing required scopes"))
}

func TestClassifierRuleOrderWins(t *testing.T) {
	// a text matching two rules resolves to the earlier one
	c := NewClassifier([]Rule{
		{Category: CategoryPermissionDenied, Signatures: [][]string{{"denied"}}},
		{Category: CategoryOrderNotFound, Signatures: [][]string{{"denied"}}},
	})
	assert.Equal(t, CategoryPermissionDenied, c.Classify("access denied"))
}

func TestClassifierEmptyRules(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, CategoryUnclassified, c.Classify("anything at all"))
}
