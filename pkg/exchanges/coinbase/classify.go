package coinbase

import "strings"

// Category is the canonical error category the engine's recovery logic
// consumes. The adapter only supplies the mapping; recovery behavior
// (retry later, reject, portfolio resync) is decided upstream.
type Category string

const (
	CategoryOrderNotFound      Category = "order_not_found"
	CategoryPermissionDenied   Category = "permission_denied"
	CategorySymbolNotTradable  Category = "symbol_not_tradable"
	CategoryAccountSyncPending Category = "account_sync_pending"
	CategoryInsufficientFunds  Category = "insufficient_funds"
	CategoryUnclassified       Category = "unclassified"
)

// Rule associates a category with its signatures. A signature matches when
// every one of its substrings appears in the lowercased error text.
type Rule struct {
	Category   Category
	Signatures [][]string
}

// DefaultRules is the ordered signature table for Coinbase error wording.
// Classification is string matching against exchange-controlled text, so
// the table is data, not code: new wording is an additive entry here.
var DefaultRules = []Rule{
	{
		// {"error":"NOT_FOUND","message":"order with this orderID was not found"}
		Category:   CategoryOrderNotFound,
		Signatures: [][]string{{"not_found", "order"}},
	},
	{
		// {"error":"PERMISSION_DENIED","message":"Missing required scopes"}
		Category:   CategoryPermissionDenied,
		Signatures: [][]string{{"missing required scopes"}},
	},
	{
		// BadRequest: target is not enabled for trading
		// {"error":"PERMISSION_DENIED","message":"User is not allowed to convert crypto"}
		Category: CategorySymbolNotTradable,
		Signatures: [][]string{
			{"target is not enabled for trading"},
			{"user is not allowed to convert crypto"},
		},
	},
	{
		// {"error":"INVALID_ARGUMENT","message":"account is not available"}
		// seen while the portfolio is still settling after a trade
		Category:   CategoryAccountSyncPending,
		Signatures: [][]string{{"account is not available"}},
	},
	{
		Category:   CategoryInsufficientFunds,
		Signatures: [][]string{{"insufficient balance in source account"}},
	},
}

// Classifier maps raw error text to a Category using an ordered rule set.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over the given rules. Rule order is
// priority order: the first matching category wins.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultClassifier uses the built-in Coinbase rule table.
var DefaultClassifier = NewClassifier(DefaultRules)

// Classify maps error text to a category. It is pure and total: any input
// yields a category and no input can make it fail.
func (c *Classifier) Classify(text string) Category {
	lowered := strings.ToLower(text)
	for _, rule := range c.rules {
		for _, signature := range rule.Signatures {
			if matchesAll(lowered, signature) {
				return rule.Category
			}
		}
	}
	return CategoryUnclassified
}

func matchesAll(text string, substrings []string) bool {
	for _, s := range substrings {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}

// Classify runs the default classifier.
func Classify(text string) Category {
	return DefaultClassifier.Classify(text)
}
