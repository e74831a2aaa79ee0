package coinbase

import (
	"strings"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
)

// authMode selects how requests are authenticated.
type authMode int

const (
	authKeySecret authMode = iota
	authBearer
)

// Placeholder keys used when bearer authentication is selected; the signer
// requires non-empty keys even when they are never used.
const (
	placeholderKey    = "ANY_KEY"
	placeholderSecret = "ANY_SECRET"
)

// adaptCredentials applies the Coinbase credential quirks. With an auth
// token the key/secret pair is forced to placeholders and bearer
// authentication is selected. Otherwise literal \n sequences in the secret
// are rewritten to real newlines: PEM keys pasted as text from the
// Coinbase UI arrive with the escapes intact and would fail to parse.
func adaptCredentials(c interfaces.Credentials) (interfaces.Credentials, authMode) {
	if c.AuthToken != "" {
		c.Key = placeholderKey
		c.Secret = placeholderSecret
		return c, authBearer
	}
	if strings.Contains(c.Secret, `\n`) {
		c.Secret = strings.ReplaceAll(c.Secret, `\n`, "\n")
	}
	return c, authKeySecret
}
