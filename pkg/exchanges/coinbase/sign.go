package coinbase

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
)

const pemKeyMarker = "BEGIN EC PRIVATE KEY"

// authorize attaches credentials to an outgoing request. Public endpoints
// are left untouched unless credentials are configured anyway: Coinbase
// grants higher request quotas to authenticated calls.
func (t *restTransport) authorize(req *http.Request, ep endpoint) error {
	if t.mode == authBearer {
		req.Header.Set("Authorization", "Bearer "+t.creds.AuthToken)
		return nil
	}
	if t.creds.Key == "" {
		if ep.signed {
			return fmt.Errorf("endpoint %s requires credentials: %w", ep.path, interfaces.ErrNotConnected)
		}
		return nil
	}

	if strings.Contains(t.creds.Secret, pemKeyMarker) {
		token, err := t.signJWT(req)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}

	return t.signHMAC(req)
}

// signHMAC applies the legacy CB-ACCESS header scheme.
func (t *restTransport) signHMAC(req *http.Request) error {
	timestamp := strconv.FormatInt(t.clock.Now().Unix(), 10)

	var body string
	if req.Body != nil && req.GetBody != nil {
		buf, err := req.GetBody()
		if err != nil {
			return fmt.Errorf("reading body for signature: %w", err)
		}
		raw, err := io.ReadAll(buf)
		if err != nil {
			return fmt.Errorf("reading body for signature: %w", err)
		}
		body = string(raw)
	}

	mac := hmac.New(sha256.New, []byte(t.creds.Secret))
	mac.Write([]byte(timestamp + req.Method + req.URL.RequestURI() + body))

	req.Header.Set("CB-ACCESS-KEY", t.creds.Key)
	req.Header.Set("CB-ACCESS-SIGN", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)
	if t.creds.Passphrase != "" {
		req.Header.Set("CB-ACCESS-PASSPHRASE", t.creds.Passphrase)
	}
	return nil
}

// signJWT builds the ES256 token the Advanced Trade API expects from CDP
// keys. The secret must be a PEM-encoded EC private key; escaped newlines
// in it were already rewritten by the credential adapter.
func (t *restTransport) signJWT(req *http.Request) (string, error) {
	block, _ := pem.Decode([]byte(t.creds.Secret))
	if block == nil {
		return "", errors.New("api secret is not a valid PEM key")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parsing EC private key: %w", err)
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	now := t.clock.Now().Unix()
	header := map[string]any{
		"alg":   "ES256",
		"typ":   "JWT",
		"kid":   t.creds.Key,
		"nonce": hex.EncodeToString(nonce),
	}
	claims := map[string]any{
		"sub": t.creds.Key,
		"iss": "cdp",
		"nbf": now,
		"exp": now + 120,
		"uri": req.Method + " " + req.URL.Host + req.URL.Path,
	}

	signingInput, err := joseEncode(header, claims)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256([]byte(signingInput))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing request token: %w", err)
	}

	// JOSE wants the raw r||s pair, each padded to the curve size
	size := (key.Curve.Params().BitSize + 7) / 8
	signature := make([]byte, 2*size)
	r.FillBytes(signature[:size])
	s.FillBytes(signature[size:])

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func joseEncode(header, claims map[string]any) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("encoding token header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encoding token claims: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON), nil
}
