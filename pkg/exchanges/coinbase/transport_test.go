package coinbase

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/logging"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	header http.Header
}

func newTransportServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			header: r.Header.Clone(),
		})
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestTransport(serverURL string, creds interfaces.Credentials) *restTransport {
	options := interfaces.NewExchangeOptions()
	options.RestURL = serverURL
	options.Credentials = creds
	return newRestTransport(options, logging.NewLogger())
}

func TestRequestUnknownMethod(t *testing.T) {
	tr := newTestTransport("http://unused.test", interfaces.Credentials{})
	_, err := tr.Request(context.Background(), "fetchMoon", nil)
	assert.ErrorIs(t, err, interfaces.ErrNotSupported)
}

func TestRequestStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		checkErr func(t *testing.T, err error)
	}{
		{
			name:   "429 maps to rate limit with body preserved",
			status: http.StatusTooManyRequests,
			body:   "Too many requests",
			checkErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, interfaces.ErrRateLimitExceeded)
				assert.Contains(t, err.Error(), "429")
				assert.Contains(t, err.Error(), "Too many requests")
			},
		},
		{
			name:   "5xx maps to request failure",
			status: http.StatusBadGateway,
			body:   "upstream unavailable",
			checkErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, interfaces.ErrRequestFailed)
				assert.NotErrorIs(t, err, interfaces.ErrRateLimitExceeded)
			},
		},
		{
			name:   "4xx carries the remote message verbatim",
			status: http.StatusNotFound,
			body:   `{"error":"NOT_FOUND","message":"order with this orderID was not found"}`,
			checkErr: func(t *testing.T, err error) {
				var exErr *interfaces.ExchangeError
				require.ErrorAs(t, err, &exErr)
				assert.Equal(t, CategoryOrderNotFound, Classify(err.Error()))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTransportServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			tr := newTestTransport(server.URL, interfaces.Credentials{})

			_, err := tr.Request(context.Background(), methodFetchProducts, nil)
			require.Error(t, err)
			tt.checkErr(t, err)
		})
	}
}

func TestRequestBuildsPathAndQuery(t *testing.T) {
	server, requests := newTransportServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candles":[]}`))
	})
	tr := newTestTransport(server.URL, interfaces.Credentials{})

	_, err := tr.Request(context.Background(), methodFetchOHLCV, map[string]any{
		"product_id":  "BTC-USD",
		"granularity": "ONE_MINUTE",
		"limit":       300,
	})
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/api/v3/brokerage/market/products/BTC-USD/candles", req.path)
	assert.Contains(t, req.query, "granularity=ONE_MINUTE")
	assert.Contains(t, req.query, "limit=300")
}

func TestRequestWrapsListBody(t *testing.T) {
	server, _ := newTransportServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	})
	tr := newTestTransport(server.URL, interfaces.Credentials{})

	raw, err := tr.Request(context.Background(), methodFetchProducts, nil)
	require.NoError(t, err)
	assert.Len(t, raw.List("data"), 2)
}

func TestSignedEndpointRequiresCredentials(t *testing.T) {
	tr := newTestTransport("http://unused.test", interfaces.Credentials{})
	_, err := tr.Request(context.Background(), methodFetchBalance, nil)
	assert.ErrorIs(t, err, interfaces.ErrNotConnected)
}

func TestHMACAuthHeaders(t *testing.T) {
	server, requests := newTransportServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[]}`))
	})
	tr := newTestTransport(server.URL, interfaces.Credentials{
		Key:        "api-key",
		Secret:     "plain-secret",
		Passphrase: "phrase",
	})

	_, err := tr.Request(context.Background(), methodFetchBalance, nil)
	require.NoError(t, err)

	header := (*requests)[0].header
	assert.Equal(t, "api-key", header.Get("CB-ACCESS-KEY"))
	assert.NotEmpty(t, header.Get("CB-ACCESS-SIGN"))
	assert.NotEmpty(t, header.Get("CB-ACCESS-TIMESTAMP"))
	assert.Equal(t, "phrase", header.Get("CB-ACCESS-PASSPHRASE"))
}

func TestBearerAuthHeader(t *testing.T) {
	server, requests := newTransportServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[]}`))
	})
	tr := newTestTransport(server.URL, interfaces.Credentials{AuthToken: "oauth-token"})

	_, err := tr.Request(context.Background(), methodFetchBalance, nil)
	require.NoError(t, err)

	header := (*requests)[0].header
	assert.Equal(t, "Bearer oauth-token", header.Get("Authorization"))
	assert.Empty(t, header.Get("CB-ACCESS-KEY"))
}

func TestJWTAuthHeader(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))

	server, requests := newTransportServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[]}`))
	})
	tr := newTestTransport(server.URL, interfaces.Credentials{
		Key:    "organizations/org/apiKeys/key-id",
		Secret: pemKey,
	})

	_, err = tr.Request(context.Background(), methodFetchBalance, nil)
	require.NoError(t, err)

	auth := (*requests)[0].header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "Bearer "))
	token := strings.TrimPrefix(auth, "Bearer ")
	assert.Len(t, strings.Split(token, "."), 3)
}

func TestLoadMarketsCachesStatusAndSyncsClock(t *testing.T) {
	serverNow := time.Now().Add(90 * time.Second)
	server, requests := newTransportServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/time"):
			w.Write([]byte(`{"epochSeconds":"` + strconv.FormatInt(serverNow.Unix(), 10) + `"}`))
		default:
			w.Write([]byte(`{"products":[
				{"product_id":"BTC-USD","limit_only":false},
				{"product_id":"AAVE-USD","limit_only":true}
			]}`))
		}
	})
	tr := newTestTransport(server.URL, interfaces.Credentials{})

	require.NoError(t, tr.LoadMarkets(context.Background(), false))

	status, ok := tr.MarketStatus("AAVE/USD")
	require.True(t, ok)
	assert.True(t, status.Bool("limit_only"))

	_, ok = tr.MarketStatus("DOGE/USD")
	assert.False(t, ok)

	// cached: a second call without reload issues no further requests
	seen := len(*requests)
	require.NoError(t, tr.LoadMarkets(context.Background(), false))
	assert.Equal(t, seen, len(*requests))

	// reload bypasses the cache
	require.NoError(t, tr.LoadMarkets(context.Background(), true))
	assert.Greater(t, len(*requests), seen)
}

func TestServerTimeOffset(t *testing.T) {
	serverMillis := time.Now().Add(2 * time.Minute).UnixMilli()
	server, _ := newTransportServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/time"):
			w.Write([]byte(`{"epochMillis":` + strconv.FormatInt(serverMillis, 10) + `}`))
		default:
			w.Write([]byte(`{"products":[]}`))
		}
	})
	tr := newTestTransport(server.URL, interfaces.Credentials{})

	require.NoError(t, tr.LoadMarkets(context.Background(), false))
	assert.InDelta(t, float64(serverMillis), float64(tr.ServerTimeMillis()), 2000)
}
