package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rotatedAccessToken  = "access-token-2"
	rotatedRefreshToken = "refresh-token-2"
)

// refreshBackend simulates the token-issuing backend: requests carrying a
// stale access token get 401, the refresh endpoint rotates the pair.
type refreshBackend struct {
	validAccess    string
	refreshDelay   time.Duration
	failRefresh    bool
	apiHits        int32
	refreshHits    int32
	unauthorized   int32
	gotRefreshBody atomic.Value
}

func (b *refreshBackend) handler() nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path == refreshTokenPath {
			atomic.AddInt32(&b.refreshHits, 1)
			body := struct {
				RefreshToken string `json:"refreshToken"`
			}{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			b.gotRefreshBody.Store(body.RefreshToken)

			if b.refreshDelay > 0 {
				time.Sleep(b.refreshDelay)
			}
			if b.failRefresh {
				w.WriteHeader(nethttp.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", contentTypeJSON)
			fmt.Fprintf(w, `{"data":{"accessToken":%q,"refreshToken":%q}}`, rotatedAccessToken, rotatedRefreshToken)
			return
		}

		atomic.AddInt32(&b.apiHits, 1)
		if r.Header.Get("Authorization") != "Bearer "+b.validAccess {
			atomic.AddInt32(&b.unauthorized, 1)
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"id":"u-1"}}`))
	})
}

// Scenario: access token expired, refresh succeeds, original request is
// replayed once with the new token and the store holds the rotated pair.
func TestRefreshOn401ReplaysWithNewToken(t *testing.T) {
	backend := &refreshBackend{validAccess: rotatedAccessToken}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	tokens := &memoryTokenStore{access: "stale-access", refresh: testRefreshToken}
	c := newTestClient(t, server.URL, tokens)

	resp, err := c.Get(context.Background(), &Request{Path: "/users/profile"})
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.refreshHits))
	assert.Equal(t, int32(2), atomic.LoadInt32(&backend.apiHits), "original call plus one replay")
	assert.Equal(t, testRefreshToken, backend.gotRefreshBody.Load())

	access, refresh, cleared := tokens.snapshot()
	assert.Equal(t, rotatedAccessToken, access)
	assert.Equal(t, rotatedRefreshToken, refresh)
	assert.False(t, cleared)
}

// N concurrent requests all failing 401 at the same moment trigger exactly
// one refresh call, and every request eventually resolves.
func TestSingleFlightRefresh(t *testing.T) {
	backend := &refreshBackend{validAccess: rotatedAccessToken, refreshDelay: 100 * time.Millisecond}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	tokens := &memoryTokenStore{access: "stale-access", refresh: testRefreshToken}
	c := newTestClient(t, server.URL, tokens)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct paths so GET deduplication does not collapse them.
			_, errs[i] = c.Get(context.Background(), &Request{Path: fmt.Sprintf("/courses/%d", i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.refreshHits))

	access, _, _ := tokens.snapshot()
	assert.Equal(t, rotatedAccessToken, access)
}

// When the refresh call itself fails, all concurrent requests reject
// together and the credentials are cleared.
func TestSingleFlightRefreshFailureRejectsAll(t *testing.T) {
	backend := &refreshBackend{validAccess: rotatedAccessToken, refreshDelay: 100 * time.Millisecond, failRefresh: true}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	tokens := &memoryTokenStore{access: "stale-access", refresh: testRefreshToken}
	c := newTestClient(t, server.URL, tokens)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), &Request{Path: fmt.Sprintf("/courses/%d", i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.True(t, IsAuthError(err), "request %d should reject with auth error, got %v", i, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.refreshHits))

	access, refresh, cleared := tokens.snapshot()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.True(t, cleared)
}

// A request that still 401s after a successful refresh is never refreshed a
// second time for the same logical call.
func TestNoDoubleRefreshForSameRequest(t *testing.T) {
	var apiHits, refreshHits int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path == refreshTokenPath {
			atomic.AddInt32(&refreshHits, 1)
			fmt.Fprintf(w, `{"data":{"accessToken":%q,"refreshToken":%q}}`, rotatedAccessToken, rotatedRefreshToken)
			return
		}
		atomic.AddInt32(&apiHits, 1)
		// Unauthorized no matter which token is presented.
		w.WriteHeader(nethttp.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &memoryTokenStore{access: "stale-access", refresh: testRefreshToken}
	c := newTestClient(t, server.URL, tokens)

	_, err := c.Get(context.Background(), &Request{Path: "/users/profile"})
	require.Error(t, err)
	assert.True(t, IsHTTPStatusError(err, nethttp.StatusUnauthorized))
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshHits))
	assert.Equal(t, int32(2), atomic.LoadInt32(&apiHits))
}

// Scenario: no refresh token stored at the time of the 401. The request
// rejects and the whole credential set is cleared.
func TestMissingRefreshTokenClearsCredentials(t *testing.T) {
	var refreshHits int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path == refreshTokenPath {
			atomic.AddInt32(&refreshHits, 1)
			return
		}
		w.WriteHeader(nethttp.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &memoryTokenStore{access: "stale-access", refresh: "", user: "cached", session: "active"}
	c := newTestClient(t, server.URL, tokens)

	_, err := c.Get(context.Background(), &Request{Path: "/users/profile"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	// The refresh endpoint is never called without a refresh token.
	assert.Equal(t, int32(0), atomic.LoadInt32(&refreshHits))

	access, refresh, cleared := tokens.snapshot()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.True(t, cleared)
}

func TestMalformedRefreshResponseFailsAuth(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>oops</html>"},
		{name: "missing data", body: `{"accessToken":"a","refreshToken":"r"}`},
		{name: "empty access token", body: `{"data":{"accessToken":"","refreshToken":"r"}}`},
		{name: "empty refresh token", body: `{"data":{"accessToken":"a","refreshToken":""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
				if r.URL.Path == refreshTokenPath {
					_, _ = w.Write([]byte(tt.body))
					return
				}
				w.WriteHeader(nethttp.StatusUnauthorized)
			}))
			defer server.Close()

			tokens := &memoryTokenStore{access: "stale", refresh: testRefreshToken}
			c := newTestClient(t, server.URL, tokens)

			_, err := c.Get(context.Background(), &Request{Path: "/users/profile"})
			require.Error(t, err)
			assert.True(t, IsAuthError(err))

			_, _, cleared := tokens.snapshot()
			assert.True(t, cleared)
		})
	}
}

// After credentials are cleared the coordinator is idle again: a later
// login followed by a 401 starts a fresh refresh cycle.
func TestRefreshCycleResetsAfterFailure(t *testing.T) {
	var failRefresh atomic.Bool
	failRefresh.Store(true)

	var refreshHits int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path == refreshTokenPath {
			atomic.AddInt32(&refreshHits, 1)
			if failRefresh.Load() {
				w.WriteHeader(nethttp.StatusBadGateway)
				return
			}
			fmt.Fprintf(w, `{"data":{"accessToken":%q,"refreshToken":%q}}`, rotatedAccessToken, rotatedRefreshToken)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+rotatedAccessToken {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	tokens := &memoryTokenStore{access: "stale", refresh: testRefreshToken}
	c := newTestClient(t, server.URL, tokens)

	_, err := c.Get(context.Background(), &Request{Path: "/users/profile"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	// Simulated re-login stores a fresh (but stale for the API) pair.
	require.NoError(t, tokens.SetTokens(context.Background(), "stale-again", testRefreshToken))
	failRefresh.Store(false)

	resp, err := c.Get(context.Background(), &Request{Path: "/users/profile"})
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&refreshHits))
}

// A 401 is never retried as a generic transient failure, even with retry
// budget available: it either resolves through refresh or fails.
func TestUnauthorizedWithoutTokenStorePassesThrough(t *testing.T) {
	var hits int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(nethttp.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewBuilder(createTestLogger()).
		WithBaseURL(server.URL).
		WithRetry(3, time.Millisecond, 2).
		Build()

	_, err := c.Get(context.Background(), &Request{Path: testCoursesPath})
	require.Error(t, err)
	assert.True(t, IsHTTPStatusError(err, nethttp.StatusUnauthorized))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
