package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"sync"
)

// refreshTokenPath is the backend endpoint that mints a new token pair.
const refreshTokenPath = "/users/refresh-token"

// refreshState is the tagged state of the refresh coordinator.
type refreshState int

const (
	refreshIdle refreshState = iota
	refreshActive
)

// refreshResult is delivered to every request that waited on a refresh.
type refreshResult struct {
	accessToken string
	err         error
}

// refreshCoordinator enforces at most one refresh call in flight per client
// instance. Requests hitting 401 while a refresh is active queue as waiters
// (FIFO) and share the leader's outcome instead of issuing their own call.
type refreshCoordinator struct {
	mu      sync.Mutex
	state   refreshState
	waiters []chan refreshResult
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
}

// refreshAccessToken returns a fresh access token, coordinating concurrent
// callers so the refresh endpoint is hit exactly once per expiry event.
// On failure the stored credentials have already been cleared.
func (c *client) refreshAccessToken(ctx context.Context) (string, error) {
	c.refresh.mu.Lock()
	if c.refresh.state == refreshActive {
		ch := make(chan refreshResult, 1)
		c.refresh.waiters = append(c.refresh.waiters, ch)
		c.refresh.mu.Unlock()

		select {
		case res := <-ch:
			return res.accessToken, res.err
		case <-ctx.Done():
			return "", NewAuthError("canceled while waiting for token refresh", ctx.Err())
		}
	}
	c.refresh.state = refreshActive
	c.refresh.mu.Unlock()

	token, err := c.doRefresh(ctx)

	c.refresh.mu.Lock()
	waiters := c.refresh.waiters
	c.refresh.waiters = nil
	c.refresh.state = refreshIdle
	c.refresh.mu.Unlock()

	res := refreshResult{accessToken: token, err: err}
	for _, ch := range waiters {
		ch <- res
	}
	return token, err
}

// doRefresh performs the refresh call against the backend and persists the
// rotated token pair. Any failure clears every stored credential so the
// session layer observes a logged-out state.
func (c *client) doRefresh(ctx context.Context) (string, error) {
	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil || refreshToken == "" {
		c.clearCredentials(ctx)
		return "", NewAuthError("no refresh token available", err)
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		c.clearCredentials(ctx)
		return "", NewAuthError("failed to encode refresh request", err)
	}

	// The refresh call goes straight to the transport: it must not recurse
	// through the pipeline's auth or dedup stages.
	httpReq, err := nethttp.NewRequestWithContext(
		ctx,
		nethttp.MethodPost,
		c.config.BaseURL+refreshTokenPath,
		bytes.NewReader(payload),
	)
	if err != nil {
		c.clearCredentials(ctx)
		return "", NewAuthError("failed to create refresh request", err)
	}
	httpReq.Header.Set(headerContentType, contentTypeJSON)

	c.logger.Info().Str("path", refreshTokenPath).Msg("refreshing access token")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.clearCredentials(ctx)
		return "", NewAuthError("refresh request failed", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.clearCredentials(ctx)
		return "", NewAuthError("failed to read refresh response", err)
	}

	if !IsSuccessStatus(httpResp.StatusCode) {
		c.clearCredentials(ctx)
		return "", NewAuthError(fmt.Sprintf("refresh rejected with status %d", httpResp.StatusCode), nil)
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.clearCredentials(ctx)
		return "", NewAuthError("malformed refresh response", err)
	}
	if parsed.Data.AccessToken == "" || parsed.Data.RefreshToken == "" {
		c.clearCredentials(ctx)
		return "", NewAuthError("refresh response missing token pair", nil)
	}

	if err := c.tokens.SetTokens(ctx, parsed.Data.AccessToken, parsed.Data.RefreshToken); err != nil {
		return "", NewAuthError("failed to persist refreshed tokens", err)
	}

	c.logger.Info().Msg("access token refreshed")
	return parsed.Data.AccessToken, nil
}

// clearCredentials wipes the token store after an irrecoverable refresh
// failure.
func (c *client) clearCredentials(ctx context.Context) {
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear stored credentials")
		return
	}
	c.logger.Info().Msg("cleared stored credentials after refresh failure")
}
