package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/coursebook/coursebook-go/logger"
)

const (
	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the default retry ceiling for transient failures
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the default first backoff delay
	DefaultBaseDelay = 1 * time.Second

	// DefaultBackoffMultiplier is the default backoff growth factor
	DefaultBackoffMultiplier = 2.0

	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestID     = "X-Request-ID"

	contentTypeJSON = "application/json"
)

// client implements the Client interface
type client struct {
	httpClient *nethttp.Client
	logger     logger.Logger
	config     *Config
	tokens     TokenStore
	refresh    refreshCoordinator
	inflight   dedupGroup
	limiter    *rate.Limiter
	callCount  int64
}

// attemptContext carries the per-call transient state the pipeline threads
// through recovery stages: the retry counter and the one-shot flag marking
// that this logical request already went through a token refresh.
type attemptContext struct {
	retries     int
	authRetried bool
}

func defaultConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		MaxAttempts:          DefaultMaxAttempts,
		BaseDelay:            DefaultBaseDelay,
		BackoffMultiplier:    DefaultBackoffMultiplier,
		NewRequestID:         uuid.NewString,
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		DefaultHeaders:       make(map[string]string),
	}
}

// NewClient creates a REST client with default configuration. The token
// store may be nil for clients that only issue unauthenticated requests.
func NewClient(log logger.Logger, baseURL string, tokens TokenStore) Client {
	cfg := defaultConfig()
	cfg.BaseURL = baseURL
	return &client{
		httpClient: &nethttp.Client{Timeout: cfg.Timeout},
		logger:     log,
		config:     cfg,
		tokens:     tokens,
	}
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config     *Config
	logger     logger.Logger
	tokens     TokenStore
	httpClient *nethttp.Client
	transport  nethttp.RoundTripper
	limiter    *rate.Limiter
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: log,
	}
}

// WithBaseURL sets the API origin requests are resolved against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = strings.TrimRight(baseURL, "/")
	return b
}

// WithTimeout sets the request timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithTokenStore sets the credential store used by the auth-attach and
// refresh stages
func (b *Builder) WithTokenStore(tokens TokenStore) *Builder {
	b.tokens = tokens
	return b
}

// WithRetry sets the retry configuration
func (b *Builder) WithRetry(maxAttempts int, baseDelay time.Duration, multiplier float64) *Builder {
	b.config.MaxAttempts = maxAttempts
	b.config.BaseDelay = baseDelay
	b.config.BackoffMultiplier = multiplier
	return b
}

// WithJitter randomizes each backoff delay in [0, delay). Off by default;
// the deterministic curve is easier to reason about, jitter helps when a
// fleet of clients expires in lockstep.
func (b *Builder) WithJitter() *Builder {
	b.config.Jitter = true
	return b
}

// WithRateLimit throttles outbound requests to rps requests per second
// with the given burst
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestIDGenerator overrides the X-Request-ID generator
func (b *Builder) WithRequestIDGenerator(fn func() string) *Builder {
	if fn != nil {
		b.config.NewRequestID = fn
	}
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithHTTPClient supplies a pre-configured net/http client. A zero client
// timeout is replaced with the builder timeout.
func (b *Builder) WithHTTPClient(httpClient *nethttp.Client) *Builder {
	b.httpClient = httpClient
	return b
}

// WithTransport sets a custom transport on the underlying HTTP client
func (b *Builder) WithTransport(transport nethttp.RoundTripper) *Builder {
	b.transport = transport
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() Client {
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &nethttp.Client{Timeout: b.config.Timeout}
	} else if httpClient.Timeout == 0 {
		httpClient.Timeout = b.config.Timeout
	}
	if b.transport != nil {
		httpClient.Transport = b.transport
	}

	return &client{
		httpClient: httpClient,
		logger:     b.logger,
		config:     b.config,
		tokens:     b.tokens,
		limiter:    b.limiter,
	}
}

// Get performs a GET request. Identical concurrent GETs are collapsed into
// one transport call.
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs an HTTP request with the specified method, applying the full
// recovery pipeline. Only GET requests are deduplicated; writes always
// issue their own transport call.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	if method == nethttp.MethodGet {
		return c.inflight.do(fingerprint(method, req), func() (*Response, error) {
			return c.execute(ctx, method, req)
		})
	}
	return c.execute(ctx, method, req)
}

// execute runs one logical request through auth attach, transport, refresh
// and retry until it settles.
func (c *client) execute(ctx context.Context, method string, req *Request) (*Response, error) {
	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)
	attempt := &attemptContext{}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewNetworkError("rate limiter wait interrupted", err)
		}
	}

	for {
		c.logRequest(method, req, attempt)

		httpReq, err := c.buildRequest(ctx, method, req)
		if err != nil {
			return nil, err
		}

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if c.shouldRetry(attempt) {
				if werr := c.waitBackoff(ctx, attempt, method, req.Path); werr != nil {
					return nil, werr
				}
				continue
			}
			if c.isTimeout(err) {
				return nil, NewTimeoutError("request timeout", c.config.Timeout)
			}
			return nil, NewNetworkError("request execution failed", err)
		}

		resp, err := c.buildResponse(ctx, start, callCount, attempt, httpReq, httpResp)
		if err != nil {
			if IsErrorType(err, NetworkError) && c.shouldRetry(attempt) {
				if werr := c.waitBackoff(ctx, attempt, method, req.Path); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, err
		}

		// 401 belongs to the refresh stage, never to generic retry. The
		// one-shot authRetried flag keeps a replay that 401s again from
		// looping.
		if resp.StatusCode == nethttp.StatusUnauthorized && !attempt.authRetried && c.tokens != nil {
			attempt.authRetried = true
			if _, rerr := c.refreshAccessToken(ctx); rerr != nil {
				c.logResponse(resp)
				return nil, rerr
			}
			c.logger.Debug().
				Str("method", method).
				Str("path", req.Path).
				Msg("replaying request with refreshed access token")
			continue
		}

		if IsSuccessStatus(resp.StatusCode) {
			c.logResponse(resp)
			return resp, nil
		}

		if isRetryableStatus(resp.StatusCode) && c.shouldRetry(attempt) {
			if werr := c.waitBackoff(ctx, attempt, method, req.Path); werr != nil {
				return nil, werr
			}
			continue
		}

		c.logResponse(resp)
		return resp, NewHTTPError(
			fmt.Sprintf("HTTP request failed with status %d", resp.StatusCode),
			resp.StatusCode,
			resp.Body,
		)
	}
}

// shouldRetry reports whether the generic retry stage may re-issue the
// request. Requests that already went through an auth replay are excluded.
func (c *client) shouldRetry(attempt *attemptContext) bool {
	return !attempt.authRetried && attempt.retries < c.config.MaxAttempts
}

// validateRequest validates the request before sending
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.Path == "" {
		return NewValidationError("path cannot be empty", "path")
	}
	if c.config.BaseURL == "" {
		return NewValidationError("base URL is not configured", "base_url")
	}
	return nil
}

// requestURL joins the base URL, path and encoded query parameters
func (c *client) requestURL(req *Request) string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := base + path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

// applyHeaders applies default and request-specific headers
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request) {
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Request-specific headers override defaults
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if httpReq.Header.Get(headerContentType) == "" && req.Body != nil {
		httpReq.Header.Set(headerContentType, contentTypeJSON)
	}

	if httpReq.Header.Get(headerRequestID) == "" && c.config.NewRequestID != nil {
		httpReq.Header.Set(headerRequestID, c.config.NewRequestID())
	}
}

// attachAuth reads the current access token and sets the bearer header.
// Store read errors degrade to an unauthenticated request instead of
// failing the call.
func (c *client) attachAuth(ctx context.Context, httpReq *nethttp.Request) {
	if c.tokens == nil || httpReq.Header.Get(headerAuthorization) != "" {
		return
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("token store read failed, sending request unauthenticated")
		return
	}
	if token != "" {
		httpReq.Header.Set(headerAuthorization, "Bearer "+token)
	}
}

// buildRequest constructs an *http.Request, applies headers/auth, and runs request interceptors.
func (c *client) buildRequest(ctx context.Context, method string, req *Request) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, c.requestURL(req), body)
	if err != nil {
		return nil, NewNetworkError("failed to create HTTP request", err)
	}

	c.applyHeaders(httpReq, req)
	c.attachAuth(ctx, httpReq)

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}
	return httpReq, nil
}

// buildResponse runs response interceptors, reads body, and builds a Response.
func (c *client) buildResponse(ctx context.Context, start time.Time, callCount int64, attempt *attemptContext, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	if err := c.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
			Retries:     attempt.retries,
		},
	}, nil
}

func (c *client) isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// logRequest logs the outgoing request
func (c *client) logRequest(method string, req *Request, attempt *attemptContext) {
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", method).
		Str("path", req.Path)

	if attempt.retries > 0 {
		logEvent = logEvent.Int("retry", attempt.retries)
	}

	if len(req.Headers) > 0 {
		logEvent = logEvent.Interface("headers", req.Headers)
	}

	logEvent.Msg("REST client request")
}

// logResponse logs the incoming response
func (c *client) logResponse(resp *Response) {
	c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Msg("REST client response")
}
