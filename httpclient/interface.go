package httpclient

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"
)

// Client defines the REST client interface for making HTTP requests
// against the configured API origin.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Request describes one outbound API call. It is not mutated by the
// pipeline; per-attempt state lives in an internal attempt context.
type Request struct {
	// Path is the request path relative to the base URL, e.g. "/courses".
	Path string
	// Query holds query parameters, serialized into the fingerprint used
	// for GET deduplication.
	Query url.Values
	// Headers are request-specific headers; they override default headers.
	Headers map[string]string
	// Body is the raw request body, sent as-is.
	Body []byte
}

// Response represents an HTTP response with tracking information.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics.
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
	// Retries is the number of backoff retries the pipeline performed
	// before settling.
	Retries int
}

// TokenStore is the credential storage contract consumed by the auth-attach
// and refresh stages. Implementations are expected to persist tokens in the
// platform's secure storage; see the auth package.
type TokenStore interface {
	// AccessToken returns the stored access token, or "" when absent.
	AccessToken(ctx context.Context) (string, error)
	// RefreshToken returns the stored refresh token, or "" when absent.
	RefreshToken(ctx context.Context) (string, error)
	// SetTokens persists a rotated token pair.
	SetTokens(ctx context.Context, accessToken, refreshToken string) error
	// Clear removes every stored credential (tokens, cached user, session
	// marker). Called when a refresh fails irrecoverably.
	Clear(ctx context.Context) error
}

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the REST client configuration
type Config struct {
	// BaseURL is the API origin all request paths are resolved against.
	BaseURL string
	// Timeout is the per-call deadline before the request is treated as a
	// network failure.
	Timeout time.Duration
	// MaxAttempts is the retry ceiling for transient failures.
	MaxAttempts int
	// BaseDelay is the first backoff delay.
	BaseDelay time.Duration
	// BackoffMultiplier scales the delay on every retry.
	BackoffMultiplier float64
	// Jitter randomizes each backoff delay in [0, delay) when enabled.
	Jitter bool
	// NewRequestID generates the X-Request-ID value attached to requests
	// that do not carry one (default: uuid).
	NewRequestID         func() string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	DefaultHeaders       map[string]string
}
