package httpclient

import (
	"context"
	crand "crypto/rand"
	"math"
	"math/big"
	nethttp "net/http"
	"time"
)

// maxBackoff caps a single backoff delay to avoid excessive waits.
const maxBackoff = 30 * time.Second

// isRetryableStatus reports whether a response status may be retried as a
// transient failure. 401 is deliberately absent: unauthorized responses go
// through the refresh stage or fail terminally.
func isRetryableStatus(code int) bool {
	switch code {
	case nethttp.StatusRequestTimeout,
		nethttp.StatusTooManyRequests,
		nethttp.StatusInternalServerError,
		nethttp.StatusBadGateway,
		nethttp.StatusServiceUnavailable,
		nethttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// backoffDelay returns the delay before the given retry (0-based):
// baseDelay * multiplier^retry, capped at maxBackoff. With jitter enabled
// the delay is randomized in [0, delay).
func (c *client) backoffDelay(retry int) time.Duration {
	base := c.config.BaseDelay
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	multiplier := c.config.BackoffMultiplier
	if multiplier < 1 {
		multiplier = DefaultBackoffMultiplier
	}

	// Cap the exponent to avoid overflow when computing the multiplier
	if retry > 20 {
		retry = 20
	}
	d := time.Duration(float64(base) * math.Pow(multiplier, float64(retry)))
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}

	if !c.config.Jitter {
		return d
	}

	n, err := crand.Int(crand.Reader, big.NewInt(int64(d)))
	if err != nil {
		// On RNG failure, fall back to the full delay
		return d
	}
	return time.Duration(n.Int64())
}

// waitBackoff sleeps for the current retry's backoff delay, bumps the retry
// counter, and honors context cancellation. Other in-flight requests are
// unaffected by the wait.
func (c *client) waitBackoff(ctx context.Context, attempt *attemptContext, method, path string) error {
	delay := c.backoffDelay(attempt.retries)
	attempt.retries++

	c.logger.Warn().
		Str("method", method).
		Str("path", path).
		Int("retry", attempt.retries).
		Dur("delay", delay).
		Msg("transient failure, retrying after backoff")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return NewNetworkError("backoff wait interrupted", ctx.Err())
	}
}
