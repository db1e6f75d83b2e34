package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry returns the expiration time carried in a JWT access token.
// The signature is not verified; the backend is the authority on validity,
// this is only used to anticipate expiry client-side.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("access token carries no exp claim")
	}
	return exp.Time, nil
}

// Expired reports whether the token expires within the given leeway. Tokens
// that cannot be parsed are treated as expired so the caller refreshes
// rather than sending a request doomed to 401.
func Expired(token string, leeway time.Duration) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return time.Now().Add(leeway).After(exp)
}
