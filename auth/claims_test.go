package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"sub": "u-1", "exp": exp.Unix()})

	got, err := TokenExpiry(token)
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), got.Unix())
}

func TestTokenExpiryErrors(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage token", token: "not-a-jwt"},
		{name: "empty token", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TokenExpiry(tt.token)
			assert.Error(t, err)
		})
	}

	t.Run("missing exp claim", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"sub": "u-1"})
		_, err := TokenExpiry(token)
		assert.Error(t, err)
	})
}

func TestExpired(t *testing.T) {
	tests := []struct {
		name    string
		exp     time.Duration
		leeway  time.Duration
		expired bool
	}{
		{name: "valid token", exp: time.Hour, leeway: 0, expired: false},
		{name: "already expired", exp: -time.Minute, leeway: 0, expired: true},
		{name: "inside leeway window", exp: 10 * time.Second, leeway: 30 * time.Second, expired: true},
		{name: "outside leeway window", exp: time.Hour, leeway: 30 * time.Second, expired: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(tt.exp).Unix()})
			assert.Equal(t, tt.expired, Expired(token, tt.leeway))
		})
	}
}

func TestExpiredUnparsableTokenTreatedAsExpired(t *testing.T) {
	assert.True(t, Expired("garbage", 0))
}
