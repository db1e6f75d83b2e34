package auth

import (
	"context"
	"errors"
	"sync"
)

// Storage keys for the credential material owned by one session.
const (
	KeyAccessToken  = "auth.accessToken"
	KeyRefreshToken = "auth.refreshToken"
	KeyUser         = "auth.user"
	KeySession      = "auth.session"
)

// SecretStore is the contract for the platform's secure key-value storage.
// Implementations should use the most secure mechanism available. A missing
// key yields ("", nil), not an error.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// TokenStore exposes the token-pair lifecycle over a SecretStore. It is the
// write target of the refresh stage and the read source of the auth-attach
// stage; the session layer calls Set/Clear on login and logout.
type TokenStore struct {
	store SecretStore
}

// NewTokenStore creates a TokenStore backed by the given secret store.
func NewTokenStore(store SecretStore) *TokenStore {
	return &TokenStore{store: store}
}

// AccessToken returns the stored access token, or "" when absent.
func (t *TokenStore) AccessToken(ctx context.Context) (string, error) {
	return t.store.Get(ctx, KeyAccessToken)
}

// SetAccessToken stores the access token; an empty value deletes it.
func (t *TokenStore) SetAccessToken(ctx context.Context, token string) error {
	if token == "" {
		return t.store.Delete(ctx, KeyAccessToken)
	}
	return t.store.Set(ctx, KeyAccessToken, token)
}

// RefreshToken returns the stored refresh token, or "" when absent.
func (t *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	return t.store.Get(ctx, KeyRefreshToken)
}

// SetRefreshToken stores the refresh token; an empty value deletes it.
func (t *TokenStore) SetRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return t.store.Delete(ctx, KeyRefreshToken)
	}
	return t.store.Set(ctx, KeyRefreshToken, token)
}

// SetTokens persists a rotated token pair in one call. Used by the refresh
// stage after a successful refresh and by the session layer after login.
func (t *TokenStore) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	if err := t.SetAccessToken(ctx, accessToken); err != nil {
		return err
	}
	return t.SetRefreshToken(ctx, refreshToken)
}

// CachedUser returns the serialized cached user profile, or "" when absent.
func (t *TokenStore) CachedUser(ctx context.Context) (string, error) {
	return t.store.Get(ctx, KeyUser)
}

// SetCachedUser stores the serialized user profile alongside the tokens.
func (t *TokenStore) SetCachedUser(ctx context.Context, user string) error {
	if user == "" {
		return t.store.Delete(ctx, KeyUser)
	}
	return t.store.Set(ctx, KeyUser, user)
}

// SessionMarker returns the stored session marker, or "" when absent.
func (t *TokenStore) SessionMarker(ctx context.Context) (string, error) {
	return t.store.Get(ctx, KeySession)
}

// SetSessionMarker stores the session marker.
func (t *TokenStore) SetSessionMarker(ctx context.Context, marker string) error {
	if marker == "" {
		return t.store.Delete(ctx, KeySession)
	}
	return t.store.Set(ctx, KeySession, marker)
}

// Clear removes every stored credential: both tokens, the cached user and
// the session marker. All deletions are attempted even if some fail.
func (t *TokenStore) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeySession} {
		if err := t.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySecretStore is an in-memory SecretStore for tests and examples.
// Production builds are expected to wire the platform keychain instead.
type MemorySecretStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySecretStore creates an empty in-memory secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{values: make(map[string]string)}
}

// Get returns the stored value for key, or "" when absent.
func (m *MemorySecretStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

// Set stores value under key.
func (m *MemorySecretStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (m *MemorySecretStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
