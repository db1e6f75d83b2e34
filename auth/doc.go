// Package auth holds the credential-storage helpers consumed by the HTTP
// client pipeline and the application's session layer. Tokens live in a
// platform SecretStore (keychain, keystore, or an in-memory store in
// tests); TokenStore maps the store onto the access/refresh token pair,
// the cached user and the session marker, and knows how to wipe all of
// them when a session ends.
package auth
