// Package httpclient provides the resilient REST client used by the
// Coursebook SDK. Every request flows through a fixed pipeline layered
// around net/http:
//
//  1. Auth attach: the current access token is read from the token store
//     and attached as a bearer Authorization header. Store read failures
//     degrade to an unauthenticated request.
//  2. Deduplication: concurrent identical GET requests (same path and
//     query) collapse into a single in-flight transport call; all callers
//     observe the same settled outcome. Writes are never deduplicated.
//  3. Refresh on 401: the first 401 for a logical request triggers a
//     single-flight token refresh. Requests failing while a refresh is in
//     flight queue behind it (FIFO) instead of issuing their own refresh.
//     On success the failing requests are replayed once with the new
//     token; on failure all stored credentials are cleared and every
//     queued request rejects with the refresh error.
//  4. Retry: network failures and 408/429/500/502/503/504 responses are
//     retried with exponential backoff (baseDelay * multiplier^attempt)
//     up to maxAttempts. Requests that already went through an auth
//     replay are not retried again. Jitter is available as an opt-in.
//
// Callers only ever see a final response or a final error; whether it
// came from the first attempt, a retry, or a post-refresh replay is not
// observable.
package httpclient
