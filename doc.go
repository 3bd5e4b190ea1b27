// Package goSession issues, verifies, refreshes and revokes fingerprint-bound
// session tokens for browser clients.
//
// A login produces a short-lived access token, a long-lived refresh token, a
// random fingerprint whose SHA-256 hash is bound into both tokens, a session
// record and a CSRF token. All revocable state lives in a key-value store
// (Redis in production) so a logout or a theft signal takes effect on every
// replica at once.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and value types. Flow orchestration, rate limiting and
// audit dispatch live under internal/ and are never exported. The HTTP
// binding lives in the middleware and httpapi packages.
//
// # What this package must NOT do
//
//   - Trust a token without consulting the store: the blacklist is read on
//     every access verification and the refresh marker on every refresh.
//   - Leave a refresh marker without a session record after a failed login.
//   - Put internal error detail in client-facing messages.
package goSession
