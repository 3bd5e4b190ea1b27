// Package internal contains helper utilities that are private to goSession,
// chiefly the secure random and hashing primitives behind fingerprints, CSRF
// tokens, token ids and session ids.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for login, refresh and logout
//   - logging: slog construction and the HTTP access-log middleware
//   - rate: store-backed fixed-window limiter and IP block list
//   - screen: HTML escaping and injection pattern screening
//   - security: configuration posture report
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
