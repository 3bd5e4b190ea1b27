// Package middleware is the request gate in front of goSession handlers.
//
// A [Gate] runs an ordered list of [Stage] values. Each stage either passes
// the (possibly replaced) request on or returns a [Rejection]; the first
// rejection is written as JSON {error, code} with its status and the chain
// stops.
//
// # Stages
//
//   - [ClientInfo]: records client address and user agent in the context.
//   - [RateLimit]: store-backed throttling with X-RateLimit-* headers.
//   - [IPBlock]: rejects blocked addresses.
//   - [Sanitize]: bounds and HTML-escapes JSON bodies and query values.
//   - [Screen]: rejects SQL patterns and document-query operators.
//   - [Authenticate]: verifies the access token and fingerprint cookie.
//   - [CSRF]: double-submit check on state-changing methods.
//   - [RequireRefresh]: verifies the refresh token for refresh/logout.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token, session
// and throttling decisions are made by goSession.Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access the store directly.
//   - Write internal error detail to responses.
package middleware
