// Package httpapi is the cookie-based HTTP surface over a goSession engine.
//
// [NewRouter] mounts the Google login callback, refresh, logout, session
// listing, CSRF issuance, the profile resource and the connections
// resource on a chi router. Every route except /health runs the global
// gate: rate limit, IP block, Sanitize, Screen.
//
// Error bodies are always {error, code} with a static message.
package httpapi
