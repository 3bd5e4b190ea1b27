// Package session owns the server-side state of a goSession login: session
// records, refresh-token liveness markers, CSRF tokens and the access-token
// blacklist, all laid out on an injected [store.KV].
//
// # Architecture boundaries
//
// This package does NOT interpret JWT tokens or enforce authentication policy;
// those belong to the Engine. It only knows key names, TTLs and record encoding.
//
// # What this package must NOT do
//
//   - Import goSession, jwt or middleware (no upward imports).
//   - Store a raw fingerprint anywhere.
package session
