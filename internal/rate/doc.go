// Package rate provides the store-backed request throttling and IP block list
// used by the request gate.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional PEXPIRE on first hit, executed
// atomically by the store. The window starts at the first counted request and
// the counter disappears when it elapses. Key layout:
//   - rl:{policy}:{key}: per-policy counter
//   - blocked:{ip}     : block list entry
//
// Policies with OnlyFailures set are never incremented by Allow; callers record
// failed attempts through RecordFailure.
//
// # Store outages
//
// By default an unreachable store denies the request with ErrStoreUnavailable.
// With Config.FailOpen the limiter degrades to an in-process token bucket per
// key so a single instance still stays bounded.
//
// # What this package must NOT do
//
//   - Decide which policy applies to which route (the gate does that).
//   - Be imported outside the goSession module.
package rate
