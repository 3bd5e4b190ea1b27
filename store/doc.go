// Package store defines the revocable key-value capability that every piece of
// goSession server-side state lives in: access-token blacklist entries, session
// records, refresh-token liveness markers, CSRF tokens, rate-limit counters and
// the IP block list.
//
// # Contract
//
//   - Single-key operations are atomic. There is no cross-key transaction.
//   - [KV.IncrWithTTL] increments and arms the expiry in one round trip, so a
//     counter can never be left without a TTL.
//   - [KV.Get] reports a missing key as [ErrNotFound]; every other failure is
//     wrapped in [ErrUnavailable] so callers can fail closed.
//
// The package ships [RedisKV]. Callers inject the KV explicitly; nothing in
// goSession reaches a store through package-level state.
package store
