// Package userstore persists user accounts and the per-user connections
// resource.
//
// Two implementations are provided: Memory, for tests and the runnable
// example, and Mongo, backed by go.mongodb.org/mongo-driver. Both honor the
// same contract:
//
//   - emails are unique, lowercased and trimmed;
//   - RecordLoginFailure locks the account for LockoutPolicy.Duration once
//     LockoutPolicy.Threshold consecutive failures accumulate, and an expired
//     lock restarts the count at one;
//   - connections are always filtered by owner, so a connection owned by
//     another user is indistinguishable from a missing one.
package userstore
