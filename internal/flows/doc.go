// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunVerifyAccess, etc.) accepts a
// typed dependency struct and returns results without side-effects beyond those
// dependencies. Failures are classified with per-flow FailureKind enums so the
// root package can map them onto its public error taxonomy.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store and the token codec.
// They do NOT own either resource; ownership stays with the Engine.
//
// # Write ordering
//
// Login and rotating refresh write CSRF, then the session record, then the
// refresh marker. The marker is the liveness anchor, so a token is never live
// before its revocation handle exists. Partial writes are compensated with
// best-effort deletes.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
