package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// VerifyFailureKind classifies token verification failures for root-level mapping.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureStore
	VerifyFailureBlacklisted
	VerifyFailureExpired
	VerifyFailureInvalid
	VerifyFailureFingerprintMissing
	VerifyFailureFingerprintMismatch
	VerifyFailureRevoked
)

// VerifyDeps captures access/refresh verification dependencies.
type VerifyDeps struct {
	Sessions           SessionStore
	Tokens             TokenCodec
	RequireFingerprint bool
	IsExpired          func(error) bool
	Primitives         Primitives
	// OnTheft is called after a refresh fingerprint mismatch revoked every
	// session of the user.
	OnTheft func(ctx context.Context, userID, sessionID string, revoked int64, err error)
	// FingerprintGrace is how long the fingerprint replaced by a refresh is
	// still accepted for the same session. Zero disables the grace.
	FingerprintGrace time.Duration
	Now              func() time.Time
	Warn             func(string, ...any)
}

// VerifyAccessResult carries claims or failure metadata.
type VerifyAccessResult struct {
	Failure VerifyFailureKind
	Err     error
	Claims  *jwt.AccessClaims
}

// RunVerifyAccess checks the blacklist, then signature/expiry/type, then the
// fingerprint binding when a cookie was presented.
func RunVerifyAccess(ctx context.Context, token, fingerprint string, deps VerifyDeps) VerifyAccessResult {
	p := deps.Primitives.withDefaults()

	blacklisted, err := deps.Sessions.IsBlacklisted(ctx, token)
	if err != nil {
		return VerifyAccessResult{Failure: VerifyFailureStore, Err: err}
	}
	if blacklisted {
		return VerifyAccessResult{Failure: VerifyFailureBlacklisted}
	}

	claims, err := deps.Tokens.ParseAccess(token)
	if err != nil {
		if deps.IsExpired != nil && deps.IsExpired(err) {
			return VerifyAccessResult{Failure: VerifyFailureExpired, Err: err}
		}
		return VerifyAccessResult{Failure: VerifyFailureInvalid, Err: err}
	}

	if fingerprint == "" {
		if deps.RequireFingerprint {
			return VerifyAccessResult{Failure: VerifyFailureFingerprintMissing, Claims: claims}
		}
		return VerifyAccessResult{Claims: claims}
	}
	if !p.FingerprintMatches(fingerprint, claims.FingerprintHash) {
		return VerifyAccessResult{Failure: VerifyFailureFingerprintMismatch, Claims: claims}
	}
	return VerifyAccessResult{Claims: claims}
}

// VerifyRefreshResult carries claims plus the session record backing them.
type VerifyRefreshResult struct {
	Failure      VerifyFailureKind
	Err          error
	Claims       *jwt.RefreshClaims
	Session      *session.Record
	TheftRevoked bool
}

// RunVerifyRefresh checks signature/expiry/type, then the fingerprint, then
// the store-held liveness marker. A fingerprint mismatch revokes every session
// of the user before returning.
//
// A token whose session record is gone is revoked without a fingerprint
// comparison. Otherwise the expected fingerprint is the one most recently
// issued to the session, falling back to the hash in the token for records
// that predate fingerprint tracking. The fingerprint it replaced stays valid
// for FingerprintGrace so concurrent refreshes from tabs sharing one cookie
// jar do not read as theft.
func RunVerifyRefresh(ctx context.Context, token, fingerprint string, deps VerifyDeps) VerifyRefreshResult {
	p := deps.Primitives.withDefaults()
	warn := deps.Warn
	if warn == nil {
		warn = nopWarn
	}

	claims, err := deps.Tokens.ParseRefresh(token)
	if err != nil {
		if deps.IsExpired != nil && deps.IsExpired(err) {
			return VerifyRefreshResult{Failure: VerifyFailureExpired, Err: err}
		}
		return VerifyRefreshResult{Failure: VerifyFailureInvalid, Err: err}
	}

	rec, err := deps.Sessions.GetSession(ctx, claims.UserID, claims.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionCorrupt):
		rec = nil
	default:
		return VerifyRefreshResult{Failure: VerifyFailureStore, Err: err, Claims: claims}
	}

	if rec == nil {
		// Evicted, idled out or logged out. The token's fingerprint may have
		// rotated since, so a mismatch here says nothing about theft.
		if delErr := deps.Sessions.DeleteRefreshMarker(ctx, claims.UserID, claims.ID); delErr != nil {
			warn("goSession: orphan refresh marker cleanup failed")
		}
		return VerifyRefreshResult{Failure: VerifyFailureRevoked, Claims: claims}
	}

	if fingerprint == "" {
		if deps.RequireFingerprint {
			return VerifyRefreshResult{Failure: VerifyFailureFingerprintMissing, Claims: claims}
		}
	} else if !fingerprintAccepted(p, fingerprint, claims, rec, deps) {
		n, revokeErr := deps.Sessions.DeleteAllForUser(ctx, claims.UserID)
		if revokeErr != nil {
			warn("goSession: theft revocation incomplete")
		}
		if deps.OnTheft != nil {
			deps.OnTheft(ctx, claims.UserID, claims.SessionID, n, revokeErr)
		}
		return VerifyRefreshResult{
			Failure:      VerifyFailureFingerprintMismatch,
			Err:          revokeErr,
			Claims:       claims,
			TheftRevoked: true,
		}
	}

	live, err := deps.Sessions.RefreshMarkerLive(ctx, claims.UserID, claims.ID)
	if err != nil {
		return VerifyRefreshResult{Failure: VerifyFailureStore, Err: err, Claims: claims}
	}
	if !live {
		return VerifyRefreshResult{Failure: VerifyFailureRevoked, Claims: claims}
	}

	if rec.TokenID != "" && rec.TokenID != claims.ID {
		// A marker the session no longer names is a leftover of a partial
		// rotation; finish it.
		if delErr := deps.Sessions.DeleteRefreshMarker(ctx, claims.UserID, claims.ID); delErr != nil {
			warn("goSession: orphan refresh marker cleanup failed")
		}
		return VerifyRefreshResult{Failure: VerifyFailureRevoked, Claims: claims}
	}

	return VerifyRefreshResult{Claims: claims, Session: rec}
}

func fingerprintAccepted(p Primitives, fingerprint string, claims *jwt.RefreshClaims, rec *session.Record, deps VerifyDeps) bool {
	expected := claims.FingerprintHash
	if rec.FingerprintHash != "" {
		expected = rec.FingerprintHash
	}
	if p.FingerprintMatches(fingerprint, expected) {
		return true
	}
	if deps.FingerprintGrace <= 0 || rec.PrevFingerprintHash == "" || rec.FingerprintRotatedAt.IsZero() {
		return false
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	if now().Sub(rec.FingerprintRotatedAt) > deps.FingerprintGrace {
		return false
	}
	return p.FingerprintMatches(fingerprint, rec.PrevFingerprintHash)
}
