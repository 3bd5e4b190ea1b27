package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureVerify
	RefreshFailureIdle
	RefreshFailureRandom
	RefreshFailureIssue
	RefreshFailureStore
)

// RefreshResult carries either the rotated artifacts or failure metadata.
// RefreshToken is only set when refresh-token rotation is enabled.
type RefreshResult struct {
	Failure RefreshFailureKind
	Verify  VerifyFailureKind
	Err     error

	UserID       string
	SessionID    string
	TokenID      string
	TheftRevoked bool

	AccessToken  string
	AccessClaims *jwt.AccessClaims
	RefreshToken string
	Fingerprint  string
	CSRFToken    string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Verify             VerifyDeps
	Sessions           SessionStore
	Tokens             TokenCodec
	Primitives         Primitives
	RotateRefreshToken bool
	IdleTimeout        time.Duration
	CSRFTTL            time.Duration
	Now                func() time.Time
	Warn               func(string, ...any)
}

// RunRefresh verifies the refresh token and mints a new fingerprint, access
// token and CSRF token for the same session.
func RunRefresh(ctx context.Context, refreshToken, fingerprint string, deps RefreshDeps) RefreshResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = nopWarn
	}
	p := deps.Primitives.withDefaults()

	v := RunVerifyRefresh(ctx, refreshToken, fingerprint, deps.Verify)
	if v.Failure != VerifyFailureNone {
		res := RefreshResult{
			Failure:      RefreshFailureVerify,
			Verify:       v.Failure,
			Err:          v.Err,
			TheftRevoked: v.TheftRevoked,
		}
		if v.Claims != nil {
			res.UserID = v.Claims.UserID
			res.SessionID = v.Claims.SessionID
			res.TokenID = v.Claims.ID
		}
		return res
	}

	claims, rec := v.Claims, v.Session
	base := RefreshResult{UserID: claims.UserID, SessionID: claims.SessionID, TokenID: claims.ID}
	now := deps.Now()

	if deps.IdleTimeout > 0 && rec.IdleFor(now) > deps.IdleTimeout {
		if err := deps.Sessions.DeleteSession(ctx, claims.UserID, claims.SessionID); err != nil {
			deps.Warn("goSession: idle session delete failed")
		}
		if err := deps.Sessions.DeleteRefreshMarker(ctx, claims.UserID, claims.ID); err != nil {
			deps.Warn("goSession: idle refresh marker delete failed")
		}
		base.Failure = RefreshFailureIdle
		return base
	}

	fp, err := p.NewFingerprint()
	if err != nil {
		base.Failure, base.Err = RefreshFailureRandom, err
		return base
	}
	csrf, err := p.NewCSRFToken()
	if err != nil {
		base.Failure, base.Err = RefreshFailureRandom, err
		return base
	}

	access, accessClaims, err := deps.Tokens.IssueAccess(claims.UserID, claims.Email, fp.Hash)
	if err != nil {
		base.Failure, base.Err = RefreshFailureIssue, err
		return base
	}

	var (
		nextRefresh string
		nextClaims  *jwt.RefreshClaims
	)
	if deps.RotateRefreshToken {
		nextRefresh, nextClaims, err = deps.Tokens.IssueRefresh(claims.UserID, claims.Email, claims.SessionID, fp.Hash)
		if err != nil {
			base.Failure, base.Err = RefreshFailureIssue, err
			return base
		}
	}

	if err := deps.Sessions.PutCSRF(ctx, claims.SessionID, csrf, deps.CSRFTTL); err != nil {
		base.Failure, base.Err = RefreshFailureStore, err
		return base
	}

	prev := *rec
	if rec.FingerprintHash != "" {
		rec.PrevFingerprintHash = rec.FingerprintHash
	} else {
		rec.PrevFingerprintHash = claims.FingerprintHash
	}
	rec.FingerprintRotatedAt = now
	rec.FingerprintHash = fp.Hash
	if nextClaims != nil {
		rec.TokenID = nextClaims.ID
	}
	if err := deps.Sessions.TouchSession(ctx, claims.UserID, rec, now); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			base.Failure, base.Verify = RefreshFailureVerify, VerifyFailureRevoked
			return base
		}
		base.Failure, base.Err = RefreshFailureStore, err
		return base
	}

	if nextClaims != nil {
		if err := deps.Sessions.PutRefreshMarker(ctx, claims.UserID, nextClaims.ID, deps.Tokens.RefreshTTL()); err != nil {
			if restoreErr := deps.Sessions.TouchSession(ctx, claims.UserID, &prev, prev.LastActivity); restoreErr != nil {
				deps.Warn("goSession: refresh compensation failed to restore session")
			}
			base.Failure, base.Err = RefreshFailureStore, err
			return base
		}
		if err := deps.Sessions.DeleteRefreshMarker(ctx, claims.UserID, claims.ID); err != nil {
			// The session record already names the new token, so the old
			// one fails verification even while its marker lingers.
			deps.Warn("goSession: rotated refresh marker delete failed")
		}
		base.TokenID = nextClaims.ID
		base.RefreshToken = nextRefresh
	}

	base.AccessToken = access
	base.AccessClaims = accessClaims
	base.Fingerprint = fp.Raw
	base.CSRFToken = csrf
	return base
}
