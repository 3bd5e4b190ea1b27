package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInput
	LoginFailureRandom
	LoginFailureIssue
	LoginFailureStore
)

// LoginInput is the resolved identity plus request metadata.
type LoginInput struct {
	UserID    string
	Email     string
	IP        string
	UserAgent string
}

// LoginResult carries the issued artifacts or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error

	AccessToken   string
	RefreshToken  string
	Fingerprint   string
	SessionID     string
	CSRFToken     string
	AccessClaims  *jwt.AccessClaims
	RefreshClaims *jwt.RefreshClaims
	// Evicted lists sessions revoked to stay under the concurrency cap.
	Evicted []string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Sessions              SessionStore
	Tokens                TokenCodec
	Primitives            Primitives
	MaxConcurrentSessions int
	CSRFTTL               time.Duration
	Now                   func() time.Time
	Warn                  func(string, ...any)
}

// RunLogin mints a fingerprint, an access/refresh pair, a session record and a
// CSRF token. State is written CSRF, session, refresh marker; on any write
// failure the earlier writes are undone and the login fails.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) LoginResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = nopWarn
	}
	p := deps.Primitives.withDefaults()

	if in.UserID == "" {
		return LoginResult{Failure: LoginFailureInput, Err: errors.New("missing user id")}
	}

	evicted, err := enforceSessionCap(ctx, in.UserID, deps)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, Evicted: evicted}
	}

	fp, err := p.NewFingerprint()
	if err != nil {
		return LoginResult{Failure: LoginFailureRandom, Err: err}
	}
	csrf, err := p.NewCSRFToken()
	if err != nil {
		return LoginResult{Failure: LoginFailureRandom, Err: err}
	}
	sessionID := p.NewSessionID()

	refresh, refreshClaims, err := deps.Tokens.IssueRefresh(in.UserID, in.Email, sessionID, fp.Hash)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err}
	}
	access, accessClaims, err := deps.Tokens.IssueAccess(in.UserID, in.Email, fp.Hash)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err}
	}

	now := deps.Now()
	rec := session.Record{
		SessionID:       sessionID,
		TokenID:         refreshClaims.ID,
		FingerprintHash: fp.Hash,
		CreatedAt:       now,
		LastActivity:    now,
		IP:              in.IP,
		UserAgent:       in.UserAgent,
	}
	refreshTTL := deps.Tokens.RefreshTTL()

	if err := deps.Sessions.PutCSRF(ctx, sessionID, csrf, deps.CSRFTTL); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}
	if err := deps.Sessions.SaveSession(ctx, in.UserID, rec, refreshTTL); err != nil {
		undoLogin(ctx, in.UserID, rec, deps)
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}
	if err := deps.Sessions.PutRefreshMarker(ctx, in.UserID, refreshClaims.ID, refreshTTL); err != nil {
		undoLogin(ctx, in.UserID, rec, deps)
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	return LoginResult{
		AccessToken:   access,
		RefreshToken:  refresh,
		Fingerprint:   fp.Raw,
		SessionID:     sessionID,
		CSRFToken:     csrf,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
		Evicted:       evicted,
	}
}

// enforceSessionCap revokes the oldest sessions until one more fits.
func enforceSessionCap(ctx context.Context, userID string, deps LoginDeps) ([]string, error) {
	if deps.MaxConcurrentSessions <= 0 {
		return nil, nil
	}
	sessions, err := deps.Sessions.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	var evicted []string
	for len(sessions) >= deps.MaxConcurrentSessions {
		oldest := sessions[0]
		sessions = sessions[1:]
		if err := deps.Sessions.DeleteSession(ctx, userID, oldest.SessionID); err != nil {
			return evicted, err
		}
		if oldest.TokenID != "" {
			if err := deps.Sessions.DeleteRefreshMarker(ctx, userID, oldest.TokenID); err != nil {
				return evicted, err
			}
		}
		evicted = append(evicted, oldest.SessionID)
	}
	return evicted, nil
}

func undoLogin(ctx context.Context, userID string, rec session.Record, deps LoginDeps) {
	if err := deps.Sessions.DeleteRefreshMarker(ctx, userID, rec.TokenID); err != nil {
		deps.Warn("goSession: login compensation failed to drop refresh marker")
	}
	if err := deps.Sessions.DeleteSession(ctx, userID, rec.SessionID); err != nil {
		deps.Warn("goSession: login compensation failed to drop session")
	}
}
