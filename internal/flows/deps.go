package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// SessionStore is the session-state surface used by every flow.
type SessionStore interface {
	SaveSession(ctx context.Context, userID string, rec session.Record, ttl time.Duration) error
	GetSession(ctx context.Context, userID, sessionID string) (*session.Record, error)
	TouchSession(ctx context.Context, userID string, rec *session.Record, now time.Time) error
	DeleteSession(ctx context.Context, userID, sessionID string) error
	ListSessions(ctx context.Context, userID string) ([]session.Record, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	PutRefreshMarker(ctx context.Context, userID, tokenID string, ttl time.Duration) error
	RefreshMarkerLive(ctx context.Context, userID, tokenID string) (bool, error)
	DeleteRefreshMarker(ctx context.Context, userID, tokenID string) error

	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)

	PutCSRF(ctx context.Context, sessionID, token string, ttl time.Duration) error
	GetCSRF(ctx context.Context, sessionID string) (string, error)
}

// TokenCodec issues and parses the signed access/refresh pair.
type TokenCodec interface {
	IssueAccess(userID, email, fingerprintHash string) (string, *jwt.AccessClaims, error)
	IssueRefresh(userID, email, sessionID, fingerprintHash string) (string, *jwt.RefreshClaims, error)
	ParseAccess(token string) (*jwt.AccessClaims, error)
	ParseRefresh(token string) (*jwt.RefreshClaims, error)
	AccessRemaining(token string) (time.Duration, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
	Verify  VerifyDeps
	Logout  LogoutDeps
	CSRF    CSRFDeps
}

// Primitives are the random/hash helpers flows call. Tests swap them for
// deterministic versions.
type Primitives struct {
	NewFingerprint     func() (internal.Fingerprint, error)
	NewCSRFToken       func() (string, error)
	NewSessionID       func() string
	FingerprintMatches func(raw, hash string) bool
	EqualConstantTime  func(a, b string) bool
}

// DefaultPrimitives returns the crypto/rand backed helpers.
func DefaultPrimitives() Primitives {
	return Primitives{
		NewFingerprint:     internal.NewFingerprint,
		NewCSRFToken:       internal.NewCSRFToken,
		NewSessionID:       internal.NewSessionID,
		FingerprintMatches: internal.FingerprintMatches,
		EqualConstantTime:  internal.EqualConstantTime,
	}
}

func (p Primitives) withDefaults() Primitives {
	d := DefaultPrimitives()
	if p.NewFingerprint == nil {
		p.NewFingerprint = d.NewFingerprint
	}
	if p.NewCSRFToken == nil {
		p.NewCSRFToken = d.NewCSRFToken
	}
	if p.NewSessionID == nil {
		p.NewSessionID = d.NewSessionID
	}
	if p.FingerprintMatches == nil {
		p.FingerprintMatches = d.FingerprintMatches
	}
	if p.EqualConstantTime == nil {
		p.EqualConstantTime = d.EqualConstantTime
	}
	return p
}

func nopWarn(string, ...any) {}
