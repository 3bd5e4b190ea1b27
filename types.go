package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/userstore"
)

// AccessClaims are the verified claims of an access token.
type AccessClaims = jwt.AccessClaims

// RefreshClaims are the verified claims of a refresh token.
type RefreshClaims = jwt.RefreshClaims

// RatePolicy is one throttling rule: at most Limit events per Window.
type RatePolicy = rate.Policy

// RateDecision reports the outcome of a throttle check and the values for
// the X-RateLimit-* headers.
type RateDecision = rate.Decision

// LoginRequest is an already-resolved identity plus request metadata.
// IP and UserAgent fall back to the values attached with WithClientIP and
// WithUserAgent.
type LoginRequest struct {
	UserID    string
	Email     string
	IP        string
	UserAgent string
}

// LoginResult carries every artifact the HTTP layer turns into cookies.
type LoginResult struct {
	// User is set by LoginWithCode.
	User *userstore.User

	AccessToken  string
	RefreshToken string
	// Fingerprint is the raw value for the fingerprint cookie. Tokens only
	// carry its hash.
	Fingerprint string
	SessionID   string
	CSRFToken   string
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration

	AccessClaims  *AccessClaims
	RefreshClaims *RefreshClaims
	// Evicted lists sessions revoked to stay under the concurrency cap.
	Evicted []string
}

// RefreshResult carries the reissued artifacts. RefreshToken is empty unless
// refresh-token rotation is enabled.
type RefreshResult struct {
	UserID       string
	SessionID    string
	AccessToken  string
	RefreshToken string
	Fingerprint  string
	CSRFToken    string
	ExpiresIn    time.Duration
	AccessClaims *AccessClaims
}

// LogoutRequest names the tokens to revoke. Either may be empty.
type LogoutRequest struct {
	AccessToken  string
	RefreshToken string
}

// SessionInfo describes one active session.
type SessionInfo struct {
	SessionID    string    `json:"sessionId"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	Current      bool      `json:"current"`
}
