package jwt

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// SigningMethod names the HMAC algorithm used for both token kinds.
type SigningMethod string

const (
	MethodHS256 SigningMethod = "hs256"
	MethodHS384 SigningMethod = "hs384"
	MethodHS512 SigningMethod = "hs512"
)

// TokenType is the discriminator carried in the "type" claim.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

const (
	minSecretLen      = 32
	refreshKeyInfo    = "goSession refresh"
	derivedRefreshLen = 64
)

var (
	// ErrWrongTokenType is returned when a token of one kind is presented to the
	// other kind's parser.
	ErrWrongTokenType = errors.New("jwt: wrong token type")
	// ErrMissingClaims is returned when a required identity claim is empty.
	ErrMissingClaims = errors.New("jwt: missing required claims")
)

// Config holds codec parameters. Zero durations are rejected by NewManager.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	AccessSecret  []byte
	// RefreshSecret signs refresh tokens. When empty it is derived from
	// AccessSecret with HKDF-SHA512, so the two keys never coincide.
	RefreshSecret []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	// Now overrides the clock for issuance and validation.
	Now func() time.Time
}

// Manager issues and parses access and refresh tokens.
//
// Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	config     Config
	refreshKey []byte
}

// Claims is implemented only by AccessClaims and RefreshClaims.
type Claims interface {
	Kind() TokenType
	sealed()
}

// AccessClaims is the payload of a short-lived access token. The fingerprint
// appears only as its hash.
type AccessClaims struct {
	UserID          string    `json:"uid"`
	Email           string    `json:"email,omitempty"`
	FingerprintHash string    `json:"fph"`
	Type            TokenType `json:"type"`
	jwt.RegisteredClaims
}

func (AccessClaims) Kind() TokenType { return TypeAccess }
func (AccessClaims) sealed()         {}

// TokenID returns the jti claim.
func (c *AccessClaims) TokenID() string { return c.ID }

// RefreshClaims is the payload of a long-lived refresh token. Its liveness is
// anchored server-side by the (UserID, jti) marker.
type RefreshClaims struct {
	UserID          string    `json:"uid"`
	Email           string    `json:"email,omitempty"`
	SessionID       string    `json:"sid"`
	FingerprintHash string    `json:"fph"`
	Type            TokenType `json:"type"`
	jwt.RegisteredClaims
}

func (RefreshClaims) Kind() TokenType { return TypeRefresh }
func (RefreshClaims) sealed()         {}

// TokenID returns the jti claim.
func (c *RefreshClaims) TokenID() string { return c.ID }

// NewManager validates cfg and prepares signing keys.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS512
	}
	switch cfg.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512:
	default:
		return nil, errors.New("unsupported signing method")
	}
	if len(cfg.AccessSecret) < minSecretLen {
		return nil, fmt.Errorf("access secret must be at least %d bytes", minSecretLen)
	}
	if len(cfg.RefreshSecret) > 0 && len(cfg.RefreshSecret) < minSecretLen {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", minSecretLen)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	refreshKey := cfg.RefreshSecret
	if len(refreshKey) == 0 {
		derived, err := deriveRefreshKey(cfg.AccessSecret)
		if err != nil {
			return nil, err
		}
		refreshKey = derived
	}

	return &Manager{config: cfg, refreshKey: refreshKey}, nil
}

func deriveRefreshKey(accessSecret []byte) ([]byte, error) {
	out := make([]byte, derivedRefreshLen)
	r := hkdf.New(sha512.New, accessSecret, nil, []byte(refreshKeyInfo))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("derive refresh key: %w", err)
	}
	return out, nil
}

// AccessTTL returns the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (j *Manager) RefreshTTL() time.Duration { return j.config.RefreshTTL }

// IssueAccess signs an access token with a fresh jti bound to fingerprintHash.
func (j *Manager) IssueAccess(userID, email, fingerprintHash string) (string, *AccessClaims, error) {
	if userID == "" || fingerprintHash == "" {
		return "", nil, ErrMissingClaims
	}
	claims := &AccessClaims{
		UserID:           userID,
		Email:            email,
		FingerprintHash:  fingerprintHash,
		Type:             TypeAccess,
		RegisteredClaims: j.registered(internal.NewTokenID(), j.config.AccessTTL),
	}
	token, err := j.sign(claims, j.config.AccessSecret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// IssueRefresh signs a refresh token with a fresh jti. A new session id is
// minted when sessionID is empty.
func (j *Manager) IssueRefresh(userID, email, sessionID, fingerprintHash string) (string, *RefreshClaims, error) {
	if userID == "" || fingerprintHash == "" {
		return "", nil, ErrMissingClaims
	}
	if sessionID == "" {
		sessionID = internal.NewSessionID()
	}
	claims := &RefreshClaims{
		UserID:           userID,
		Email:            email,
		SessionID:        sessionID,
		FingerprintHash:  fingerprintHash,
		Type:             TypeRefresh,
		RegisteredClaims: j.registered(internal.NewTokenID(), j.config.RefreshTTL),
	}
	token, err := j.sign(claims, j.refreshKey)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func (j *Manager) registered(jti string, ttl time.Duration) jwt.RegisteredClaims {
	now := j.config.Now()
	rc := jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    j.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if j.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{j.config.Audience}
	}
	return rc
}

func (j *Manager) sign(claims jwt.Claims, key []byte) (string, error) {
	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}
	return token.SignedString(key)
}

// ParseAccess verifies signature, registered claims and the access discriminator.
// Expiry surfaces as an error wrapping jwt.ErrTokenExpired; see IsExpired.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, j.config.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// ParseRefresh verifies signature, registered claims and the refresh discriminator.
// It does not check server-side liveness.
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, j.refreshKey); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == "" || claims.ID == "" || claims.SessionID == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// AccessRemaining returns how long a validly signed access token has left.
// Expired or otherwise invalid tokens report zero with no error, since there
// is nothing left to revoke.
func (j *Manager) AccessRemaining(tokenStr string) (time.Duration, error) {
	claims, err := j.ParseAccess(tokenStr)
	if err != nil {
		return 0, nil
	}
	remaining := claims.ExpiresAt.Time.Sub(j.config.Now())
	if remaining <= 0 {
		return 0, nil
	}
	if remaining > j.config.AccessTTL {
		remaining = j.config.AccessTTL
	}
	return remaining, nil
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims, key []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return key, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}

	// WithIssuedAt rejects a future iat but tolerates a missing one.
	iat, err := claims.GetIssuedAt()
	if err != nil {
		return err
	}
	if iat == nil {
		return jwt.ErrTokenRequiredClaimMissing
	}
	return nil
}

// IsExpired reports whether err came from an expired exp claim.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	case MethodHS384:
		return jwt.SigningMethodHS384
	default:
		return jwt.SigningMethodHS512
	}
}
