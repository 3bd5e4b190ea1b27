package goSession

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
)

// Config groups every engine setting by concern.
//
// Config is copied into the Engine at Build time; later changes to the
// caller's value have no effect.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Security  SecurityConfig
	CSRF      CSRFConfig
	RateLimit RateLimitConfig
	Cookies   CookieConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the access/refresh token codec.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "HS512" (default), "HS384", "HS256"
	AccessSecret  []byte
	// RefreshSecret is optional. When empty the refresh key is derived from
	// AccessSecret.
	RefreshSecret []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig bounds how many sessions a user holds and how long they may sit idle.
type SessionConfig struct {
	// MaxConcurrentSessions evicts the oldest session on login once reached.
	// Zero disables the cap.
	MaxConcurrentSessions int
	// IdleTimeout revokes a session on refresh when its last activity is
	// older. Zero, the default, disables the check so a refresh token stays
	// usable for its whole lifetime.
	IdleTimeout time.Duration
	// FingerprintGrace keeps the fingerprint replaced by a refresh valid for
	// the same session this long. Zero disables it.
	FingerprintGrace time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig toggles the hardening options.
type SecurityConfig struct {
	// ProductionMode switches cookies to prefixed, Secure names.
	ProductionMode bool
	// RequireFingerprint rejects tokens presented without the fingerprint cookie.
	RequireFingerprint bool
	// RotateRefreshToken issues a new refresh token on every refresh.
	RotateRefreshToken bool
	// RequireVerifiedEmail rejects provider identities whose email is unverified.
	RequireVerifiedEmail bool
	// MaxBodyBytes bounds request bodies read by the sanitizer.
	MaxBodyBytes int64
	ScreenSQL    bool
	ScreenNoSQL  bool
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig configures the double-submit token.
type CSRFConfig struct {
	TTL        time.Duration
	HeaderName string
	// AltHeaderName is checked when HeaderName is absent.
	AltHeaderName string
	// BodyField is the JSON body field checked last.
	BodyField string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures request throttling and the IP block list.
type RateLimitConfig struct {
	Enabled bool
	// FailOpen falls back to in-process buckets when the store errors.
	// When false a store error rejects the request.
	FailOpen      bool
	MaxLocalKeys  int
	General       RatePolicy
	Login         RatePolicy
	Refresh       RatePolicy
	PasswordReset RatePolicy
	BlockTTL      time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the cookies the HTTP layer sets.
type CookieConfig struct {
	AccessName      string
	RefreshName     string
	FingerprintName string
	SessionName     string
	CSRFName        string
	// RefreshPath scopes the refresh cookie to the auth endpoints.
	RefreshPath string
	Domain      string
	SameSite    http.SameSite
}

// Resolve returns the effective cookie names for the deployment mode.
//
// In production the access and fingerprint cookies take the __Host- prefix.
// The refresh cookie is path-scoped, which __Host- forbids, so it takes
// __Secure- instead.
func (c CookieConfig) Resolve(production bool) CookieConfig {
	if !production {
		return c
	}
	c.AccessName = prefixCookie("__Host-", c.AccessName)
	c.FingerprintName = prefixCookie("__Host-", c.FingerprintName)
	if c.RefreshPath == "" || c.RefreshPath == "/" {
		c.RefreshName = prefixCookie("__Host-", c.RefreshName)
	} else {
		c.RefreshName = prefixCookie("__Secure-", c.RefreshName)
	}
	return c
}

func prefixCookie(prefix, name string) string {
	if strings.HasPrefix(name, "__Host-") || strings.HasPrefix(name, "__Secure-") {
		return name
	}
	return prefix + name
}

/*
====================================
STORE / AUDIT / METRICS CONFIG
====================================
*/

// StoreConfig configures the key-value store.
type StoreConfig struct {
	// Prefix namespaces every key so deployments can share one store.
	Prefix string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline settings. Secrets are left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "HS512",
			Issuer:        "goSession-api",
			Audience:      "goSession-client",
		},
		Session: SessionConfig{
			MaxConcurrentSessions: 5,
			IdleTimeout:           0,
			FingerprintGrace:      30 * time.Second,
		},
		Security: SecurityConfig{
			ProductionMode:     false,
			RequireFingerprint: false,
			RotateRefreshToken: false,
			MaxBodyBytes:       10 << 10,
			ScreenSQL:          true,
			ScreenNoSQL:        true,
		},
		CSRF: CSRFConfig{
			TTL:           time.Hour,
			HeaderName:    "X-CSRF-Token",
			AltHeaderName: "CSRF-Token",
			BodyField:     "_csrf",
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			FailOpen:      false,
			MaxLocalKeys:  10000,
			General:       rate.General,
			Login:         rate.Login,
			Refresh:       rate.Refresh,
			PasswordReset: rate.PasswordReset,
			BlockTTL:      rate.DefaultBlockTTL,
		},
		Cookies: CookieConfig{
			AccessName:      "access-token",
			RefreshName:     "refresh-token",
			FingerprintName: "fgp",
			SessionName:     "sid",
			CSRFName:        "csrf-token",
			RefreshPath:     "/auth",
			SameSite:        http.SameSiteStrictMode,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

const minSecretLen = 32

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	switch strings.ToUpper(c.JWT.SigningMethod) {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if len(c.JWT.AccessSecret) < minSecretLen {
		return fmt.Errorf("JWT AccessSecret must be at least %d bytes", minSecretLen)
	}
	if len(c.JWT.RefreshSecret) > 0 && len(c.JWT.RefreshSecret) < minSecretLen {
		return fmt.Errorf("JWT RefreshSecret must be at least %d bytes", minSecretLen)
	}
	if len(c.JWT.RefreshSecret) > 0 && string(c.JWT.RefreshSecret) == string(c.JWT.AccessSecret) {
		return errors.New("JWT RefreshSecret must differ from AccessSecret")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > time.Minute {
		return errors.New("JWT Leeway must be within [0, 1m]")
	}

	// Session
	if c.Session.MaxConcurrentSessions < 0 {
		return errors.New("Session MaxConcurrentSessions must be >= 0")
	}
	if c.Session.IdleTimeout < 0 {
		return errors.New("Session IdleTimeout must be >= 0")
	}
	if c.Session.FingerprintGrace < 0 || c.Session.FingerprintGrace > 5*time.Minute {
		return errors.New("Session FingerprintGrace must be within [0, 5m]")
	}

	// Security
	if c.Security.MaxBodyBytes <= 0 {
		return errors.New("Security MaxBodyBytes must be > 0")
	}

	// CSRF
	if c.CSRF.TTL <= 0 {
		return errors.New("CSRF TTL must be > 0")
	}
	if c.CSRF.HeaderName == "" {
		return errors.New("CSRF HeaderName must be set")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		for _, p := range []RatePolicy{c.RateLimit.General, c.RateLimit.Login, c.RateLimit.Refresh, c.RateLimit.PasswordReset} {
			if p.Name == "" || p.Limit <= 0 || p.Window <= 0 {
				return fmt.Errorf("RateLimit policy %q must have a name, limit and window", p.Name)
			}
		}
	}
	if c.RateLimit.BlockTTL <= 0 {
		return errors.New("RateLimit BlockTTL must be > 0")
	}

	// Cookies
	ck := c.Cookies
	if ck.AccessName == "" || ck.RefreshName == "" || ck.FingerprintName == "" || ck.SessionName == "" || ck.CSRFName == "" {
		return errors.New("Cookies names must all be set")
	}
	if ck.RefreshPath != "" && !strings.HasPrefix(ck.RefreshPath, "/") {
		return errors.New("Cookies RefreshPath must start with /")
	}
	if c.Security.ProductionMode && ck.SameSite == http.SameSiteNoneMode {
		return errors.New("Cookies SameSite=None is not allowed in production")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
