package goSession

import (
	"errors"
	"net/http"
)

var (
	// ErrNoToken is returned when a request carries no access token.
	ErrNoToken = errors.New("no access token")
	// ErrTokenExpired is returned for an access token past its exp claim.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenInvalid covers bad signatures, wrong token types and blacklisted tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrFingerprintMismatch is returned when the fingerprint cookie does not
	// hash to the value bound into the token.
	ErrFingerprintMismatch = errors.New("fingerprint mismatch")
	// ErrNoRefreshToken is returned when a refresh-only endpoint gets no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshInvalid covers bad, expired and revoked refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrSessionIdle is returned when a session exceeded its idle timeout and was revoked.
	ErrSessionIdle = errors.New("session idle timeout")
	// ErrNoSession is returned when no session id can be resolved for the caller.
	ErrNoSession = errors.New("no session")
	// ErrNoCSRFToken is returned when a state-changing request carries no CSRF token.
	ErrNoCSRFToken = errors.New("no csrf token")
	// ErrCSRFInvalid is returned when the supplied CSRF token does not match the stored one.
	ErrCSRFInvalid = errors.New("invalid csrf token")
	// ErrRateLimited is returned when a throttling policy is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrIPBlocked is returned for requests from a blocked address.
	ErrIPBlocked = errors.New("ip blocked")
	// ErrAuthFailed is returned when the identity provider exchange fails.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNotAuthenticated is returned when an otherwise valid context carries no identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoAuthCode is returned when the login callback carries no authorization code.
	ErrNoAuthCode = errors.New("no authorization code")
	// ErrUserNotFound is returned when the user behind a valid token no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput is returned for requests rejected by input screening.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPayloadTooLarge is returned for request bodies over the gate's limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrAccountLocked is returned while a user account is locked out.
	ErrAccountLocked = errors.New("account locked")
	// ErrStoreUnavailable wraps store failures on security-gating reads and writes.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrEngineNotReady is returned by operations on a nil or half-built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the machine-readable error code surfaced to clients.
type ErrorKind string

const (
	KindNoToken             ErrorKind = "NO_TOKEN"
	KindTokenExpired        ErrorKind = "TOKEN_EXPIRED"
	KindInvalidToken        ErrorKind = "INVALID_TOKEN"
	KindFingerprintMismatch ErrorKind = "FINGERPRINT_MISMATCH"
	KindNoRefreshToken      ErrorKind = "NO_REFRESH_TOKEN"
	KindInvalidRefreshToken ErrorKind = "INVALID_REFRESH_TOKEN"
	KindNoSession           ErrorKind = "NO_SESSION"
	KindNoCSRFToken         ErrorKind = "NO_CSRF_TOKEN"
	KindInvalidCSRFToken    ErrorKind = "INVALID_CSRF_TOKEN"
	KindRateLimitExceeded   ErrorKind = "RATE_LIMIT_EXCEEDED"
	KindIPBlocked           ErrorKind = "IP_BLOCKED"
	KindAuthFailed          ErrorKind = "AUTH_FAILED"
	KindNotAuthenticated    ErrorKind = "NOT_AUTHENTICATED"
	KindNoAuthCode          ErrorKind = "NO_AUTH_CODE"
	KindUserNotFound        ErrorKind = "USER_NOT_FOUND"
	KindInvalidInput        ErrorKind = "INVALID_INPUT"
	KindPayloadTooLarge     ErrorKind = "PAYLOAD_TOO_LARGE"
	KindAccountLocked       ErrorKind = "ACCOUNT_LOCKED"
	KindStoreUnavailable    ErrorKind = "STORE_UNAVAILABLE"
	KindInternal            ErrorKind = "INTERNAL"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNoToken, KindNoToken},
	{ErrTokenExpired, KindTokenExpired},
	{ErrTokenInvalid, KindInvalidToken},
	{ErrFingerprintMismatch, KindFingerprintMismatch},
	{ErrNoRefreshToken, KindNoRefreshToken},
	{ErrRefreshInvalid, KindInvalidRefreshToken},
	{ErrSessionIdle, KindInvalidRefreshToken},
	{ErrNoSession, KindNoSession},
	{ErrNoCSRFToken, KindNoCSRFToken},
	{ErrCSRFInvalid, KindInvalidCSRFToken},
	{ErrRateLimited, KindRateLimitExceeded},
	{ErrIPBlocked, KindIPBlocked},
	{ErrAuthFailed, KindAuthFailed},
	{ErrNotAuthenticated, KindNotAuthenticated},
	{ErrNoAuthCode, KindNoAuthCode},
	{ErrUserNotFound, KindUserNotFound},
	{ErrInvalidInput, KindInvalidInput},
	{ErrPayloadTooLarge, KindPayloadTooLarge},
	{ErrAccountLocked, KindAccountLocked},
	{ErrStoreUnavailable, KindStoreUnavailable},
}

// KindOf maps err onto the client-facing taxonomy. Unknown errors are INTERNAL.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// StatusOf returns the HTTP status for kind.
func StatusOf(kind ErrorKind) int {
	switch kind {
	case KindNoToken, KindTokenExpired, KindInvalidToken, KindFingerprintMismatch,
		KindNoRefreshToken, KindInvalidRefreshToken, KindAuthFailed,
		KindNotAuthenticated, KindUserNotFound:
		return http.StatusUnauthorized
	case KindNoSession, KindNoCSRFToken, KindInvalidCSRFToken, KindIPBlocked:
		return http.StatusForbidden
	case KindNoAuthCode, KindInvalidInput:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindAccountLocked:
		return http.StatusLocked
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf returns the static client message for kind. It never includes
// internal detail.
func MessageOf(kind ErrorKind) string {
	switch kind {
	case KindNoToken:
		return "Authentication required"
	case KindTokenExpired:
		return "Access token expired"
	case KindInvalidToken:
		return "Invalid access token"
	case KindFingerprintMismatch:
		return "Token binding mismatch"
	case KindNoRefreshToken:
		return "Refresh token required"
	case KindInvalidRefreshToken:
		return "Invalid refresh token"
	case KindNoSession:
		return "No active session"
	case KindNoCSRFToken:
		return "CSRF token missing"
	case KindInvalidCSRFToken:
		return "Invalid CSRF token"
	case KindRateLimitExceeded:
		return "Too many requests, please try again later"
	case KindIPBlocked:
		return "Access denied"
	case KindAuthFailed:
		return "Authentication failed"
	case KindNotAuthenticated:
		return "Not authenticated"
	case KindNoAuthCode:
		return "Authorization code required"
	case KindUserNotFound:
		return "User not found"
	case KindInvalidInput:
		return "Invalid input detected"
	case KindPayloadTooLarge:
		return "Request body too large"
	case KindAccountLocked:
		return "Account temporarily locked"
	case KindStoreUnavailable:
		return "Service temporarily unavailable"
	default:
		return "Internal server error"
	}
}
