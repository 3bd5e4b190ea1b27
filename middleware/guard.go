package middleware

import (
	"errors"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Authenticate verifies the access token from the access cookie or an
// Authorization bearer header and binds it to the fingerprint cookie.
// Verified claims are attached to the context.
func Authenticate(engine *goSession.Engine) Stage {
	cookies := engine.Cookies()
	return func(r *http.Request) (*http.Request, *Rejection) {
		token := cookieValue(r, cookies.AccessName)
		if token == "" {
			token, _ = BearerToken(r.Header.Get("Authorization"))
		}
		if token == "" {
			return nil, Reject(goSession.ErrNoToken)
		}

		claims, err := engine.VerifyAccess(r.Context(), token, cookieValue(r, cookies.FingerprintName))
		if err != nil {
			switch {
			case errors.Is(err, goSession.ErrTokenExpired),
				errors.Is(err, goSession.ErrFingerprintMismatch),
				errors.Is(err, goSession.ErrStoreUnavailable):
				return nil, Reject(err)
			default:
				return nil, Reject(goSession.ErrTokenInvalid)
			}
		}
		return r.WithContext(withAccessClaims(r.Context(), claims)), nil
	}
}

// RequireRefresh verifies the refresh cookie. A lenient gate passes requests
// with a missing or invalid refresh token through without claims, which
// logout relies on; store failures still reject.
func RequireRefresh(engine *goSession.Engine, lenient bool) Stage {
	cookies := engine.Cookies()
	return func(r *http.Request) (*http.Request, *Rejection) {
		token := cookieValue(r, cookies.RefreshName)
		if token == "" {
			if lenient {
				return r, nil
			}
			return nil, Reject(goSession.ErrNoRefreshToken)
		}

		claims, err := engine.VerifyRefresh(r.Context(), token, cookieValue(r, cookies.FingerprintName))
		if err != nil {
			switch {
			case errors.Is(err, goSession.ErrStoreUnavailable):
				return nil, Reject(err)
			case lenient:
				return r, nil
			case errors.Is(err, goSession.ErrFingerprintMismatch):
				return nil, Reject(err)
			default:
				return nil, Reject(goSession.ErrRefreshInvalid)
			}
		}
		return r.WithContext(withRefreshClaims(r.Context(), claims)), nil
	}
}

// Guard is Authenticate as plain middleware.
func Guard(engine *goSession.Engine) func(http.Handler) http.Handler {
	return Gate(Authenticate(engine))
}

func cookieValue(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// BearerToken extracts the token from an Authorization header value. The
// scheme match is case-insensitive.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
