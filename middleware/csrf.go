package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// CSRF enforces the double-submit token on POST, PUT, PATCH and DELETE.
//
// The session comes from refresh claims in the context, then the session
// cookie. The token comes from the configured header, the alternate header,
// then the JSON body field.
func CSRF(engine *goSession.Engine) Stage {
	cfg := engine.Config()
	cookies := engine.Cookies()
	return func(r *http.Request) (*http.Request, *Rejection) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return r, nil
		}

		sessionID := ""
		if c, ok := RefreshClaimsFromContext(r.Context()); ok {
			sessionID = c.SessionID
		}
		if sessionID == "" {
			sessionID = cookieValue(r, cookies.SessionName)
		}
		if sessionID == "" {
			return nil, Reject(goSession.ErrNoSession)
		}

		token := r.Header.Get(cfg.CSRF.HeaderName)
		if token == "" && cfg.CSRF.AltHeaderName != "" {
			token = r.Header.Get(cfg.CSRF.AltHeaderName)
		}
		if token == "" && cfg.CSRF.BodyField != "" {
			token = bodyField(r, cfg.CSRF.BodyField)
		}
		if token == "" {
			return nil, Reject(goSession.ErrNoCSRFToken)
		}

		if err := engine.ValidateCSRF(r.Context(), sessionID, token); err != nil {
			return nil, Reject(err)
		}
		return r, nil
	}
}

func bodyField(r *http.Request, field string) string {
	raw, ok := RawInputFromContext(r.Context())
	if !ok {
		return ""
	}
	obj, ok := raw.Body.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj[field].(string)
	return s
}
