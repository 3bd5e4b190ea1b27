package httpapi

import (
	"net/http"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

type cookieJar struct {
	names      goSession.CookieConfig
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
	csrfTTL    time.Duration
}

func newCookieJar(engine *goSession.Engine) cookieJar {
	cfg := engine.Config()
	return cookieJar{
		names:      engine.Cookies(),
		secure:     cfg.Security.ProductionMode,
		accessTTL:  cfg.JWT.AccessTTL,
		refreshTTL: cfg.JWT.RefreshTTL,
		csrfTTL:    cfg.CSRF.TTL,
	}
}

func (j cookieJar) cookie(name, value, path string, ttl time.Duration, httpOnly bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: httpOnly,
		Secure:   j.secure,
		SameSite: j.names.SameSite,
	}
	// __Host- cookies must not carry a Domain.
	if j.names.Domain != "" && !strings.HasPrefix(name, "__Host-") {
		c.Domain = j.names.Domain
	}
	switch {
	case ttl > 0:
		c.MaxAge = int(ttl / time.Second)
		c.Expires = time.Now().Add(ttl)
	case ttl < 0:
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}
	return c
}

func (j cookieJar) refreshPath() string {
	if j.names.RefreshPath == "" {
		return "/"
	}
	return j.names.RefreshPath
}

func (j cookieJar) setLogin(w http.ResponseWriter, res *goSession.LoginResult) {
	http.SetCookie(w, j.cookie(j.names.AccessName, res.AccessToken, "/", j.accessTTL, true))
	http.SetCookie(w, j.cookie(j.names.RefreshName, res.RefreshToken, j.refreshPath(), j.refreshTTL, true))
	http.SetCookie(w, j.cookie(j.names.FingerprintName, res.Fingerprint, "/", j.refreshTTL, true))
	http.SetCookie(w, j.cookie(j.names.SessionName, res.SessionID, "/", j.refreshTTL, true))
	j.setCSRF(w, res.CSRFToken)
}

func (j cookieJar) setRefresh(w http.ResponseWriter, res *goSession.RefreshResult) {
	http.SetCookie(w, j.cookie(j.names.AccessName, res.AccessToken, "/", j.accessTTL, true))
	http.SetCookie(w, j.cookie(j.names.FingerprintName, res.Fingerprint, "/", j.refreshTTL, true))
	if res.RefreshToken != "" {
		http.SetCookie(w, j.cookie(j.names.RefreshName, res.RefreshToken, j.refreshPath(), j.refreshTTL, true))
	}
	j.setCSRF(w, res.CSRFToken)
}

// setCSRF writes the script-readable CSRF cookie.
func (j cookieJar) setCSRF(w http.ResponseWriter, token string) {
	http.SetCookie(w, j.cookie(j.names.CSRFName, token, "/", j.csrfTTL, false))
}

func (j cookieJar) clear(w http.ResponseWriter) {
	http.SetCookie(w, j.cookie(j.names.AccessName, "", "/", -1, true))
	http.SetCookie(w, j.cookie(j.names.RefreshName, "", j.refreshPath(), -1, true))
	http.SetCookie(w, j.cookie(j.names.FingerprintName, "", "/", -1, true))
	http.SetCookie(w, j.cookie(j.names.SessionName, "", "/", -1, true))
	http.SetCookie(w, j.cookie(j.names.CSRFName, "", "/", -1, false))
}

func (j cookieJar) value(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
