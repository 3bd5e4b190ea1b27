package middleware

import (
	"net"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// ClientIP returns the caller's address. With trustProxy the left-most
// X-Forwarded-For entry wins, then X-Real-IP.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}

// ClientInfo records the client address and user agent in the context for
// later stages, login and audit events.
func ClientInfo(trustProxy bool) Stage {
	return func(r *http.Request) (*http.Request, *Rejection) {
		ctx := goSession.WithClientIP(r.Context(), ClientIP(r, trustProxy))
		ctx = goSession.WithUserAgent(ctx, r.UserAgent())
		return r.WithContext(ctx), nil
	}
}

func clientIP(r *http.Request) string {
	if ip := goSession.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return ClientIP(r, false)
}
