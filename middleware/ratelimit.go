package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// KeyFunc derives the throttling key for a request.
type KeyFunc func(*http.Request) string

// KeyByIPAndUser keys on ip:userId, or ip:anonymous before authentication.
func KeyByIPAndUser(r *http.Request) string {
	uid := UserIDFromContext(r.Context())
	if uid == "" {
		uid = "anonymous"
	}
	return "ip:" + clientIP(r) + ":" + uid
}

// KeyByIP keys on prefix:ip.
func KeyByIP(prefix string) KeyFunc {
	return func(r *http.Request) string {
		return prefix + ":" + clientIP(r)
	}
}

// RateLimit charges the request against policy. Failure-only policies are
// checked without being charged; the handler records failures.
func RateLimit(engine *goSession.Engine, policy goSession.RatePolicy, key KeyFunc) Stage {
	if key == nil {
		key = KeyByIPAndUser
	}
	return func(r *http.Request) (*http.Request, *Rejection) {
		d, err := engine.CheckRate(r.Context(), policy, key(r))
		if err != nil {
			rej := Reject(err)
			if errors.Is(err, goSession.ErrRateLimited) {
				rej.RetryAfter = d.RetryAfter
				rej.Header = http.Header{}
				setRateHeaders(rej.Header.Set, d)
			}
			return nil, rej
		}
		setRateHeaders(func(k, v string) { SetResponseHeader(r, k, v) }, d)
		return r, nil
	}
}

func setRateHeaders(set func(k, v string), d goSession.RateDecision) {
	if d.Limit <= 0 {
		return
	}
	set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(d.ResetAfter)))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// IPBlock rejects requests from blocked addresses. Store failures reject
// with 503.
func IPBlock(engine *goSession.Engine) Stage {
	return func(r *http.Request) (*http.Request, *Rejection) {
		blocked, err := engine.IsIPBlocked(r.Context(), clientIP(r))
		if err != nil {
			return nil, Reject(err)
		}
		if blocked {
			return nil, Reject(goSession.ErrIPBlocked)
		}
		return r, nil
	}
}
