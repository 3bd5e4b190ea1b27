package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
)

func newTestEngine(t *testing.T, mutate func(*goSession.Config)) (*goSession.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.JWT.RefreshSecret = []byte(strings.Repeat("r", 32))
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := goSession.New().WithConfig(cfg).WithRedis(rdb).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine, mr
}

func login(t *testing.T, engine *goSession.Engine, uid string) *goSession.LoginResult {
	t.Helper()
	res, err := engine.Login(context.Background(), goSession.LoginRequest{UserID: uid, Email: uid + "@example.com"})
	require.NoError(t, err)
	return res
}

func decodeRejection(t *testing.T, rec *httptest.ResponseRecorder) rejectionBody {
	t.Helper()
	var body rejectionBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestGateStopsAtFirstRejection(t *testing.T) {
	var second bool
	stages := []Stage{
		func(r *http.Request) (*http.Request, *Rejection) {
			return nil, Reject(goSession.ErrNoToken)
		},
		func(r *http.Request) (*http.Request, *Rejection) {
			second = true
			return r, nil
		},
	}

	var called bool
	rec := httptest.NewRecorder()
	Gate(stages...)(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.False(t, called)
	require.False(t, second)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, string(goSession.KindNoToken), decodeRejection(t, rec).Code)
}

func TestRejectKeepsExplicitRejection(t *testing.T) {
	rej := &Rejection{Status: http.StatusTeapot, Code: "TEAPOT"}
	require.Same(t, rej, Reject(rej))
}

func TestClientIPTrustsProxyOnlyWhenAsked(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	require.Equal(t, "10.0.0.1", ClientIP(r, false))
	require.Equal(t, "203.0.113.7", ClientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", ClientIP(r, true))
}

func TestAuthenticateAcceptsCookieAndBearer(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	res := login(t, engine, "user-1")
	cookies := engine.Cookies()

	var gotUID string
	h := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UserIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/profile", nil)
	r.AddCookie(&http.Cookie{Name: cookies.AccessName, Value: res.AccessToken})
	r.AddCookie(&http.Cookie{Name: cookies.FingerprintName, Value: res.Fingerprint})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", gotUID)

	gotUID = ""
	r = httptest.NewRequest(http.MethodGet, "/profile", nil)
	r.Header.Set("Authorization", "bearer "+res.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", gotUID)
}

func TestAuthenticateRejections(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	res := login(t, engine, "user-1")
	cookies := engine.Cookies()

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		code   goSession.ErrorKind
	}{
		{
			name:   "missing",
			setup:  func(r *http.Request) {},
			status: http.StatusUnauthorized,
			code:   goSession.KindNoToken,
		},
		{
			name: "garbage",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not-a-jwt")
			},
			status: http.StatusUnauthorized,
			code:   goSession.KindInvalidToken,
		},
		{
			name: "refresh token as access",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+res.RefreshToken)
			},
			status: http.StatusUnauthorized,
			code:   goSession.KindInvalidToken,
		},
		{
			name: "wrong fingerprint",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: cookies.AccessName, Value: res.AccessToken})
				r.AddCookie(&http.Cookie{Name: cookies.FingerprintName, Value: strings.Repeat("0", 64)})
			},
			status: http.StatusUnauthorized,
			code:   goSession.KindFingerprintMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			r := httptest.NewRequest(http.MethodGet, "/profile", nil)
			tc.setup(r)
			rec := httptest.NewRecorder()
			Guard(engine)(okHandler(&called)).ServeHTTP(rec, r)

			require.False(t, called)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, string(tc.code), decodeRejection(t, rec).Code)
		})
	}
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	res := login(t, engine, "user-1")
	require.NoError(t, engine.RevokeAccess(context.Background(), res.AccessToken))

	var called bool
	r := httptest.NewRequest(http.MethodGet, "/profile", nil)
	r.Header.Set("Authorization", "Bearer "+res.AccessToken)
	rec := httptest.NewRecorder()
	Guard(engine)(okHandler(&called)).ServeHTTP(rec, r)

	require.False(t, called)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateFailsClosedWhenStoreDown(t *testing.T) {
	engine, mr := newTestEngine(t, nil)
	res := login(t, engine, "user-1")
	mr.Close()

	var called bool
	r := httptest.NewRequest(http.MethodGet, "/profile", nil)
	r.Header.Set("Authorization", "Bearer "+res.AccessToken)
	rec := httptest.NewRecorder()
	Guard(engine)(okHandler(&called)).ServeHTTP(rec, r)

	require.False(t, called)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireRefreshLenientPassesThrough(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	cookies := engine.Cookies()

	var claimsSeen bool
	h := Gate(RequireRefresh(engine, true))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claimsSeen = RefreshClaimsFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.AddCookie(&http.Cookie{Name: cookies.RefreshName, Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, claimsSeen)

	rec = httptest.NewRecorder()
	Gate(RequireRefresh(engine, false))(h).ServeHTTP(rec, r)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, string(goSession.KindInvalidRefreshToken), decodeRejection(t, rec).Code)
}

func TestRequireRefreshAttachesClaims(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	res := login(t, engine, "user-1")
	cookies := engine.Cookies()

	var sid string
	h := Gate(RequireRefresh(engine, false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := RefreshClaimsFromContext(r.Context())
		require.True(t, ok)
		sid = c.SessionID
	}))

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: cookies.RefreshName, Value: res.RefreshToken})
	r.AddCookie(&http.Cookie{Name: cookies.FingerprintName, Value: res.Fingerprint})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, res.SessionID, sid)
}

func TestCSRFSources(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	res := login(t, engine, "user-1")
	cookies := engine.Cookies()
	gate := Gate(Sanitize(DefaultMaxBodyBytes), CSRF(engine))

	cases := []struct {
		name   string
		build  func() *http.Request
		status int
	}{
		{
			name: "safe method skipped",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/", nil)
			},
			status: http.StatusNoContent,
		},
		{
			name: "header",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/", nil)
				r.AddCookie(&http.Cookie{Name: cookies.SessionName, Value: res.SessionID})
				r.Header.Set("X-CSRF-Token", res.CSRFToken)
				return r
			},
			status: http.StatusNoContent,
		},
		{
			name: "alternate header",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodDelete, "/", nil)
				r.AddCookie(&http.Cookie{Name: cookies.SessionName, Value: res.SessionID})
				r.Header.Set("CSRF-Token", res.CSRFToken)
				return r
			},
			status: http.StatusNoContent,
		},
		{
			name: "body field",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"_csrf":"`+res.CSRFToken+`"}`))
				r.Header.Set("Content-Type", "application/json")
				r.AddCookie(&http.Cookie{Name: cookies.SessionName, Value: res.SessionID})
				return r
			},
			status: http.StatusNoContent,
		},
		{
			name: "no session",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/", nil)
				r.Header.Set("X-CSRF-Token", res.CSRFToken)
				return r
			},
			status: http.StatusForbidden,
		},
		{
			name: "no token",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPut, "/", nil)
				r.AddCookie(&http.Cookie{Name: cookies.SessionName, Value: res.SessionID})
				return r
			},
			status: http.StatusForbidden,
		},
		{
			name: "wrong token",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPatch, "/", nil)
				r.AddCookie(&http.Cookie{Name: cookies.SessionName, Value: res.SessionID})
				r.Header.Set("X-CSRF-Token", strings.Repeat("f", 64))
				return r
			},
			status: http.StatusForbidden,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			rec := httptest.NewRecorder()
			gate(okHandler(&called)).ServeHTTP(rec, tc.build())
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.status == http.StatusNoContent, called)
		})
	}
}

func TestSanitizeEscapesBodyAndKeepsRawInput(t *testing.T) {
	var body map[string]any
	var raw *RawInput
	h := Gate(Sanitize(DefaultMaxBodyBytes))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		var ok bool
		raw, ok = RawInputFromContext(r.Context())
		require.True(t, ok)
	}))

	payload := `{"name":"<b>Ann</b>","password":"<secret>","nested":{"bio":"a & b"}}`
	r := httptest.NewRequest(http.MethodPost, "/?q=%3Cx%3E", strings.NewReader(payload))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "&lt;b&gt;Ann&lt;&#x2F;b&gt;", body["name"])
	require.Equal(t, "<secret>", body["password"])
	require.Equal(t, "a &amp; b", body["nested"].(map[string]any)["bio"])

	require.Equal(t, "<b>Ann</b>", raw.Body.(map[string]any)["name"])
	require.Equal(t, "<x>", raw.Query.Get("q"))
}

func TestSanitizeRejectsOversizedAndMalformedBodies(t *testing.T) {
	var called bool
	h := Gate(Sanitize(64))(okHandler(&called))

	big := `{"v":"` + strings.Repeat("x", 100) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// Unknown length still gets cut off at the limit.
	r = httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(big)))
	r.ContentLength = -1
	r.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"v":`))
	r.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)
}

func TestScreenRejectsInjection(t *testing.T) {
	gate := Gate(Sanitize(DefaultMaxBodyBytes), Screen(true, true))

	cases := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{name: "clean", target: "/", body: `{"name":"Ann"}`, status: http.StatusNoContent},
		{name: "escaped entity is not sql", target: "/", body: `{"name":"Tom & Jerry"}`, status: http.StatusNoContent},
		{name: "sql in body", target: "/", body: `{"name":"x' OR 1=1 --"}`, status: http.StatusBadRequest},
		{name: "union select", target: "/?q=x%27+UNION+SELECT+password", status: http.StatusBadRequest},
		{name: "operator key", target: "/", body: `{"email":{"$ne":null}}`, status: http.StatusBadRequest},
		{name: "operator in query", target: "/?email[$gt]=", status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			r := httptest.NewRequest(http.MethodPost, tc.target, body)
			r.Header.Set("Content-Type", "application/json")
			var called bool
			rec := httptest.NewRecorder()
			gate(okHandler(&called)).ServeHTTP(rec, r)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	policy := goSession.RatePolicy{Name: "test", Limit: 2, Window: time.Minute}
	h := Gate(ClientInfo(false), RateLimit(engine, policy, KeyByIP("t")))

	var called bool
	serve := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.10:1234"
		rec := httptest.NewRecorder()
		h(okHandler(&called)).ServeHTTP(rec, r)
		return rec
	}

	rec := serve()
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve()
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	called = false
	rec = serve()
	require.False(t, called)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := decodeRejection(t, rec)
	require.Equal(t, string(goSession.KindRateLimitExceeded), body.Code)
	require.Positive(t, body.RetryAfter)
}

func TestIPBlockStage(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	require.NoError(t, engine.BlockIP(context.Background(), "192.0.2.99", time.Hour))

	h := Gate(ClientInfo(false), IPBlock(engine))
	var called bool

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.99:1"
	rec := httptest.NewRecorder()
	h(okHandler(&called)).ServeHTTP(rec, r)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, called)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.100:1"
	rec = httptest.NewRecorder()
	h(okHandler(&called)).ServeHTTP(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
