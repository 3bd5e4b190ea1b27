package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/store"
)

// Engine issues, verifies, refreshes and revokes sessions.
//
// Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config     Config
	kv         store.KV
	sessions   *session.Store
	jwtManager *jwt.Manager
	limiter    *rate.Limiter
	blocklist  *rate.Blocklist
	resolver   *identity.Resolver
	logger     *slog.Logger
	audit      *audit.Dispatcher
	metrics    *Metrics
	now        func() time.Time
	flows      flows.Deps
}

func (e *Engine) buildFlowDeps() flows.Deps {
	verify := flows.VerifyDeps{
		Sessions:           e.sessions,
		Tokens:             e.jwtManager,
		RequireFingerprint: e.config.Security.RequireFingerprint,
		IsExpired:          jwt.IsExpired,
		OnTheft:            e.onTheft,
		FingerprintGrace:   e.config.Session.FingerprintGrace,
		Now:                e.now,
		Warn:               e.logger.Warn,
	}
	return flows.Deps{
		Verify: verify,
		Login: flows.LoginDeps{
			Sessions:              e.sessions,
			Tokens:                e.jwtManager,
			MaxConcurrentSessions: e.config.Session.MaxConcurrentSessions,
			CSRFTTL:               e.config.CSRF.TTL,
			Now:                   e.now,
			Warn:                  e.logger.Warn,
		},
		Refresh: flows.RefreshDeps{
			Verify:             verify,
			Sessions:           e.sessions,
			Tokens:             e.jwtManager,
			RotateRefreshToken: e.config.Security.RotateRefreshToken,
			IdleTimeout:        e.config.Session.IdleTimeout,
			CSRFTTL:            e.config.CSRF.TTL,
			Now:                e.now,
			Warn:               e.logger.Warn,
		},
		Logout: flows.LogoutDeps{
			Sessions: e.sessions,
			Tokens:   e.jwtManager,
		},
		CSRF: flows.CSRFDeps{
			Sessions: e.sessions,
			TTL:      e.config.CSRF.TTL,
		},
	}
}

func (e *Engine) ready() bool {
	return e != nil && e.sessions != nil && e.jwtManager != nil
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Cookies returns the cookie names for the configured deployment mode.
func (e *Engine) Cookies() CookieConfig {
	return e.config.Cookies.Resolve(e.config.Security.ProductionMode)
}

// AccessTTL is the access token lifetime.
func (e *Engine) AccessTTL() time.Duration { return e.config.JWT.AccessTTL }

// RefreshTTL is the refresh token lifetime.
func (e *Engine) RefreshTTL() time.Duration { return e.config.JWT.RefreshTTL }

// AuditDropped reports events dropped because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

/*
====================================
LOGIN
====================================
*/

// Login creates a session for an identity the caller already resolved.
//
// Login returns ErrInvalidInput for an empty user id and ErrStoreUnavailable
// when any write fails. Writes made before the failure are undone.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if req.IP == "" {
		req.IP = ClientIPFromContext(ctx)
	}
	if req.UserAgent == "" {
		req.UserAgent = userAgentFromContext(ctx)
	}

	res := flows.RunLogin(ctx, flows.LoginInput{
		UserID:    req.UserID,
		Email:     req.Email,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	}, e.flows.Login)

	for _, sid := range res.Evicted {
		e.metricInc(MetricSessionEvicted)
		e.emitAudit(ctx, auditEventSessionEvicted, true, req.UserID, sid, nil, func() map[string]string {
			return map[string]string{"reason": "max_concurrent_sessions"}
		})
	}

	if res.Failure != flows.LoginFailureNone {
		err := e.mapLoginFailure(res)
		e.metricInc(MetricLoginFailure)
		if errors.Is(err, ErrStoreUnavailable) {
			e.metricInc(MetricStoreUnavailable)
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, req.UserID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricCSRFIssued)
	e.emitAudit(ctx, auditEventLoginSuccess, true, req.UserID, res.SessionID, nil, nil)

	return &LoginResult{
		AccessToken:   res.AccessToken,
		RefreshToken:  res.RefreshToken,
		Fingerprint:   res.Fingerprint,
		SessionID:     res.SessionID,
		CSRFToken:     res.CSRFToken,
		ExpiresIn:     e.config.JWT.AccessTTL,
		AccessClaims:  res.AccessClaims,
		RefreshClaims: res.RefreshClaims,
		Evicted:       res.Evicted,
	}, nil
}

func (e *Engine) mapLoginFailure(res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureInput:
		return ErrInvalidInput
	case flows.LoginFailureStore:
		return storeErr(res.Err)
	default:
		return fmt.Errorf("goSession: login: %w", res.Err)
	}
}

// LoginWithCode exchanges an identity-provider authorization code, resolves
// or creates the account and logs it in.
//
// Errors: ErrNoAuthCode, ErrAuthFailed (exchange or profile failure),
// ErrAccountLocked, ErrStoreUnavailable.
func (e *Engine) LoginWithCode(ctx context.Context, code string) (*LoginResult, error) {
	if !e.ready() || e.resolver == nil {
		return nil, ErrEngineNotReady
	}
	if code == "" {
		return nil, ErrNoAuthCode
	}

	user, err := e.resolver.Resolve(ctx, code)
	if err != nil {
		mapped := mapIdentityError(err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", mapped, func() map[string]string {
			return map[string]string{"stage": "identity"}
		})
		return nil, mapped
	}

	res, err := e.Login(ctx, LoginRequest{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}
	res.User = user
	return res, nil
}

func mapIdentityError(err error) error {
	switch {
	case errors.Is(err, identity.ErrNoCode):
		return ErrNoAuthCode
	case errors.Is(err, identity.ErrAccountLocked):
		return ErrAccountLocked
	case errors.Is(err, identity.ErrExchange),
		errors.Is(err, identity.ErrNoEmail),
		errors.Is(err, identity.ErrEmailUnverified):
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	default:
		return fmt.Errorf("goSession: resolve identity: %w", err)
	}
}

/*
====================================
VERIFY
====================================
*/

// VerifyAccess checks the blacklist, the signature and expiry, and the
// fingerprint binding of an access token.
func (e *Engine) VerifyAccess(ctx context.Context, token, fingerprint string) (*AccessClaims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrNoToken
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	res := flows.RunVerifyAccess(ctx, token, fingerprint, e.flows.Verify)
	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if res.Failure == flows.VerifyFailureNone {
		return res.Claims, nil
	}

	err := mapVerifyFailure(res.Failure, res.Err, ErrTokenInvalid)
	e.metricInc(MetricAccessRejected)
	if errors.Is(err, ErrStoreUnavailable) {
		e.metricInc(MetricStoreUnavailable)
	}
	if res.Failure == flows.VerifyFailureFingerprintMismatch || res.Failure == flows.VerifyFailureBlacklisted {
		userID := ""
		if res.Claims != nil {
			userID = res.Claims.UserID
		}
		e.emitAudit(ctx, auditEventAccessRejected, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": verifyReason(res.Failure)}
		})
	}
	return nil, err
}

// VerifyRefresh checks a refresh token's signature, fingerprint binding and
// server-side liveness. A fingerprint mismatch revokes every session of the
// user before ErrFingerprintMismatch is returned.
func (e *Engine) VerifyRefresh(ctx context.Context, token, fingerprint string) (*RefreshClaims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrNoRefreshToken
	}
	res := flows.RunVerifyRefresh(ctx, token, fingerprint, e.flows.Verify)
	if res.Failure == flows.VerifyFailureNone {
		return res.Claims, nil
	}
	return nil, mapVerifyFailure(res.Failure, res.Err, ErrRefreshInvalid)
}

func mapVerifyFailure(kind flows.VerifyFailureKind, cause error, invalid error) error {
	switch kind {
	case flows.VerifyFailureStore:
		return storeErr(cause)
	case flows.VerifyFailureExpired:
		if invalid == ErrTokenInvalid {
			return ErrTokenExpired
		}
		return invalid
	case flows.VerifyFailureFingerprintMissing, flows.VerifyFailureFingerprintMismatch:
		return ErrFingerprintMismatch
	default:
		return invalid
	}
}

func verifyReason(kind flows.VerifyFailureKind) string {
	switch kind {
	case flows.VerifyFailureBlacklisted:
		return "blacklisted"
	case flows.VerifyFailureExpired:
		return "expired"
	case flows.VerifyFailureFingerprintMissing:
		return "fingerprint_missing"
	case flows.VerifyFailureFingerprintMismatch:
		return "fingerprint_mismatch"
	case flows.VerifyFailureRevoked:
		return "revoked"
	case flows.VerifyFailureStore:
		return "store"
	default:
		return "invalid"
	}
}

func (e *Engine) onTheft(ctx context.Context, userID, sessionID string, revoked int64, err error) {
	e.metricInc(MetricRefreshTheftDetected)
	if err != nil {
		e.logger.Warn("goSession: theft revocation incomplete", "user_id", userID, "error", err)
	}
	e.emitAudit(ctx, auditEventRefreshTheft, false, userID, sessionID, ErrFingerprintMismatch, func() map[string]string {
		return map[string]string{"revoked": strconv.FormatInt(revoked, 10)}
	})
}

/*
====================================
REFRESH
====================================
*/

// Refresh reissues the fingerprint, access token and CSRF token for the
// session behind refreshToken. The refresh token itself is only replaced
// when Security.RotateRefreshToken is set.
//
// Errors: ErrNoRefreshToken, ErrRefreshInvalid, ErrFingerprintMismatch
// (after theft revocation), ErrSessionIdle, ErrStoreUnavailable.
func (e *Engine) Refresh(ctx context.Context, refreshToken, fingerprint string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	res := flows.RunRefresh(ctx, refreshToken, fingerprint, e.flows.Refresh)
	if res.Failure != flows.RefreshFailureNone {
		err := e.mapRefreshFailure(res)
		e.metricInc(MetricRefreshFailure)
		switch {
		case errors.Is(err, ErrSessionIdle):
			e.metricInc(MetricRefreshIdleExpired)
			e.emitAudit(ctx, auditEventRefreshIdle, false, res.UserID, res.SessionID, err, nil)
		case errors.Is(err, ErrStoreUnavailable):
			e.metricInc(MetricStoreUnavailable)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.SessionID, err, nil)
		case !res.TheftRevoked:
			e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.SessionID, err, func() map[string]string {
				return map[string]string{"reason": verifyReason(res.Verify)}
			})
		}
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricCSRFIssued)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.SessionID, nil, func() map[string]string {
		return map[string]string{"rotated": strconv.FormatBool(res.RefreshToken != "")}
	})

	return &RefreshResult{
		UserID:       res.UserID,
		SessionID:    res.SessionID,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Fingerprint:  res.Fingerprint,
		CSRFToken:    res.CSRFToken,
		ExpiresIn:    e.config.JWT.AccessTTL,
		AccessClaims: res.AccessClaims,
	}, nil
}

func (e *Engine) mapRefreshFailure(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureVerify:
		return mapVerifyFailure(res.Verify, res.Err, ErrRefreshInvalid)
	case flows.RefreshFailureIdle:
		return ErrSessionIdle
	case flows.RefreshFailureStore:
		return storeErr(res.Err)
	default:
		return fmt.Errorf("goSession: refresh: %w", res.Err)
	}
}

/*
====================================
REVOCATION
====================================
*/

// RevokeAccess blacklists an access token for the rest of its lifetime.
// Tokens that are already expired are left alone.
func (e *Engine) RevokeAccess(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if accessToken == "" {
		return ErrNoToken
	}
	if err := flows.RunRevokeAccess(ctx, accessToken, e.flows.Logout); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricAccessRevoked)
	e.emitAudit(ctx, auditEventAccessRevoked, true, "", "", nil, nil)
	return nil
}

// Logout revokes the caller's access token and the session behind the
// refresh token. An unparsable or expired refresh token is skipped rather
// than rejected. Every step runs; the failures are joined and returned for
// logging, and callers should still treat the logout as done.
func (e *Engine) Logout(ctx context.Context, req LogoutRequest) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	in := flows.LogoutInput{AccessToken: req.AccessToken}
	if req.RefreshToken != "" {
		if claims, err := e.jwtManager.ParseRefresh(req.RefreshToken); err == nil {
			in.UserID = claims.UserID
			in.TokenID = claims.ID
			in.SessionID = claims.SessionID
		}
	}
	err := flows.RunLogout(ctx, in, e.flows.Logout)
	if err != nil {
		err = storeErr(err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, in.UserID, in.SessionID, err, nil)
	return err
}

// LogoutAll revokes every session and refresh token of userID and
// blacklists accessToken when given. It returns the number of session records
// removed; refresh markers and CSRF tokens go with them but are not counted.
func (e *Engine) LogoutAll(ctx context.Context, userID, accessToken string) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, ErrNotAuthenticated
	}
	n, err := flows.RunLogoutAll(ctx, userID, accessToken, e.flows.Logout)
	if err != nil {
		err = storeErr(err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, userID, "", err, func() map[string]string {
		return map[string]string{"revoked": strconv.FormatInt(n, 10)}
	})
	return n, err
}

/*
====================================
CSRF
====================================
*/

// IssueCSRF stores and returns a fresh CSRF token for sessionID.
func (e *Engine) IssueCSRF(ctx context.Context, sessionID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	token, kind, err := flows.RunIssueCSRF(ctx, sessionID, e.flows.CSRF)
	switch kind {
	case flows.CSRFFailureNone:
		e.metricInc(MetricCSRFIssued)
		return token, nil
	case flows.CSRFFailureNoSession:
		return "", ErrNoSession
	default:
		return "", storeErr(err)
	}
}

// ValidateCSRF compares supplied against the token stored for sessionID in
// constant time.
func (e *Engine) ValidateCSRF(ctx context.Context, sessionID, supplied string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	kind, err := flows.RunValidateCSRF(ctx, sessionID, supplied, e.flows.CSRF)
	var out error
	switch kind {
	case flows.CSRFFailureNone:
		return nil
	case flows.CSRFFailureNoSession:
		out = ErrNoSession
	case flows.CSRFFailureNoToken:
		out = ErrNoCSRFToken
	case flows.CSRFFailureMismatch:
		out = ErrCSRFInvalid
	default:
		e.metricInc(MetricStoreUnavailable)
		return storeErr(err)
	}
	e.metricInc(MetricCSRFRejected)
	e.emitAudit(ctx, auditEventCSRFRejected, false, "", sessionID, out, nil)
	return out
}

/*
====================================
THROTTLING
====================================
*/

// Policies returns the configured rate-limit policies.
func (e *Engine) Policies() RateLimitConfig {
	return e.config.RateLimit
}

// CheckRate charges one event against policy for key. It returns
// ErrRateLimited with the decision when the budget is exhausted and
// ErrStoreUnavailable when the store fails and fail-open is off. A disabled
// rate limiter always allows.
func (e *Engine) CheckRate(ctx context.Context, policy RatePolicy, key string) (RateDecision, error) {
	if !e.ready() {
		return RateDecision{}, ErrEngineNotReady
	}
	if !e.config.RateLimit.Enabled {
		return RateDecision{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit}, nil
	}
	d, err := e.limiter.Allow(ctx, policy, key)
	return d, e.rateResult(ctx, policy, key, d, err)
}

// RecordLoginFailure charges one failed login against key.
func (e *Engine) RecordLoginFailure(ctx context.Context, key string) (RateDecision, error) {
	if !e.ready() {
		return RateDecision{}, ErrEngineNotReady
	}
	if !e.config.RateLimit.Enabled {
		return RateDecision{Allowed: true}, nil
	}
	d, err := e.limiter.RecordFailure(ctx, e.config.RateLimit.Login, key)
	if err != nil {
		return d, e.rateResult(ctx, e.config.RateLimit.Login, key, d, err)
	}
	return d, nil
}

// ResetLoginFailures clears the failed-login counter for key.
func (e *Engine) ResetLoginFailures(ctx context.Context, key string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.limiter.Reset(ctx, e.config.RateLimit.Login, key); err != nil {
		return storeErr(err)
	}
	return nil
}

func (e *Engine) rateResult(ctx context.Context, policy RatePolicy, key string, d RateDecision, err error) error {
	switch {
	case errors.Is(err, rate.ErrStoreUnavailable):
		e.metricInc(MetricStoreUnavailable)
		return storeErr(err)
	case errors.Is(err, rate.ErrInvalidPolicy):
		return fmt.Errorf("goSession: %w", err)
	case err != nil:
		return storeErr(err)
	}
	if !d.Allowed {
		e.emitRateLimit(ctx, policy, key)
		return ErrRateLimited
	}
	return nil
}

// BlockIP rejects every request from ip for ttl. A ttl of zero uses
// RateLimit.BlockTTL.
func (e *Engine) BlockIP(ctx context.Context, ip string, ttl time.Duration) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if ttl <= 0 {
		ttl = e.config.RateLimit.BlockTTL
	}
	if err := e.blocklist.Block(ctx, ip, ttl); err != nil {
		if errors.Is(err, rate.ErrInvalidIP) {
			return ErrInvalidInput
		}
		return storeErr(err)
	}
	e.emitAudit(ctx, auditEventIPBlocked, true, "", "", nil, func() map[string]string {
		return map[string]string{"ip": ip, "ttl": ttl.String()}
	})
	return nil
}

// UnblockIP lifts a block. Unknown addresses are not errors.
func (e *Engine) UnblockIP(ctx context.Context, ip string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.blocklist.Unblock(ctx, ip); err != nil {
		if errors.Is(err, rate.ErrInvalidIP) {
			return ErrInvalidInput
		}
		return storeErr(err)
	}
	e.emitAudit(ctx, auditEventIPUnblocked, true, "", "", nil, func() map[string]string {
		return map[string]string{"ip": ip}
	})
	return nil
}

// IsIPBlocked reports whether ip is blocked. A store failure returns
// (true, ErrStoreUnavailable) so callers that ignore the error still fail
// closed.
func (e *Engine) IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	if !e.ready() {
		return true, ErrEngineNotReady
	}
	blocked, err := e.blocklist.IsBlocked(ctx, ip)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		return true, storeErr(err)
	}
	if blocked {
		e.metricInc(MetricIPBlocked)
		e.emitAudit(ctx, auditEventBlockedRequest, false, "", "", ErrIPBlocked, nil)
	}
	return blocked, nil
}
