package goSession

import (
	"context"
	"time"
)

// HealthStatus is an on-demand store health result.
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration
}

// ListSessions returns the active sessions of userID, oldest first.
// currentSessionID marks the caller's own session. Token material and
// fingerprint hashes are never included.
func (e *Engine) ListSessions(ctx context.Context, userID, currentSessionID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	recs, err := e.sessions.ListSessions(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]SessionInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, SessionInfo{
			SessionID:    r.SessionID,
			CreatedAt:    r.CreatedAt,
			LastActivity: r.LastActivity,
			IP:           r.IP,
			UserAgent:    r.UserAgent,
			Current:      r.SessionID == currentSessionID,
		})
	}
	return out, nil
}

// ActiveSessionCount returns how many sessions userID holds.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, ErrNotAuthenticated
	}
	recs, err := e.sessions.ListSessions(ctx, userID)
	if err != nil {
		return 0, storeErr(err)
	}
	return len(recs), nil
}

// LoginAttempts reports failed logins charged against key in the current
// window. It does not charge an attempt.
func (e *Engine) LoginAttempts(ctx context.Context, key string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if key == "" || !e.config.RateLimit.Enabled {
		return 0, nil
	}
	policy := e.config.RateLimit.Login
	policy.OnlyFailures = true
	d, err := e.limiter.Allow(ctx, policy, key)
	if err != nil {
		return 0, storeErr(err)
	}
	if !d.Allowed {
		return policy.Limit, nil
	}
	return policy.Limit - d.Remaining, nil
}

// Ping checks the store.
func (e *Engine) Ping(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.kv.Ping(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// Health pings the store and reports the round trip.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}
	start := time.Now()
	err := e.kv.Ping(ctx)
	return HealthStatus{
		StoreAvailable: err == nil,
		StoreLatency:   time.Since(start),
	}
}
