package goSession

import (
	"context"
	"strings"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventSessionEvicted     = "session_evicted"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshTheft       = "refresh_theft_detected"
	auditEventRefreshIdle        = "refresh_idle_expired"
	auditEventAccessRejected     = "access_rejected"
	auditEventAccessRevoked      = "access_revoked"
	auditEventLogoutSession      = "logout_session"
	auditEventLogoutAll          = "logout_all"
	auditEventCSRFRejected       = "csrf_rejected"
	auditEventRateLimitTriggered = "rate_limit_triggered"
	auditEventIPBlocked          = "ip_blocked"
	auditEventIPUnblocked        = "ip_unblocked"
	auditEventBlockedRequest     = "blocked_request"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = code
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, policy RatePolicy, key string) {
	e.metricInc(MetricRateLimitHit)
	switch policy.Name {
	case e.config.RateLimit.Login.Name:
		e.metricInc(MetricLoginRateLimited)
	case e.config.RateLimit.Refresh.Name:
		e.metricInc(MetricRefreshRateLimited)
	}
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", ErrRateLimited, func() map[string]string {
		return map[string]string{
			"policy": policy.Name,
			"key":    key,
		}
	})
}

// auditErrorCode is the lowercase error kind, or "" for nil.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return strings.ToLower(string(KindOf(err)))
}
