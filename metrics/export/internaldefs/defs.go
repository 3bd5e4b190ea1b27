package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "gosession_audit_dropped_total"

// CounterDefs lists every exported counter, in exposition order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed logins."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Login attempts rejected by the failed-login limiter."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful access token refreshes."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed access token refreshes."},
	{ID: goSession.MetricRefreshTheftDetected, Name: "gosession_refresh_theft_detected_total", Help: "Refresh fingerprint mismatches that revoked every session of the user."},
	{ID: goSession.MetricRefreshIdleExpired, Name: "gosession_refresh_idle_expired_total", Help: "Sessions revoked for idling past the timeout."},
	{ID: goSession.MetricRefreshRateLimited, Name: "gosession_refresh_rate_limited_total", Help: "Refresh attempts rejected by the refresh limiter."},
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Created sessions."},
	{ID: goSession.MetricSessionEvicted, Name: "gosession_session_evicted_total", Help: "Sessions evicted by the concurrency cap."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Single-session logouts."},
	{ID: goSession.MetricLogoutAll, Name: "gosession_logout_all_total", Help: "Logouts from every device."},
	{ID: goSession.MetricAccessRevoked, Name: "gosession_access_revoked_total", Help: "Access tokens added to the blacklist."},
	{ID: goSession.MetricAccessRejected, Name: "gosession_access_rejected_total", Help: "Access tokens rejected during verification."},
	{ID: goSession.MetricCSRFIssued, Name: "gosession_csrf_issued_total", Help: "Issued CSRF tokens."},
	{ID: goSession.MetricCSRFRejected, Name: "gosession_csrf_rejected_total", Help: "Requests rejected by CSRF validation."},
	{ID: goSession.MetricRateLimitHit, Name: "gosession_rate_limit_hit_total", Help: "Rate-limit checks that denied a request."},
	{ID: goSession.MetricIPBlocked, Name: "gosession_ip_blocked_total", Help: "Requests from blocked addresses."},
	{ID: goSession.MetricStoreUnavailable, Name: "gosession_store_unavailable_total", Help: "Operations that failed because the session store was unreachable."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricValidateLatency, Name: "gosession_validate_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the upper bounds of the latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are HistogramBounds without the +Inf bucket, in
// seconds.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix renders HistogramBounds for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
