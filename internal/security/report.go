package security

import (
	"strings"
	"time"
)

// Severity ranks a posture finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityWarn:
		return "warn"
	default:
		return "info"
	}
}

// Finding is one observation about a configuration.
type Finding struct {
	Code     string
	Severity Severity
	Message  string
}

type Report struct {
	ProductionMode         bool
	SigningAlgorithm       string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	FingerprintRequired    bool
	RefreshRotationEnabled bool
	SessionCapActive       bool
	IdleTimeout            time.Duration
	RateLimitingActive     bool
	RateLimitFailOpen      bool
	InputScreeningActive   bool
	AuditEnabled           bool
	Findings               []Finding
}

type ReportInput struct {
	ProductionMode        bool
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Leeway                time.Duration
	SeparateRefreshSecret bool
	RequireFingerprint    bool
	RotateRefreshToken    bool
	MaxConcurrentSessions int
	IdleTimeout           time.Duration
	RateLimitEnabled      bool
	RateLimitFailOpen     bool
	ScreenSQL             bool
	ScreenNoSQL           bool
	AuditEnabled          bool
	AuditDropIfFull       bool
}

func BuildReport(input ReportInput) Report {
	r := Report{
		ProductionMode:         input.ProductionMode,
		SigningAlgorithm:       strings.ToUpper(input.SigningAlgorithm),
		AccessTTL:              input.AccessTTL,
		RefreshTTL:             input.RefreshTTL,
		FingerprintRequired:    input.RequireFingerprint,
		RefreshRotationEnabled: input.RotateRefreshToken,
		SessionCapActive:       input.MaxConcurrentSessions > 0,
		IdleTimeout:            input.IdleTimeout,
		RateLimitingActive:     input.RateLimitEnabled,
		RateLimitFailOpen:      input.RateLimitEnabled && input.RateLimitFailOpen,
		InputScreeningActive:   input.ScreenSQL || input.ScreenNoSQL,
		AuditEnabled:           input.AuditEnabled,
	}
	r.Findings = lint(input)
	return r
}

// High reports whether any finding is SeverityHigh.
func (r Report) High() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

func lint(in ReportInput) []Finding {
	var out []Finding
	add := func(code string, sev Severity, msg string) {
		out = append(out, Finding{Code: code, Severity: sev, Message: msg})
	}

	if in.AccessTTL > time.Hour {
		add("access_ttl_long", SeverityWarn, "access tokens live longer than 1h")
	}
	if in.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", SeverityWarn, "refresh tokens live longer than 30d")
	}
	if in.Leeway > 30*time.Second {
		add("leeway_large", SeverityInfo, "clock skew leeway above 30s")
	}
	if strings.EqualFold(in.SigningAlgorithm, "HS256") {
		add("hs256", SeverityInfo, "HS512 is the recommended signing method")
	}
	if !in.SeparateRefreshSecret {
		add("derived_refresh_secret", SeverityInfo, "refresh secret is derived from the access secret")
	}
	if in.MaxConcurrentSessions == 0 {
		add("sessions_unbounded", SeverityWarn, "no concurrent session cap")
	}
	if in.IdleTimeout == 0 {
		add("idle_timeout_disabled", SeverityInfo, "idle sessions live until the refresh token expires")
	}
	if !in.RateLimitEnabled {
		sev := SeverityWarn
		if in.ProductionMode {
			sev = SeverityHigh
		}
		add("rate_limit_disabled", sev, "request throttling is disabled")
	} else if in.RateLimitFailOpen {
		add("rate_limit_fail_open", SeverityInfo, "throttling degrades to per-process buckets when the store fails")
	}
	if !in.ScreenSQL && !in.ScreenNoSQL {
		add("screening_disabled", SeverityWarn, "input injection screening is disabled")
	}
	if in.ProductionMode && !in.RequireFingerprint {
		add("fingerprint_optional", SeverityInfo, "requests without a fingerprint cookie are accepted")
	}
	if !in.AuditEnabled {
		add("audit_disabled", SeverityWarn, "security audit events are not recorded")
	} else if in.AuditDropIfFull {
		add("audit_lossy", SeverityInfo, "audit events are dropped when the buffer is full")
	}
	return out
}
