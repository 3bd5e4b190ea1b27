package security

import (
	"testing"
	"time"
)

func baseInput() ReportInput {
	return ReportInput{
		ProductionMode:        true,
		SigningAlgorithm:      "hs512",
		AccessTTL:             15 * time.Minute,
		RefreshTTL:            7 * 24 * time.Hour,
		SeparateRefreshSecret: true,
		RequireFingerprint:    true,
		MaxConcurrentSessions: 5,
		IdleTimeout:           30 * time.Minute,
		RateLimitEnabled:      true,
		ScreenSQL:             true,
		ScreenNoSQL:           true,
		AuditEnabled:          true,
	}
}

func hasFinding(r Report, code string) bool {
	for _, f := range r.Findings {
		if f.Code == code {
			return true
		}
	}
	return false
}

func TestHardenedInputHasNoFindings(t *testing.T) {
	r := BuildReport(baseInput())
	if len(r.Findings) != 0 {
		t.Fatalf("expected no findings, got %+v", r.Findings)
	}
	if r.SigningAlgorithm != "HS512" {
		t.Fatalf("expected normalized algorithm, got %q", r.SigningAlgorithm)
	}
}

func TestFindings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ReportInput)
		code   string
		sev    Severity
	}{
		{"long access ttl", func(in *ReportInput) { in.AccessTTL = 2 * time.Hour }, "access_ttl_long", SeverityWarn},
		{"long refresh ttl", func(in *ReportInput) { in.RefreshTTL = 60 * 24 * time.Hour }, "refresh_ttl_long", SeverityWarn},
		{"hs256", func(in *ReportInput) { in.SigningAlgorithm = "HS256" }, "hs256", SeverityInfo},
		{"unbounded sessions", func(in *ReportInput) { in.MaxConcurrentSessions = 0 }, "sessions_unbounded", SeverityWarn},
		{"no idle timeout", func(in *ReportInput) { in.IdleTimeout = 0 }, "idle_timeout_disabled", SeverityInfo},
		{"rate limit off in production", func(in *ReportInput) { in.RateLimitEnabled = false }, "rate_limit_disabled", SeverityHigh},
		{"fail open", func(in *ReportInput) { in.RateLimitFailOpen = true }, "rate_limit_fail_open", SeverityInfo},
		{"no screening", func(in *ReportInput) { in.ScreenSQL, in.ScreenNoSQL = false, false }, "screening_disabled", SeverityWarn},
		{"audit off", func(in *ReportInput) { in.AuditEnabled = false }, "audit_disabled", SeverityWarn},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput()
			tc.mutate(&in)
			r := BuildReport(in)
			for _, f := range r.Findings {
				if f.Code == tc.code {
					if f.Severity != tc.sev {
						t.Fatalf("expected severity %s, got %s", tc.sev, f.Severity)
					}
					return
				}
			}
			t.Fatalf("expected finding %q in %+v", tc.code, r.Findings)
		})
	}
}

func TestRateLimitDisabledOutsideProductionIsWarn(t *testing.T) {
	in := baseInput()
	in.ProductionMode = false
	in.RateLimitEnabled = false
	r := BuildReport(in)
	if r.High() {
		t.Fatalf("expected no high findings outside production")
	}
	if !hasFinding(r, "rate_limit_disabled") {
		t.Fatalf("expected rate_limit_disabled finding")
	}
}
