package goSession

import "github.com/MrEthical07/goSession/internal/security"

// SecurityReport summarizes the protections in force.
type SecurityReport = security.Report

// SecurityFinding is one posture observation.
type SecurityFinding = security.Finding

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return ReportFor(e.config)
}

// ReportFor evaluates a configuration without building an engine.
func ReportFor(c Config) SecurityReport {
	return security.BuildReport(security.ReportInput{
		ProductionMode:        c.Security.ProductionMode,
		SigningAlgorithm:      c.JWT.SigningMethod,
		AccessTTL:             c.JWT.AccessTTL,
		RefreshTTL:            c.JWT.RefreshTTL,
		Leeway:                c.JWT.Leeway,
		SeparateRefreshSecret: len(c.JWT.RefreshSecret) > 0,
		RequireFingerprint:    c.Security.RequireFingerprint,
		RotateRefreshToken:    c.Security.RotateRefreshToken,
		MaxConcurrentSessions: c.Session.MaxConcurrentSessions,
		IdleTimeout:           c.Session.IdleTimeout,
		RateLimitEnabled:      c.RateLimit.Enabled,
		RateLimitFailOpen:     c.RateLimit.FailOpen,
		ScreenSQL:             c.Security.ScreenSQL,
		ScreenNoSQL:           c.Security.ScreenNoSQL,
		AuditEnabled:          c.Audit.Enabled,
		AuditDropIfFull:       c.Audit.DropIfFull,
	})
}
