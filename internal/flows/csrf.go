package flows

import (
	"context"
	"time"
)

// CSRFFailureKind classifies double-submit validation failures.
type CSRFFailureKind int

const (
	CSRFFailureNone CSRFFailureKind = iota
	CSRFFailureNoSession
	CSRFFailureNoToken
	CSRFFailureMismatch
	CSRFFailureStore
)

// CSRFDeps captures CSRF issue/validate dependencies.
type CSRFDeps struct {
	Sessions   SessionStore
	Primitives Primitives
	TTL        time.Duration
}

// RunIssueCSRF stores a fresh token for sessionID, replacing the previous one.
func RunIssueCSRF(ctx context.Context, sessionID string, deps CSRFDeps) (string, CSRFFailureKind, error) {
	if sessionID == "" {
		return "", CSRFFailureNoSession, nil
	}
	p := deps.Primitives.withDefaults()
	token, err := p.NewCSRFToken()
	if err != nil {
		return "", CSRFFailureStore, err
	}
	if err := deps.Sessions.PutCSRF(ctx, sessionID, token, deps.TTL); err != nil {
		return "", CSRFFailureStore, err
	}
	return token, CSRFFailureNone, nil
}

// RunValidateCSRF compares supplied against the stored token in constant time.
// A session with no stored token rejects every value.
func RunValidateCSRF(ctx context.Context, sessionID, supplied string, deps CSRFDeps) (CSRFFailureKind, error) {
	if sessionID == "" {
		return CSRFFailureNoSession, nil
	}
	if supplied == "" {
		return CSRFFailureNoToken, nil
	}
	stored, err := deps.Sessions.GetCSRF(ctx, sessionID)
	if err != nil {
		return CSRFFailureStore, err
	}
	p := deps.Primitives.withDefaults()
	if stored == "" || !p.EqualConstantTime(stored, supplied) {
		return CSRFFailureMismatch, nil
	}
	return CSRFFailureNone, nil
}
