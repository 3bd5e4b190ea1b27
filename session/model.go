package session

import "time"

// Record is the server-side session entry stored under
// session:{userId}:{sessionId}. TokenID names the refresh token whose marker
// anchors this session's liveness. FingerprintHash tracks the fingerprint most
// recently issued to the session, which moves on every refresh while the
// refresh token itself may keep its original binding.
type Record struct {
	SessionID       string `json:"sessionId"`
	TokenID         string `json:"tokenId"`
	FingerprintHash string `json:"fingerprintHash,omitempty"`

	// PrevFingerprintHash is the fingerprint the last refresh replaced, and
	// FingerprintRotatedAt is when that happened.
	PrevFingerprintHash  string    `json:"prevFingerprintHash,omitempty"`
	FingerprintRotatedAt time.Time `json:"fingerprintRotatedAt,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
}

// IdleFor reports how long the session has gone without a refresh.
func (r *Record) IdleFor(now time.Time) time.Duration {
	if r == nil || r.LastActivity.IsZero() {
		return 0
	}
	return now.Sub(r.LastActivity)
}
