package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

const (
	fingerprintSize = 32
	csrfTokenSize   = 32
)

// Fingerprint is a freshly minted client binding value. Raw goes to the
// client cookie; Hash is the only form that may appear in a token.
type Fingerprint struct {
	Raw  string
	Hash string
}

func RandomHex(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("invalid random size")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func NewFingerprint() (Fingerprint, error) {
	raw, err := RandomHex(fingerprintSize)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Raw: raw, Hash: HashFingerprint(raw)}, nil
}

// HashFingerprint returns the lowercase hex sha256 of raw.
func HashFingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func FingerprintMatches(raw, hash string) bool {
	if raw == "" || hash == "" {
		return false
	}
	return EqualConstantTime(HashFingerprint(raw), hash)
}

func NewCSRFToken() (string, error) {
	return RandomHex(csrfTokenSize)
}

func NewTokenID() string {
	return uuid.NewString()
}

func NewSessionID() string {
	return uuid.NewString()
}

func EqualConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
