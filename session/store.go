package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/store"
)

var (
	// ErrSessionNotFound is returned when no record exists for the session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCorrupt is returned when a stored record cannot be decoded.
	ErrSessionCorrupt = errors.New("session record corrupt")
	// ErrStoreUnavailable mirrors store.ErrUnavailable for callers that only import session.
	ErrStoreUnavailable = store.ErrUnavailable
)

const (
	refreshMarkerValue = "valid"
	blacklistValue     = "true"
)

// Store lays out session, refresh-marker, CSRF and blacklist state on a KV.
//
// Key layout:
//
//	session:{userId}:{sessionId}  JSON Record
//	refresh:{userId}:{tokenId}    "valid"
//	csrf:{sessionId}              token
//	blacklist:{accessToken}       "true"
type Store struct {
	kv store.KV
}

// NewStore wraps kv.
func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

func sessionPrefix(userID string) string { return "session:" + userID + ":" }
func refreshPrefix(userID string) string { return "refresh:" + userID + ":" }

func sessionKey(userID, sessionID string) string { return sessionPrefix(userID) + sessionID }
func refreshKey(userID, tokenID string) string   { return refreshPrefix(userID) + tokenID }
func csrfKey(sessionID string) string            { return "csrf:" + sessionID }
func blacklistKey(token string) string           { return "blacklist:" + token }

// SaveSession writes rec with ttl, replacing any existing record.
func (s *Store) SaveSession(ctx context.Context, userID string, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.kv.SetTTL(ctx, sessionKey(userID, rec.SessionID), string(data), ttl)
}

// GetSession returns the stored record or ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (*Record, error) {
	raw, err := s.kv.Get(ctx, sessionKey(userID, sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if rec.SessionID == "" {
		rec.SessionID = sessionID
	}
	return &rec, nil
}

// TouchSession rewrites rec with the remaining TTL of the stored entry so
// activity updates never extend the session past its refresh lifetime.
func (s *Store) TouchSession(ctx context.Context, userID string, rec *Record, now time.Time) error {
	key := sessionKey(userID, rec.SessionID)
	ttl, err := s.kv.TTL(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if ttl <= 0 {
		return ErrSessionNotFound
	}
	rec.LastActivity = now
	return s.SaveSession(ctx, userID, *rec, ttl)
}

// DeleteSession removes the session record and its CSRF token. Missing
// entries are not errors.
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID string) error {
	_, err := s.kv.Delete(ctx, sessionKey(userID, sessionID), csrfKey(sessionID))
	return err
}

// ListSessions returns every live session for userID, oldest first. Records
// that cannot be decoded are skipped.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]Record, error) {
	keys, err := s.kv.Keys(ctx, sessionPrefix(userID))
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		sid := strings.TrimPrefix(k, sessionPrefix(userID))
		rec, err := s.GetSession(ctx, userID, sid)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionCorrupt) {
				continue
			}
			return nil, err
		}
		out = append(out, *rec)
	}
	// Oldest first; equal timestamps order by session ID so eviction is stable.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

// DeleteAllForUser removes every session record, CSRF token and refresh
// marker for userID. It returns the number of session records removed.
//
// ATOMICITY NOTE: the prefix deletes are SCAN based. A login racing this call
// can leave one fresh session behind; that session carries its own TTL and is
// caught by the next DeleteAllForUser.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	var errs []error

	sessions, err := s.ListSessions(ctx, userID)
	if err != nil {
		errs = append(errs, err)
	}
	if len(sessions) > 0 {
		csrfKeys := make([]string, 0, len(sessions))
		for _, rec := range sessions {
			csrfKeys = append(csrfKeys, csrfKey(rec.SessionID))
		}
		if _, err := s.kv.Delete(ctx, csrfKeys...); err != nil {
			errs = append(errs, err)
		}
	}

	n, err := s.kv.DeletePrefix(ctx, sessionPrefix(userID))
	if err != nil {
		errs = append(errs, err)
	}
	if _, err := s.kv.DeletePrefix(ctx, refreshPrefix(userID)); err != nil {
		errs = append(errs, err)
	}
	return n, errors.Join(errs...)
}

// PutRefreshMarker records tokenID as the live refresh token for userID.
func (s *Store) PutRefreshMarker(ctx context.Context, userID, tokenID string, ttl time.Duration) error {
	return s.kv.SetTTL(ctx, refreshKey(userID, tokenID), refreshMarkerValue, ttl)
}

// RefreshMarkerLive reports whether the marker still exists. Store failures
// are returned so the caller can fail closed.
func (s *Store) RefreshMarkerLive(ctx context.Context, userID, tokenID string) (bool, error) {
	v, err := s.kv.Get(ctx, refreshKey(userID, tokenID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return v == refreshMarkerValue, nil
}

func (s *Store) DeleteRefreshMarker(ctx context.Context, userID, tokenID string) error {
	_, err := s.kv.Delete(ctx, refreshKey(userID, tokenID))
	return err
}

// Blacklist marks an access token revoked for exactly ttl. Non-positive ttl
// is a no-op since the token has already expired.
func (s *Store) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" || ttl <= 0 {
		return nil
	}
	return s.kv.SetTTL(ctx, blacklistKey(token), blacklistValue, ttl)
}

func (s *Store) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	v, err := s.kv.Get(ctx, blacklistKey(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return v == blacklistValue, nil
}

func (s *Store) PutCSRF(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	return s.kv.SetTTL(ctx, csrfKey(sessionID), token, ttl)
}

// GetCSRF returns the stored token, or "" when none exists.
func (s *Store) GetCSRF(ctx context.Context, sessionID string) (string, error) {
	v, err := s.kv.Get(ctx, csrfKey(sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

// Ping checks store reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}
