//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// TestEngineLifecycle runs the full session lifecycle against every
// configured backend.
func TestEngineLifecycle(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			ctx := context.Background()
			prefix := fmt.Sprintf("it%d:", time.Now().UnixNano())
			e := newEngine(t, rdb, prefix, func(c *goSession.Config) {
				c.Security.RotateRefreshToken = true
			})

			res := login(t, e, "u1")
			if _, err := e.VerifyAccess(ctx, res.AccessToken, res.Fingerprint); err != nil {
				t.Fatalf("VerifyAccess failed: %v", err)
			}
			if err := e.ValidateCSRF(ctx, res.SessionID, res.CSRFToken); err != nil {
				t.Fatalf("ValidateCSRF failed: %v", err)
			}

			ref, err := e.Refresh(ctx, res.RefreshToken, res.Fingerprint)
			if err != nil {
				t.Fatalf("Refresh failed: %v", err)
			}
			if ref.RefreshToken == "" || ref.RefreshToken == res.RefreshToken {
				t.Fatalf("expected a rotated refresh token")
			}
			if _, err := e.VerifyRefresh(ctx, res.RefreshToken, ref.Fingerprint); err == nil {
				t.Fatalf("expected the rotated-out refresh token to be rejected")
			}
			if _, err := e.VerifyAccess(ctx, ref.AccessToken, ref.Fingerprint); err != nil {
				t.Fatalf("VerifyAccess after refresh failed: %v", err)
			}

			if err := e.Logout(ctx, goSession.LogoutRequest{AccessToken: ref.AccessToken, RefreshToken: ref.RefreshToken}); err != nil {
				t.Fatalf("Logout failed: %v", err)
			}
			if _, err := e.VerifyAccess(ctx, ref.AccessToken, ref.Fingerprint); !errors.Is(err, goSession.ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid after logout, got %v", err)
			}
			if n, err := e.ActiveSessionCount(ctx, "u1"); err != nil || n != 0 {
				t.Fatalf("expected no sessions after logout, got %d (%v)", n, err)
			}
		})
	}
}

func TestEngineLogoutAllAndCap(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			ctx := context.Background()
			prefix := fmt.Sprintf("it%d:", time.Now().UnixNano())
			e := newEngine(t, rdb, prefix, func(c *goSession.Config) {
				c.Session.MaxConcurrentSessions = 2
			})

			first := login(t, e, "u2")
			login(t, e, "u2")
			third := login(t, e, "u2")
			if len(third.Evicted) != 1 || third.Evicted[0] != first.SessionID {
				t.Fatalf("expected the oldest session to be evicted, got %v", third.Evicted)
			}
			if n, err := e.ActiveSessionCount(ctx, "u2"); err != nil || n != 2 {
				t.Fatalf("expected 2 sessions, got %d (%v)", n, err)
			}

			removed, err := e.LogoutAll(ctx, "u2", third.AccessToken)
			if err != nil {
				t.Fatalf("LogoutAll failed: %v", err)
			}
			if removed != 2 {
				t.Fatalf("expected 2 sessions removed, got %d", removed)
			}
			if _, err := e.VerifyRefresh(ctx, third.RefreshToken, third.Fingerprint); err == nil {
				t.Fatalf("expected refresh to fail after logout-all")
			}
		})
	}
}

func TestEngineRateLimitAndBlocklist(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			ctx := context.Background()
			prefix := fmt.Sprintf("it%d:", time.Now().UnixNano())
			e := newEngine(t, rdb, prefix, nil)

			policy := e.Policies().Refresh
			for i := 0; i < policy.Limit; i++ {
				if _, err := e.CheckRate(ctx, policy, "203.0.113.7"); err != nil {
					t.Fatalf("request %d rejected: %v", i+1, err)
				}
			}
			if _, err := e.CheckRate(ctx, policy, "203.0.113.7"); !errors.Is(err, goSession.ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}

			if err := e.BlockIP(ctx, "198.51.100.4", time.Minute); err != nil {
				t.Fatalf("BlockIP failed: %v", err)
			}
			if blocked, err := e.IsIPBlocked(ctx, "198.51.100.4"); err != nil || !blocked {
				t.Fatalf("expected blocked, got %v (%v)", blocked, err)
			}
			if err := e.UnblockIP(ctx, "198.51.100.4"); err != nil {
				t.Fatalf("UnblockIP failed: %v", err)
			}
			if blocked, err := e.IsIPBlocked(ctx, "198.51.100.4"); err != nil || blocked {
				t.Fatalf("expected unblocked, got %v (%v)", blocked, err)
			}
		})
	}
}
