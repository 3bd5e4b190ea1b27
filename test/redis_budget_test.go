//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
)

// cmdCounter is a go-redis Hook that counts Redis commands.
type cmdCounter struct {
	commands atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset()          { h.commands.Store(0) }
func (h *cmdCounter) Commands() int64 { return h.commands.Load() }

func newCountedEngine(t *testing.T, mutate func(*goSession.Config)) (*goSession.Engine, *cmdCounter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := &cmdCounter{}
	rdb.AddHook(counter)
	t.Cleanup(func() { _ = rdb.Close(); mr.Close() })
	return newEngine(t, rdb, "", mutate), counter
}

// Access verification sits on every authenticated request; it must cost a
// single blacklist read.
func TestRedisBudgetVerifyAccess(t *testing.T) {
	e, counter := newCountedEngine(t, nil)
	res := login(t, e, "u1")

	counter.Reset()
	if _, err := e.VerifyAccess(context.Background(), res.AccessToken, res.Fingerprint); err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if got := counter.Commands(); got != 1 {
		t.Fatalf("VerifyAccess used %d commands, want 1", got)
	}
}

func TestRedisBudgetRefresh(t *testing.T) {
	e, counter := newCountedEngine(t, nil)
	res := login(t, e, "u1")

	counter.Reset()
	if _, err := e.Refresh(context.Background(), res.RefreshToken, res.Fingerprint); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	// session read, marker read, csrf write, ttl read, session write
	if got := counter.Commands(); got > 5 {
		t.Fatalf("Refresh used %d commands, want <= 5", got)
	}
}

func TestRedisBudgetVerifyRejectsWithoutStoreOnBadSignature(t *testing.T) {
	e, counter := newCountedEngine(t, nil)

	counter.Reset()
	if _, err := e.VerifyRefresh(context.Background(), "not-a-jwt", ""); err == nil {
		t.Fatalf("expected VerifyRefresh to reject a malformed token")
	}
	if got := counter.Commands(); got != 0 {
		t.Fatalf("malformed refresh token reached the store: %d commands", got)
	}
}
