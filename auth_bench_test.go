package goSession

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newBenchmarkEngine(b *testing.B) (*Engine, func()) {
	b.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	cfg.Audit.Enabled = false
	cfg.Session.MaxConcurrentSessions = 0
	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func BenchmarkVerifyAccess(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	res, err := engine.Login(context.Background(), LoginRequest{UserID: "u1"})
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.VerifyAccess(context.Background(), res.AccessToken, res.Fingerprint); err != nil {
			b.Fatalf("verify failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	res, err := engine.Login(context.Background(), LoginRequest{UserID: "u1"})
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}
	fp := res.Fingerprint

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := engine.Refresh(context.Background(), res.RefreshToken, fp)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		fp = out.Fingerprint
	}
}

func BenchmarkLogin(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Login(context.Background(), LoginRequest{UserID: "u1"}); err != nil {
			b.Fatalf("login failed: %v", err)
		}
	}
}
