//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
)

const testSecret = "integration-access-secret-0123456789abcdef"

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the Redis backends to test. miniredis is always
// available. A real standalone server is used when REDIS_ADDR is set.
// Cluster mode is not covered: prefix deletes SCAN a single node.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

// newEngine builds an engine on rdb. prefix isolates runs that share a
// real server.
func newEngine(t *testing.T, rdb redis.UniversalClient, prefix string, mutate func(*goSession.Config)) *goSession.Engine {
	t.Helper()
	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(testSecret)
	cfg.Store.Prefix = prefix
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func login(t *testing.T, e *goSession.Engine, userID string) *goSession.LoginResult {
	t.Helper()
	res, err := e.Login(context.Background(), goSession.LoginRequest{
		UserID:    userID,
		Email:     userID + "@example.com",
		IP:        "203.0.113.7",
		UserAgent: "integration",
	})
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", userID, err)
	}
	return res
}
