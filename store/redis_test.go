package store

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisKVTest(t *testing.T, namespace string) (*RedisKV, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisKV(rdb, namespace), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestGetSetDeleteRoundTrip(t *testing.T) {
	kv, mr, done := newRedisKVTest(t, "app:")
	defer done()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := kv.SetTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("app:k") {
		t.Fatal("expected namespaced key in redis")
	}
	v, err := kv.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("get: %q %v", v, err)
	}
	n, err := kv.Delete(ctx, "k", "other")
	if err != nil || n != 1 {
		t.Fatalf("delete: %d %v", n, err)
	}
	n, err = kv.Delete(ctx, "k")
	if err != nil || n != 0 {
		t.Fatalf("second delete should be a no-op: %d %v", n, err)
	}
}

func TestSetTTLExpires(t *testing.T) {
	kv, mr, done := newRedisKVTest(t, "")
	defer done()
	ctx := context.Background()

	if err := kv.SetTTL(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	ttl, err := kv.TTL(ctx, "k")
	if err != nil || ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("unexpected ttl %v %v", ttl, err)
	}
	mr.FastForward(11 * time.Second)
	if _, err := kv.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if _, err := kv.TTL(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from TTL, got %v", err)
	}
	if err := kv.SetTTL(ctx, "k", "v", 0); err == nil {
		t.Fatal("expected non-positive ttl to be rejected")
	}
}

func TestDeletePrefixOnlyTouchesPrefix(t *testing.T) {
	kv, _, done := newRedisKVTest(t, "ns:")
	defer done()
	ctx := context.Background()

	for _, k := range []string{"session:u1:a", "session:u1:b", "session:u10:c", "session:u2:d"} {
		if err := kv.SetTTL(ctx, k, "x", time.Minute); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
	keys, err := kv.Keys(ctx, "session:u1:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "session:u1:a" || keys[1] != "session:u1:b" {
		t.Fatalf("unexpected keys %v", keys)
	}

	n, err := kv.DeletePrefix(ctx, "session:u1:")
	if err != nil || n != 2 {
		t.Fatalf("delete prefix: %d %v", n, err)
	}
	if _, err := kv.Get(ctx, "session:u10:c"); err != nil {
		t.Fatalf("sibling prefix must survive: %v", err)
	}
	if _, err := kv.Get(ctx, "session:u2:d"); err != nil {
		t.Fatalf("other user must survive: %v", err)
	}
}

func TestDeletePrefixEscapesGlob(t *testing.T) {
	kv, _, done := newRedisKVTest(t, "")
	defer done()
	ctx := context.Background()

	_ = kv.SetTTL(ctx, "session:*:a", "x", time.Minute)
	_ = kv.SetTTL(ctx, "session:u1:a", "x", time.Minute)

	n, err := kv.DeletePrefix(ctx, "session:*:")
	if err != nil || n != 1 {
		t.Fatalf("expected literal match only, got %d %v", n, err)
	}
	if _, err := kv.Get(ctx, "session:u1:a"); err != nil {
		t.Fatalf("glob metacharacters must not widen the match: %v", err)
	}
}

func TestIncrWithTTLArmsWindowOnce(t *testing.T) {
	kv, mr, done := newRedisKVTest(t, "")
	defer done()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, remaining, err := kv.IncrWithTTL(ctx, "rl:k", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != i {
			t.Fatalf("expected count %d, got %d", i, n)
		}
		if remaining <= 0 || remaining > time.Minute {
			t.Fatalf("unexpected remaining %v", remaining)
		}
	}
	mr.FastForward(30 * time.Second)
	_, remaining, err := kv.IncrWithTTL(ctx, "rl:k", time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if remaining > 31*time.Second {
		t.Fatalf("window must not be extended by later hits, remaining=%v", remaining)
	}
	mr.FastForward(31 * time.Second)
	n, _, err := kv.IncrWithTTL(ctx, "rl:k", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected fresh window after expiry, got %d %v", n, err)
	}
}

func TestIncrWithTTLRearmsOrphanCounter(t *testing.T) {
	kv, mr, done := newRedisKVTest(t, "")
	defer done()
	ctx := context.Background()

	if err := mr.Set("rl:orphan", "7"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	n, remaining, err := kv.IncrWithTTL(ctx, "rl:orphan", time.Minute)
	if err != nil || n != 8 {
		t.Fatalf("incr: %d %v", n, err)
	}
	if remaining != time.Minute {
		t.Fatalf("expected rearmed ttl, got %v", remaining)
	}
	if mr.TTL("rl:orphan") <= 0 {
		t.Fatal("expected orphan counter to receive a ttl")
	}
}

func TestUnavailableIsWrapped(t *testing.T) {
	kv, mr, done := newRedisKVTest(t, "")
	defer done()
	ctx := context.Background()

	mr.SetError("LOADING")
	_, err := kv.Get(ctx, "k")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !IsUnavailable(err) {
		t.Fatal("IsUnavailable must report wrapped failures")
	}
	if IsUnavailable(ErrNotFound) {
		t.Fatal("a miss is not an outage")
	}
	if _, _, err := kv.IncrWithTTL(ctx, "k", time.Second); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from incr, got %v", err)
	}
	mr.SetError("")
	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("ping after recovery: %v", err)
	}
}
