package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 256

// incrWithTTLScript increments the counter and arms the expiry only when the
// key was just created. A key that somehow lost its TTL is re-armed.
const incrWithTTLScript = `
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var incrWithTTLLua = redis.NewScript(incrWithTTLScript)

// RedisKV implements KV on top of go-redis. Every key is prefixed with the
// configured namespace.
//
//	Performance: Get/SetTTL/Delete are 1 round trip, IncrWithTTL is 1 EVALSHA,
//	DeletePrefix and Keys are SCAN based and never use KEYS.
type RedisKV struct {
	redis     redis.UniversalClient
	namespace string
}

// NewRedisKV wraps client. namespace may be empty.
func NewRedisKV(client redis.UniversalClient, namespace string) *RedisKV {
	return &RedisKV{redis: client, namespace: namespace}
}

func (s *RedisKV) key(k string) string {
	return s.namespace + k
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

func (s *RedisKV) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("store: non-positive ttl for %q", key)
	}
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisKV) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	n, err := s.redis.Del(ctx, full...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// DeletePrefix scans and deletes in batches. Keys created while the scan is in
// flight may survive; they carry their own TTL.
func (s *RedisKV) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	err := s.scan(ctx, prefix, func(batch []string) error {
		n, err := s.redis.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		deleted += n
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return deleted, nil
}

func (s *RedisKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := s.scan(ctx, prefix, func(batch []string) error {
		for _, k := range batch {
			out = append(out, strings.TrimPrefix(k, s.namespace))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *RedisKV) scan(ctx context.Context, prefix string, fn func([]string) error) error {
	match := escapeGlob(s.key(prefix)) + "*"
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisKV) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	if ttl <= 0 {
		return 0, 0, fmt.Errorf("store: non-positive window for %q", key)
	}
	res, err := incrWithTTLLua.Run(ctx, s.redis, []string{s.key(key)}, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected script reply", ErrUnavailable)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

func (s *RedisKV) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.redis.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// go-redis passes -2 (missing) and -1 (no expiry) through unscaled.
	if d == -2 {
		return 0, ErrNotFound
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisKV) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
