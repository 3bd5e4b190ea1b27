package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key does not exist or has expired.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps transport and server failures.
	ErrUnavailable = errors.New("store: unavailable")
)

// KV is the storage capability injected into the session manager and the
// request gate.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes keys and reports how many existed. Missing keys are not errors.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// DeletePrefix removes every key that starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	// Keys lists keys that start with prefix. Order is unspecified.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// IncrWithTTL increments key and sets ttl when the counter is created.
	// It returns the new count and the remaining lifetime of the window.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)
	// TTL returns the remaining lifetime of key, or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}

// IsUnavailable reports whether err is a backend failure rather than a miss.
func IsUnavailable(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound)
}
