package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/store"
	xrate "golang.org/x/time/rate"
)

// Policy describes one throttling rule.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
	// OnlyFailures policies are charged through RecordFailure, never by Allow.
	OnlyFailures bool
}

// Default policies.
var (
	General       = Policy{Name: "general", Limit: 100, Window: 15 * time.Minute}
	Login         = Policy{Name: "login", Limit: 5, Window: 15 * time.Minute, OnlyFailures: true}
	Refresh       = Policy{Name: "refresh", Limit: 10, Window: time.Minute}
	PasswordReset = Policy{Name: "password-reset", Limit: 3, Window: time.Hour}
)

func (p Policy) validate() error {
	if p.Name == "" || p.Limit <= 0 || p.Window <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, p.Name)
	}
	return nil
}

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
	// Local is set when the decision came from the in-process fallback.
	Local bool
}

// Config controls limiter behavior.
type Config struct {
	FailOpen bool
	// MaxLocalKeys bounds the fallback bucket table. Zero means 10000.
	MaxLocalKeys int
}

// Limiter enforces policies against a store.KV.
type Limiter struct {
	kv     store.KV
	config Config
	local  *localBuckets
}

// New creates a limiter.
func New(kv store.KV, cfg Config) *Limiter {
	if cfg.MaxLocalKeys <= 0 {
		cfg.MaxLocalKeys = 10000
	}
	return &Limiter{
		kv:     kv,
		config: cfg,
		local:  &localBuckets{max: cfg.MaxLocalKeys, buckets: make(map[string]*xrate.Limiter)},
	}
}

func counterKey(p Policy, key string) string {
	return "rl:" + p.Name + ":" + key
}

// Allow checks and, for counting policies, charges one request against key.
func (l *Limiter) Allow(ctx context.Context, p Policy, key string) (Decision, error) {
	if err := p.validate(); err != nil {
		return Decision{}, err
	}
	if p.OnlyFailures {
		return l.peek(ctx, p, key)
	}

	count, remaining, err := l.kv.IncrWithTTL(ctx, counterKey(p, key), p.Window)
	if err != nil {
		return l.degrade(p, key, err)
	}
	return decide(p, count, remaining), nil
}

// RecordFailure charges one failed attempt against key.
func (l *Limiter) RecordFailure(ctx context.Context, p Policy, key string) (Decision, error) {
	if err := p.validate(); err != nil {
		return Decision{}, err
	}
	count, remaining, err := l.kv.IncrWithTTL(ctx, counterKey(p, key), p.Window)
	if err != nil {
		return l.degrade(p, key, err)
	}
	return decide(p, count, remaining), nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, p Policy, key string) error {
	if _, err := l.kv.Delete(ctx, counterKey(p, key)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	l.local.forget(p, key)
	return nil
}

func (l *Limiter) peek(ctx context.Context, p Policy, key string) (Decision, error) {
	k := counterKey(p, key)
	raw, err := l.kv.Get(ctx, k)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{Allowed: true, Limit: p.Limit, Remaining: p.Limit, ResetAfter: p.Window}, nil
	}
	if err != nil {
		return l.degradePeek(p, key, err)
	}
	count, convErr := strconv.ParseInt(raw, 10, 64)
	if convErr != nil {
		// Unreadable counters are treated as exhausted until they expire.
		count = int64(p.Limit)
	}
	ttl, err := l.kv.TTL(ctx, k)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{Allowed: true, Limit: p.Limit, Remaining: p.Limit, ResetAfter: p.Window}, nil
	}
	if err != nil {
		return l.degradePeek(p, key, err)
	}
	if ttl <= 0 {
		ttl = p.Window
	}
	d := Decision{Limit: p.Limit, ResetAfter: ttl}
	if count >= int64(p.Limit) {
		d.RetryAfter = ttl
		return d, nil
	}
	d.Allowed = true
	d.Remaining = p.Limit - int(count)
	return d, nil
}

func decide(p Policy, count int64, remaining time.Duration) Decision {
	if remaining <= 0 {
		remaining = p.Window
	}
	d := Decision{Limit: p.Limit, ResetAfter: remaining}
	if count > int64(p.Limit) {
		d.RetryAfter = remaining
		return d
	}
	d.Allowed = true
	d.Remaining = p.Limit - int(count)
	return d
}

func (l *Limiter) degrade(p Policy, key string, cause error) (Decision, error) {
	if !l.config.FailOpen {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
	}
	return l.local.take(p, key), nil
}

// degradePeek answers a failure-only check without charging the local bucket.
func (l *Limiter) degradePeek(p Policy, key string, cause error) (Decision, error) {
	if !l.config.FailOpen {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
	}
	return l.local.peek(p, key), nil
}

type localBuckets struct {
	mu      sync.Mutex
	max     int
	buckets map[string]*xrate.Limiter
}

func (b *localBuckets) get(p Policy, key string) *xrate.Limiter {
	k := counterKey(p, key)
	b.mu.Lock()
	defer b.mu.Unlock()
	lim, ok := b.buckets[k]
	if !ok {
		if len(b.buckets) >= b.max {
			// Dropping every bucket resets their budgets; acceptable while degraded.
			b.buckets = make(map[string]*xrate.Limiter, b.max)
		}
		lim = xrate.NewLimiter(xrate.Every(p.Window/time.Duration(p.Limit)), p.Limit)
		b.buckets[k] = lim
	}
	return lim
}

func (b *localBuckets) take(p Policy, key string) Decision {
	lim := b.get(p, key)
	now := time.Now()
	r := lim.ReserveN(now, 1)
	d := Decision{Limit: p.Limit, ResetAfter: p.Window, Local: true}
	if !r.OK() {
		d.RetryAfter = p.Window
		return d
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		d.RetryAfter = delay
		return d
	}
	d.Allowed = true
	if tokens := int(lim.TokensAt(now)); tokens > 0 {
		d.Remaining = tokens
	}
	return d
}

func (b *localBuckets) peek(p Policy, key string) Decision {
	lim := b.get(p, key)
	d := Decision{Limit: p.Limit, ResetAfter: p.Window, Local: true}
	if tokens := lim.Tokens(); tokens >= 1 {
		d.Allowed = true
		d.Remaining = int(tokens)
		return d
	}
	d.RetryAfter = p.Window / time.Duration(p.Limit)
	return d
}

func (b *localBuckets) forget(p Policy, key string) {
	b.mu.Lock()
	delete(b.buckets, counterKey(p, key))
	b.mu.Unlock()
}
