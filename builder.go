package goSession

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/store"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine.
//
// Builder instances are configured during initialization and used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	kv     store.KV

	resolver  *identity.Resolver
	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the engine with a go-redis client. Keys are namespaced by
// Config.Store.Prefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore backs the engine with an arbitrary KV. It takes precedence over
// WithRedis and is responsible for its own namespacing.
func (b *Builder) WithStore(kv store.KV) *Builder {
	b.kv = kv
	return b
}

// WithIdentity enables LoginWithCode.
func (b *Builder) WithIdentity(r *identity.Resolver) *Builder {
	b.resolver = r
	return b
}

// WithLogger sets the logger used for best-effort failures.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination. It only takes effect when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verification latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source for token issuance and session
// bookkeeping. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kv := b.kv
	if kv == nil {
		if b.redis == nil {
			return nil, errors.New("store required: call WithRedis or WithStore")
		}
		kv = store.NewRedisKV(b.redis, cfg.Store.Prefix)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		kv:         kv,
		sessions:   session.NewStore(kv),
		jwtManager: jm,
		limiter: rate.New(kv, rate.Config{
			FailOpen:     cfg.RateLimit.FailOpen,
			MaxLocalKeys: cfg.RateLimit.MaxLocalKeys,
		}),
		blocklist: rate.NewBlocklist(kv),
		resolver:  b.resolver,
		logger:    logger.With("component", "gosession"),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		now:     now,
	}
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
