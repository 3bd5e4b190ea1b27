package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/userstore"
)

const startupTimeout = 10 * time.Second

func newLogger(cfg *Config) *slog.Logger {
	return logging.New(logging.Config{
		Service: "gosession-server",
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stdout,
	})
}

// connectRedis parses REDIS_URL and fails fast when the server is
// unreachable.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

type userBackend interface {
	userstore.Store
	userstore.ConnectionStore
}

// openUsers connects to Mongo, or returns an in-memory store when no URI is
// configured. The returned close func is never nil.
func openUsers(ctx context.Context, cfg MongoConfig, log *slog.Logger) (userBackend, func(context.Context) error, error) {
	if cfg.URI == "" {
		log.Warn("MONGO_URI not set; users are kept in memory and lost on restart")
		return userstore.NewMemory(), func(context.Context) error { return nil }, nil
	}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	m, err := userstore.NewMongo(ctx, userstore.MongoConfig{URI: cfg.URI, Database: cfg.Database})
	if err != nil {
		return nil, nil, err
	}
	return m, m.Close, nil
}

// newResolver wires the Google provider. It returns nil without client
// credentials, which leaves the login routes answering 500.
func newResolver(cfg *Config, users userstore.Store, log *slog.Logger) (*identity.Resolver, error) {
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		log.Warn("google client credentials not set; login is disabled")
		return nil, nil
	}
	provider, err := identity.NewGoogleProvider(identity.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	})
	if err != nil {
		return nil, err
	}
	return identity.NewResolver(provider, users, identity.ResolverConfig{
		RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
	}), nil
}

// newEngine builds the engine. Audit events go to the process logger.
func newEngine(cfg *Config, rdb redis.UniversalClient, resolver *identity.Resolver, log *slog.Logger) (*goSession.Engine, error) {
	b := goSession.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithLogger(log).
		WithAuditSink(goSession.NewSlogSink(log.With("component", "audit")))
	if resolver != nil {
		b = b.WithIdentity(resolver)
	}
	return b.Build()
}

// logSecurityReport writes the configuration posture at startup.
func logSecurityReport(engine *goSession.Engine, log *slog.Logger) {
	report := engine.SecurityReport()
	for _, f := range report.Findings {
		level := slog.LevelInfo
		switch f.Severity.String() {
		case "high":
			level = slog.LevelError
		case "warn":
			level = slog.LevelWarn
		}
		log.Log(context.Background(), level, "security posture", "finding", f.Code, "detail", f.Message)
	}
}
