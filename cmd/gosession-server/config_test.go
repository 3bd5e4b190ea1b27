package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
)

func TestLoadConfig_EnvDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Env)
	require.False(t, cfg.Production())
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, 10*time.Second, cfg.HTTP.ReadTimeout)
	require.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	require.Equal(t, "gosession", cfg.Mongo.Database)
	require.Empty(t, cfg.Mongo.URI)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 5, cfg.Auth.MaxSessions)
	require.Zero(t, cfg.Auth.IdleTimeout)
	require.Equal(t, 30*time.Second, cfg.Auth.FingerprintGrace)
	require.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "production")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")
	t.Setenv("ROTATE_REFRESH_TOKEN", "true")
	t.Setenv("ACCESS_TTL", "5m")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.True(t, cfg.Production())
	require.Equal(t, ":9000", cfg.HTTP.Addr)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	require.True(t, cfg.Auth.RotateRefreshToken)
	require.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: staging
http:
  addr: ":7070"
redis:
  url: "redis://cache:6379/2"
  prefix: "stg"
mongo:
  uri: "mongodb://mongo:27017"
  database: "sessions"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  max_sessions: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, ":7070", cfg.HTTP.Addr)
	require.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	require.Equal(t, "stg", cfg.Redis.Prefix)
	require.Equal(t, "sessions", cfg.Mongo.Database)
	require.Equal(t, 3, cfg.Auth.MaxSessions)
	require.Equal(t, "debug", cfg.Log.Level)
	// Unset fields still take their defaults.
	require.Equal(t, 15*time.Second, cfg.HTTP.WriteTimeout)
}

func TestLoadConfig_ConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":6060\"\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, ":6060", cfg.HTTP.Addr)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEngineConfig(t *testing.T) {
	cfg := &Config{
		Env:   envProduction,
		Redis: RedisConfig{Prefix: "p"},
		Auth: AuthConfig{
			JWTSecret:          strings.Repeat("a", 32),
			JWTRefreshSecret:   strings.Repeat("b", 32),
			AccessTTL:          10 * time.Minute,
			RefreshTTL:         48 * time.Hour,
			MaxSessions:        2,
			IdleTimeout:        time.Hour,
			FingerprintGrace:   10 * time.Second,
			RequireFingerprint: true,
			RateLimitFailOpen:  true,
			BlockTTL:           time.Hour,
		},
		Metrics: MetricsConfig{Enabled: true, Audit: true},
	}

	ec := cfg.EngineConfig()
	require.NoError(t, ec.Validate())
	require.True(t, ec.Security.ProductionMode)
	require.True(t, ec.Security.RequireFingerprint)
	require.Equal(t, 10*time.Minute, ec.JWT.AccessTTL)
	require.Equal(t, []byte(strings.Repeat("b", 32)), ec.JWT.RefreshSecret)
	require.Equal(t, 2, ec.Session.MaxConcurrentSessions)
	require.Equal(t, time.Hour, ec.Session.IdleTimeout)
	require.Equal(t, 10*time.Second, ec.Session.FingerprintGrace)
	require.True(t, ec.RateLimit.FailOpen)
	require.Equal(t, "p", ec.Store.Prefix)
	require.True(t, ec.Metrics.Enabled)
	require.True(t, ec.Audit.Enabled)
	// Cookie names are untouched; the engine resolves prefixes itself.
	require.Equal(t, goSession.DefaultConfig().Cookies.AccessName, ec.Cookies.AccessName)
}

func TestEngineConfig_WeakSecretFailsValidation(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{JWTSecret: "short", AccessTTL: time.Minute, RefreshTTL: time.Hour}}
	ec := cfg.EngineConfig()
	require.Error(t, ec.Validate())
}

func TestPrintReport(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{
		JWTSecret:  strings.Repeat("a", 32),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}}
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, goSession.ReportFor(cfg.EngineConfig())))

	out := buf.String()
	require.Contains(t, out, "signing algorithm")
	require.Contains(t, out, "HS512")
	require.Contains(t, out, "production mode")
}

func TestPercentile(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}
	require.Equal(t, time.Millisecond, percentile(samples, 0))
	require.Equal(t, 50*time.Millisecond, percentile(samples, 50))
	require.Equal(t, 99*time.Millisecond, percentile(samples, 99))
	require.Equal(t, 100*time.Millisecond, percentile(samples, 100))
	require.Zero(t, percentile(nil, 50))

	s := computeStats(time.Second, samples, 2)
	require.Equal(t, 100, s.ops)
	require.Equal(t, int64(2), s.failures)
	require.InDelta(t, 100.0, s.opsPerS, 0.001)
}

func TestRunLoadtest_Miniredis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	var buf bytes.Buffer
	err := runLoadtest(t.Context(), &buf, loadtestOptions{
		sessions:    20,
		concurrency: 4,
		ops:         40,
		prefix:      "lt",
		rotate:      true,
	})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "using miniredis")
	require.Contains(t, out, "login: ops=20 failures=0")
	require.Contains(t, out, "verify: ops=40 failures=0")
	require.Contains(t, out, "refresh: ops=40 failures=0")
}
