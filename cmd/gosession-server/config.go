package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	goSession "github.com/MrEthical07/goSession"
)

const envProduction = "production"

// Config is the server configuration. Sources, highest priority first:
// --config, CONFIG_PATH, environment only. Environment variables always
// overlay the file.
type Config struct {
	Env     string        `yaml:"env" env:"APP_ENV" env-default:"development"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Redis   RedisConfig   `yaml:"redis"`
	Mongo   MongoConfig   `yaml:"mongo"`
	Google  GoogleConfig  `yaml:"google"`
	Auth    AuthConfig    `yaml:"auth"`
	CORS    CORSConfig    `yaml:"cors"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type RedisConfig struct {
	URL    string `yaml:"url" env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
	Prefix string `yaml:"prefix" env:"REDIS_PREFIX"`
}

type MongoConfig struct {
	// URI is optional; without it users live in memory.
	URI      string `yaml:"uri" env:"MONGO_URI"`
	Database string `yaml:"database" env:"MONGO_DB" env-default:"gosession"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `yaml:"redirect_url" env:"GOOGLE_REDIRECT_URL" env-default:"postmessage"`
}

type AuthConfig struct {
	JWTSecret            string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTRefreshSecret     string        `yaml:"jwt_refresh_secret" env:"JWT_REFRESH_SECRET"`
	AccessTTL            time.Duration `yaml:"access_ttl" env:"ACCESS_TTL" env-default:"15m"`
	RefreshTTL           time.Duration `yaml:"refresh_ttl" env:"REFRESH_TTL" env-default:"168h"`
	MaxSessions          int           `yaml:"max_sessions" env:"MAX_SESSIONS" env-default:"5"`
	IdleTimeout          time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT" env-default:"0s"`
	FingerprintGrace     time.Duration `yaml:"fingerprint_grace" env:"FINGERPRINT_GRACE" env-default:"30s"`
	RequireFingerprint   bool          `yaml:"require_fingerprint" env:"REQUIRE_FINGERPRINT" env-default:"false"`
	RotateRefreshToken   bool          `yaml:"rotate_refresh_token" env:"ROTATE_REFRESH_TOKEN" env-default:"false"`
	RequireVerifiedEmail bool          `yaml:"require_verified_email" env:"REQUIRE_VERIFIED_EMAIL" env-default:"false"`
	RateLimitFailOpen    bool          `yaml:"rate_limit_fail_open" env:"RATE_LIMIT_FAIL_OPEN" env-default:"false"`
	BlockTTL             time.Duration `yaml:"block_ttl" env:"BLOCK_TTL" env-default:"1h"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:3000"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Audit   bool `yaml:"audit" env:"AUDIT_ENABLED" env-default:"true"`
}

// Production reports whether the deployment runs in production mode.
func (c *Config) Production() bool { return c.Env == envProduction }

// LoadConfig reads path, then CONFIG_PATH, then falls back to the
// environment alone.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &cfg, nil
}

// EngineConfig maps the server settings onto the engine configuration.
func (c *Config) EngineConfig() goSession.Config {
	ec := goSession.DefaultConfig()

	ec.JWT.AccessSecret = []byte(c.Auth.JWTSecret)
	if c.Auth.JWTRefreshSecret != "" {
		ec.JWT.RefreshSecret = []byte(c.Auth.JWTRefreshSecret)
	}
	ec.JWT.AccessTTL = c.Auth.AccessTTL
	ec.JWT.RefreshTTL = c.Auth.RefreshTTL

	ec.Session.MaxConcurrentSessions = c.Auth.MaxSessions
	ec.Session.IdleTimeout = c.Auth.IdleTimeout
	ec.Session.FingerprintGrace = c.Auth.FingerprintGrace

	ec.Security.ProductionMode = c.Production()
	ec.Security.RequireFingerprint = c.Auth.RequireFingerprint
	ec.Security.RotateRefreshToken = c.Auth.RotateRefreshToken
	ec.Security.RequireVerifiedEmail = c.Auth.RequireVerifiedEmail

	ec.RateLimit.FailOpen = c.Auth.RateLimitFailOpen
	if c.Auth.BlockTTL > 0 {
		ec.RateLimit.BlockTTL = c.Auth.BlockTTL
	}

	ec.Store.Prefix = c.Redis.Prefix
	ec.Audit.Enabled = c.Metrics.Audit
	ec.Metrics.Enabled = c.Metrics.Enabled
	ec.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	return ec
}
