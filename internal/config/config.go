package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	ShutdownTimeout    time.Duration

	Auth      AuthConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Obs       ObsConfig

	IdempotencyTTL time.Duration
}

// AuthConfig controls admin token verification. An empty secret leaves
// pricing routes open.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	AdminRole string
	TokenTTL  time.Duration
	ClockSkew time.Duration
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	MaxActive     int
}

// RateLimitConfig applies to scan and remove.
type RateLimitConfig struct {
	ScanMax    int
	ScanWindow time.Duration
}

// SecurityConfig toggles response hardening headers.
type SecurityConfig struct {
	HeadersEnabled     bool
	HSTSEnabled        bool
	HSTSMaxAge         int
	PprofBasicAuthUser string
	PprofBasicAuthPass string
}

// ObsConfig carries logging, metrics and tracing switches.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 64<<10)),
		ShutdownTimeout:    parseDuration(k.String("HTTP_SHUTDOWN_TIMEOUT"), "10s"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(k.String("AUTH_JWT_SECRET")),
			Issuer:    valueOrDefault(k.String("AUTH_JWT_ISSUER"), "pos-api"),
			Audience:  valueOrDefault(k.String("AUTH_JWT_AUDIENCE"), "pos-admin"),
			AdminRole: valueOrDefault(k.String("AUTH_ADMIN_ROLE"), "admin"),
			TokenTTL:  parseDuration(k.String("AUTH_TOKEN_TTL"), "1h"),
			ClockSkew: parseDuration(k.String("AUTH_CLOCK_SKEW"), "30s"),
		},
		Session: SessionConfig{
			IdleTTL:       parseDuration(k.String("SESSION_IDLE_TTL"), "30m"),
			SweepInterval: parseDuration(k.String("SESSION_SWEEP_INTERVAL"), "1m"),
			MaxActive:     parseInt(k.String("SESSION_MAX_ACTIVE"), 0),
		},
		RateLimit: RateLimitConfig{
			ScanMax:    parseInt(k.String("RATE_LIMIT_SCAN_MAX"), 120),
			ScanWindow: parseDuration(k.String("RATE_LIMIT_SCAN_WINDOW"), "1m"),
		},
		Security: SecurityConfig{
			HeadersEnabled:     parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
			HSTSEnabled:        parseBool(k.String("SECURITY_HSTS_ENABLED"), false),
			HSTSMaxAge:         parseInt(k.String("SECURITY_HSTS_MAX_AGE"), 31536000),
			PprofBasicAuthUser: strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofBasicAuthPass: strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "pos"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Session.IdleTTL <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TTL must be positive"))
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be positive"))
	}
	if c.Session.MaxActive < 0 {
		errs = append(errs, errors.New("SESSION_MAX_ACTIVE must not be negative"))
	}
	if c.BodyLimitBytes < 0 {
		errs = append(errs, errors.New("HTTP_BODY_LIMIT_BYTES must not be negative"))
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "production", "prod":
		return true
	}
	return false
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	d, err := time.ParseDuration(valueOrDefault(value, fallback))
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
// An empty value unsets the variable for the duration of the load.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key, value := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, value); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]*string) error {
	var errs []error
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %w", errors.Join(errs...))
	}
	return nil
}
