// Package config manages environment variables.
//
// It reads variables from the process environment (and a `.env` file
// when present), loads them into structured Go types, and validates
// that required values are present so they can be reused across the
// application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for optional config blocks (e.g. observability).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists it is loaded into the
	// process env before any variable is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

/*
	Two kinds of environment variables are read:

	- The deployment names the service has always used (PORT, DB_HOST,
	  EMAIL_USER, NETGSM_NUMBER, ...). They are mapped one by one through
	  envAliases.
	- Everything else uses the COACH_ prefix with dot notation for nesting,
	  e.g. COACH_RATE_LIMIT.MAX -> rate_limit.max -> Config.RateLimit.Max.

	Anything not matching either form is ignored.
*/

// EnvPrefix is the prefix for dotted configuration keys.
const EnvPrefix = "COACH_"

// envAliases maps the plain deployment variable names to koanf keys.
var envAliases = map[string]string{
	"PORT":            "server.port",
	"FRONTEND_URL":    "server.frontend_url",
	"DB_USER":         "database.user",
	"DB_HOST":         "database.host",
	"DB_DATABASE":     "database.name",
	"DB_PASSWORD":     "database.password",
	"DB_PORT":         "database.port",
	"EMAIL_USER":      "email.user",
	"EMAIL_PASS":      "email.pass",
	"NETGSM_NUMBER":   "sms.netgsm_number",
	"NETGSM_PASSWORD": "sms.netgsm_password",
}

// Config is the root configuration object for the application.
//
// Observability is a pointer because it is optional. If not provided,
// defaults are injected at load time.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	RateLimit     RateLimitConfig      `koanf:"rate_limit" validate:"required"`
	Email         EmailConfig          `koanf:"email" validate:"required"`
	SMS           SMSConfig            `koanf:"sms" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=local development staging production"`
}

// ServerConfig groups settings for the HTTP server runtime.
type ServerConfig struct {
	Port        string `koanf:"port" validate:"required"`
	FrontendURL string `koanf:"frontend_url" validate:"required,url"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required"`

	// RequestTimeout bounds the processing time of a single request.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`

	// BodyLimit is an echo size string ("1M", "512K").
	BodyLimit string `koanf:"body_limit" validate:"required"`

	CORS CORSConfig `koanf:"cors" validate:"required"`
}

// CORSConfig describes which browser origins may call the API.
//
// AllowedOrigins defaults to [FrontendURL] when left empty. Origins are
// stored without a trailing slash, the form browsers send.
type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods" validate:"required,min=1"`
	AllowedHeaders   []string `koanf:"allowed_headers" validate:"required,min=1"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age" validate:"gte=0"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"required"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password" validate:"required"`
	Name     string `koanf:"name" validate:"required"`
	SSLMode  string `koanf:"ssl_mode" validate:"required"`

	// Pool bounds.
	MaxConns int32 `koanf:"max_conns" validate:"required,gte=1"`
	MinConns int32 `koanf:"min_conns" validate:"gte=0,ltefield=MaxConns"`

	// AcquireTimeout bounds waiting for a free pooled connection,
	// CreateTimeout bounds dialing a new one and DestroyTimeout bounds
	// draining the pool on shutdown.
	AcquireTimeout time.Duration `koanf:"acquire_timeout" validate:"required"`
	CreateTimeout  time.Duration `koanf:"create_timeout" validate:"required"`
	DestroyTimeout time.Duration `koanf:"destroy_timeout" validate:"required"`

	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig contains Redis connection details.
// Address is typically "host:port".
type RedisConfig struct {
	Address  string `koanf:"address" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// AuthConfig stores authentication secrets and token/cookie policy.
type AuthConfig struct {
	JWTSecret    string        `koanf:"jwt_secret" validate:"required,min=32"`
	TokenIssuer  string        `koanf:"token_issuer" validate:"required"`
	TokenTTL     time.Duration `koanf:"token_ttl" validate:"required"`
	CookieName   string        `koanf:"cookie_name" validate:"required"`
	CookieDomain string        `koanf:"cookie_domain"`

	EmailVerificationTTL time.Duration `koanf:"email_verification_ttl" validate:"required"`
	PasswordResetTTL     time.Duration `koanf:"password_reset_ttl" validate:"required"`
	PhoneCodeTTL         time.Duration `koanf:"phone_code_ttl" validate:"required"`
	PhoneCodeMaxAttempts int           `koanf:"phone_code_max_attempts" validate:"required,gte=1"`
}

// RateLimitConfig caps requests per client within a window.
type RateLimitConfig struct {
	Enabled bool          `koanf:"enabled"`
	Max     int           `koanf:"max" validate:"required,gte=1"`
	Window  time.Duration `koanf:"window" validate:"required"`
	Store   string        `koanf:"store" validate:"required,oneof=memory redis"`
}

// EmailConfig configures the transactional email sender.
//
// User is the sender address, Pass is the provider API key.
type EmailConfig struct {
	User     string `koanf:"user" validate:"required,email"`
	Pass     string `koanf:"pass" validate:"required"`
	FromName string `koanf:"from_name" validate:"required"`
}

// SMSConfig configures the NetGSM gateway.
type SMSConfig struct {
	NetGSMNumber   string        `koanf:"netgsm_number" validate:"required"`
	NetGSMPassword string        `koanf:"netgsm_password" validate:"required"`
	Header         string        `koanf:"header" validate:"required"`
	BaseURL        string        `koanf:"base_url" validate:"required,url"`
	Timeout        time.Duration `koanf:"timeout" validate:"required"`
}

// defaults are loaded before the environment so every optional knob has a value.
func defaults() map[string]any {
	return map[string]any{
		"primary.env": "development",

		"server.port":                   "5000",
		"server.read_timeout":           "15s",
		"server.write_timeout":          "45s",
		"server.idle_timeout":           "60s",
		"server.shutdown_timeout":       "20s",
		"server.request_timeout":        "30s",
		"server.body_limit":             "1M",
		"server.cors.allowed_methods":   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		"server.cors.allowed_headers":   []string{"Content-Type", "Authorization", "X-Request-ID"},
		"server.cors.allow_credentials": true,
		"server.cors.max_age":           86400,

		"database.port":               5432,
		"database.ssl_mode":           "disable",
		"database.max_conns":          10,
		"database.min_conns":          2,
		"database.acquire_timeout":    "30s",
		"database.create_timeout":     "30s",
		"database.destroy_timeout":    "5s",
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.address": "localhost:6379",

		"auth.token_issuer":            "coachpanel",
		"auth.token_ttl":               "24h",
		"auth.cookie_name":             "access_token",
		"auth.email_verification_ttl":  "24h",
		"auth.password_reset_ttl":      "1h",
		"auth.phone_code_ttl":          "5m",
		"auth.phone_code_max_attempts": 5,

		"rate_limit.enabled": true,
		"rate_limit.max":     100,
		"rate_limit.window":  "15m",
		"rate_limit.store":   "memory",

		"email.from_name": "CoachPanel",

		"sms.header":   "COACHPANEL",
		"sms.base_url": "https://api.netgsm.com.tr",
		"sms.timeout":  "10s",

		// Partial observability overrides merge with these instead of
		// replacing the whole block.
		"observability.logging.format":                        "json",
		"observability.logging.slow_query_threshold":          "100ms",
		"observability.new_relic.app_log_forwarding_enabled":  true,
		"observability.new_relic.distributed_tracing_enabled": true,
		"observability.health_checks.enabled":                 true,
		"observability.health_checks.timeout":                 "5s",
		"observability.health_checks.checks":                  []string{"database", "redis"},
	}
}

// envKey converts an environment variable name into a koanf key.
// Returning "" tells the env provider to skip the variable.
func envKey(name string) string {
	if key, ok := envAliases[name]; ok {
		return key
	}
	if strings.HasPrefix(name, EnvPrefix) {
		return strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	}
	return ""
}

// LoadConfig loads configuration from defaults and environment variables,
// unmarshals it into Config, validates it, applies derived defaults and
// returns the result.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("could not load config defaults: %w", err)
	}

	// An empty prefix hands every variable to envKey, which filters them.
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	// The frontend is always an allowed origin unless origins were listed explicitly.
	if len(mainConfig.Server.CORS.AllowedOrigins) == 0 && mainConfig.Server.FrontendURL != "" {
		mainConfig.Server.CORS.AllowedOrigins = []string{mainConfig.Server.FrontendURL}
	}
	mainConfig.Server.CORS.AllowedOrigins = normalizeOrigins(mainConfig.Server.CORS.AllowedOrigins)

	if err := validator.New().Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}

	// Service name and environment are not user-configurable.
	mainConfig.Observability.ServiceName = "coachpanel"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}

// IsProduction reports whether the primary environment is production.
func (c *Config) IsProduction() bool {
	return c.Primary.Env == "production"
}

// normalizeOrigins trims whitespace and trailing slashes and drops empty
// entries, so configured origins compare equal to Origin headers.
func normalizeOrigins(origins []string) []string {
	normalized := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			normalized = append(normalized, origin)
		}
	}
	return normalized
}
