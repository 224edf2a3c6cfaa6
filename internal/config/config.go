package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
	Limits    LimitsConfig     `yaml:"limits"`
	CORS      CORSConfig       `yaml:"cors"`
	Auth      AuthConfig       `yaml:"auth"`
	RateLimit RateLimitBackend `yaml:"rate_limit"`
	Routes    []RouteConfig    `yaml:"routes" validate:"unique=Name,dive"`
}

type ServerConfig struct {
	Addr                     string   `yaml:"addr" validate:"required"`
	TrustedProxies           []string `yaml:"trusted_proxies" validate:"dive,cidr|ip"`
	MaxHeaderBytes           int      `yaml:"max_header_bytes" validate:"gte=0"`
	MaxBodyBytes             int64    `yaml:"max_body_bytes" validate:"gte=0"`
	ReadTimeoutSeconds       int      `yaml:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeoutSeconds      int      `yaml:"write_timeout_seconds" validate:"gte=0"`
	IdleTimeoutSeconds       int      `yaml:"idle_timeout_seconds" validate:"gte=0"`
	ReadHeaderTimeoutSeconds int      `yaml:"read_header_timeout_seconds" validate:"gte=0"`
	ShutdownTimeoutSeconds   int      `yaml:"shutdown_timeout_seconds" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// LimitsConfig bounds the simulated behaviors. The delay and stream clamps
// may only be lowered below their defaults.
type LimitsConfig struct {
	MaxDelaySeconds float64 `yaml:"max_delay_seconds" validate:"gt=0,lte=10"`
	MaxStreamLines  int     `yaml:"max_stream_lines" validate:"gt=0,lte=100"`
	MaxRedirects    int     `yaml:"max_redirects" validate:"gt=0"`
}

type CORSConfig struct {
	Enabled        *bool    `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxAgeSeconds  int      `yaml:"max_age_seconds" validate:"gte=0"`
}

// IsEnabled defaults to true when the key is absent.
func (c CORSConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type AuthConfig struct {
	// Optional. When set, a valid HS256 bearer token identifies the caller
	// for user scoped rate limits. Requests are never rejected for auth.
	HMACSecret string `yaml:"hmac_secret"`
}

type RateLimitBackend struct {
	Enabled bool           `yaml:"enabled"`
	Backend string         `yaml:"backend" validate:"oneof=redis memory"`
	RPS     float64        `yaml:"rps" validate:"gte=0"`
	Burst   int            `yaml:"burst" validate:"gte=0"`
	Scope   string         `yaml:"scope" validate:"oneof=ip user"`
	Redis   RedisConfig    `yaml:"redis"`
	Memory  MemoryRLConfig `yaml:"memory"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type MemoryRLConfig struct {
	CleanupSeconds int `yaml:"cleanup_seconds" validate:"gte=0"`
	TTLSeconds     int `yaml:"ttl_seconds" validate:"gte=0"`
}

type RouteConcurrency struct {
	MaxInFlight int `yaml:"max_in_flight" validate:"gte=0"`
}

// RouteConfig overrides limits for one named route.
type RouteConfig struct {
	Name        string           `yaml:"name" validate:"required"`
	RateLimit   RouteRLConfig    `yaml:"rate_limit"`
	Concurrency RouteConcurrency `yaml:"concurrency"`
}

// RouteRLConfig replaces the global rate limit for a route. A nil Enabled
// inherits the global setting; zero RPS, Burst or Scope inherit the global
// values.
type RouteRLConfig struct {
	Enabled *bool   `yaml:"enabled"`
	RPS     float64 `yaml:"rps" validate:"gte=0"`
	Burst   int     `yaml:"burst" validate:"gte=0"`
	Scope   string  `yaml:"scope" validate:"omitempty,oneof=ip user"`
}

// Load reads, defaults and validates the YAML file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file read. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when every key is omitted.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = 1 << 20 // 1 MiB
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20 // 1 MiB
	}
	if cfg.Server.ReadHeaderTimeoutSeconds == 0 {
		cfg.Server.ReadHeaderTimeoutSeconds = 5
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		// Must outlast the longest delay plus a full stream.
		cfg.Server.WriteTimeoutSeconds = 60
	}
	if cfg.Server.IdleTimeoutSeconds == 0 {
		cfg.Server.IdleTimeoutSeconds = 60
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 15
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	if cfg.Limits.MaxDelaySeconds == 0 {
		cfg.Limits.MaxDelaySeconds = 10
	}
	if cfg.Limits.MaxStreamLines == 0 {
		cfg.Limits.MaxStreamLines = 100
	}
	if cfg.Limits.MaxRedirects == 0 {
		cfg.Limits.MaxRedirects = 100
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.CORS.MaxAgeSeconds == 0 {
		cfg.CORS.MaxAgeSeconds = 3600
	}

	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = "memory"
	}
	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))
	if cfg.RateLimit.Scope == "" {
		cfg.RateLimit.Scope = "ip"
	}
	cfg.RateLimit.Scope = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Scope))
	if cfg.RateLimit.Memory.TTLSeconds == 0 {
		cfg.RateLimit.Memory.TTLSeconds = 300
	}
	if cfg.RateLimit.Memory.CleanupSeconds == 0 {
		cfg.RateLimit.Memory.CleanupSeconds = 60
	}
	for i := range cfg.Routes {
		r := &cfg.Routes[i]
		r.Name = strings.TrimSpace(r.Name)
		r.RateLimit.Scope = strings.ToLower(strings.TrimSpace(r.RateLimit.Scope))
	}
}
