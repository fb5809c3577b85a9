// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every component of the
// health assistant backend.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, gemini, maps, etc.)
// - Defaults that start a working server with nothing but API keys in the environment
// - Validation catches misconfigurations before the listener opens
package models

import (
	"errors"
	"fmt"
	"time"
)

// Rate limit store type constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server, CORS and upload settings
// - Gemini: generative model and API key pool
// - Maps: places/geocoding provider
// - Security: per-client rate limiting and admin access
// - Logging: structured logging and output configuration
// - Metrics / Observability: Prometheus and OpenTelemetry
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Gemini        GeminiConfig        `yaml:"gemini" json:"gemini"`
	Maps          MapsConfig          `yaml:"maps" json:"maps"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port           int           `yaml:"port" json:"port"`
	Host           string        `yaml:"host" json:"host"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled     bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile    string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile     string        `yaml:"tls_key_file" json:"tls_key_file"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" json:"max_upload_bytes"`
	MaxJSONBytes   int64         `yaml:"max_json_bytes" json:"max_json_bytes"`
	CORS           CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

// GeminiConfig controls the generative model and the credential pool that
// feeds it. Keys listed in APIKeys come first; keys discovered from
// <KeyEnvPrefix>1 .. <KeyEnvPrefix>MaxKeys are appended in numeric order.
type GeminiConfig struct {
	Model             string        `yaml:"model" json:"model"`
	APIKeys           []string      `yaml:"api_keys" json:"-"`
	KeyEnvPrefix      string        `yaml:"key_env_prefix" json:"key_env_prefix"`
	MaxKeys           int           `yaml:"max_keys" json:"max_keys"`
	CapacityPerWindow int           `yaml:"capacity_per_window" json:"capacity_per_window"`
	Window            time.Duration `yaml:"window" json:"window"`
	ResetSchedule     string        `yaml:"reset_schedule" json:"reset_schedule"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

type MapsConfig struct {
	APIKey           string        `yaml:"api_key" json:"-"`
	DefaultRadiusKm  float64       `yaml:"default_radius_km" json:"default_radius_km"`
	MaxRadiusKm      float64       `yaml:"max_radius_km" json:"max_radius_km"`
	MaxResults       int           `yaml:"max_results" json:"max_results"`
	GeocodeCacheSize int           `yaml:"geocode_cache_size" json:"geocode_cache_size"`
	GeocodeCacheTTL  time.Duration `yaml:"geocode_cache_ttl" json:"geocode_cache_ttl"`
	RequestTimeout   time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

type SecurityConfig struct {
	AdminToken string          `yaml:"admin_token" json:"-"`
	RateLimit  RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig holds the per-client throttling tiers. General applies to
// every route; Analysis and Hospital are stacked on their route groups.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Store           string        `yaml:"store" json:"store"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	General         RateTier      `yaml:"general" json:"general"`
	Analysis        RateTier      `yaml:"analysis" json:"analysis"`
	Hospital        RateTier      `yaml:"hospital" json:"hospital"`
	Redis           RedisConfig   `yaml:"redis" json:"redis"`
}

type RateTier struct {
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Window      time.Duration `yaml:"window" json:"window"`
	Message     string        `yaml:"message" json:"message"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with working defaults.
//
// Default Values Rationale:
// - Port 5000 and permissive CORS: the browser client is served from another origin
// - 20 selections per key per 60s window: stays under the model's free-tier quota
// - Rate limit tiers mirror what the public endpoints can absorb per client
// - Metrics on a separate port so the public listener never exposes them
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           5000,
			Host:           "0.0.0.0",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   90 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxUploadBytes: 10 << 20,
			MaxJSONBytes:   100 << 10,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:         86400,
			},
		},
		Gemini: GeminiConfig{
			Model:             "gemini-2.5-flash",
			KeyEnvPrefix:      "gemini_API_KEY_",
			MaxKeys:           20,
			CapacityPerWindow: 20,
			Window:            60 * time.Second,
			RequestTimeout:    30 * time.Second,
		},
		Maps: MapsConfig{
			DefaultRadiusKm:  15,
			MaxRadiusKm:      50,
			MaxResults:       10,
			GeocodeCacheSize: 1024,
			GeocodeCacheTTL:  time.Hour,
			RequestTimeout:   15 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:         true,
				Store:           RateLimitStoreMemory,
				CleanupInterval: 5 * time.Minute,
				General: RateTier{
					MaxRequests: 100,
					Window:      15 * time.Minute,
					Message:     "Too many requests from this IP, please try again later.",
				},
				Analysis: RateTier{
					MaxRequests: 10,
					Window:      15 * time.Minute,
					Message:     "Too many analysis requests from this IP, please try again later.",
				},
				Hospital: RateTier{
					MaxRequests: 50,
					Window:      15 * time.Minute,
					Message:     "Too many requests from this IP, please try again later.",
				},
				Redis: RedisConfig{
					KeyPrefix: "healthassist:ratelimit:",
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "healthassist",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Gemini.Validate(); err != nil {
		return fmt.Errorf("invalid gemini config: %w", err)
	}

	if err := c.Maps.Validate(); err != nil {
		return fmt.Errorf("invalid maps config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}

	if sc.MaxJSONBytes <= 0 {
		return errors.New("max JSON bytes must be positive")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (gc *GeminiConfig) Validate() error {
	if gc.Model == "" {
		return errors.New("model cannot be empty")
	}
	if gc.MaxKeys <= 0 {
		return errors.New("max keys must be positive")
	}
	if gc.CapacityPerWindow <= 0 {
		return errors.New("capacity per window must be positive")
	}
	if gc.Window <= 0 {
		return errors.New("window must be positive")
	}
	if gc.RequestTimeout < 0 {
		return errors.New("request timeout cannot be negative")
	}
	return nil
}

func (mc *MapsConfig) Validate() error {
	if mc.MaxRadiusKm <= 0 {
		return errors.New("max radius must be positive")
	}
	if mc.DefaultRadiusKm <= 0 || mc.DefaultRadiusKm > mc.MaxRadiusKm {
		return fmt.Errorf("default radius must be between 0 and %g km", mc.MaxRadiusKm)
	}
	if mc.MaxResults <= 0 {
		return errors.New("max results must be positive")
	}
	if mc.GeocodeCacheSize < 0 {
		return errors.New("geocode cache size cannot be negative")
	}
	return nil
}

func (sec *SecurityConfig) Validate() error {
	rl := sec.RateLimit
	if !rl.Enabled {
		return nil
	}

	switch rl.Store {
	case RateLimitStoreMemory:
		if rl.CleanupInterval <= 0 {
			return errors.New("cleanup interval must be positive for memory rate limiting")
		}
	case RateLimitStoreRedis:
		if rl.Redis.Addr == "" {
			return errors.New("Redis address is required when rate limit store is redis")
		}
	default:
		return fmt.Errorf("invalid rate limit store: %s", rl.Store)
	}

	for name, tier := range map[string]RateTier{"general": rl.General, "analysis": rl.Analysis, "hospital": rl.Hospital} {
		if tier.MaxRequests <= 0 {
			return fmt.Errorf("%s tier: max requests must be positive", name)
		}
		if tier.Window <= 0 {
			return fmt.Errorf("%s tier: window must be positive", name)
		}
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !oneOf(lc.Level, validLevels) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	if !oneOf(lc.Format, validFormats) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	if !oneOf(lc.Output, validOutputs) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty when tracing is enabled")
	}
	if !oneOf(oc.Tracing.Exporter, []string{"stdout", "otlp"}) {
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}
	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required when exporter is otlp")
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
