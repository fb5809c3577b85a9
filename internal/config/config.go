package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"healthassist/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every service-specific environment override.
const EnvPrefix = "HEALTHASSIST_"

// Load builds the configuration in layers: defaults, then dotenv files
// (".env" when none are named), then the YAML file, then environment
// variables. Dotenv values never override variables already set in the
// process environment.
func Load(configPath string, envFiles ...string) (*models.Config, error) {
	if err := loadDotenv(envFiles); err != nil {
		return nil, err
	}

	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadDotenv(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files %v: %w", files, err)
	}
	return nil
}

func loadFromFile(config *models.Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", filePath)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment applies HEALTHASSIST_* overrides. PORT and
// gmaps_API_KEY are honoured too so existing deployments keep working.
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	setInt(&config.Server.Port, "PORT")
	setInt(&config.Server.Port, EnvPrefix+"PORT")
	setString(&config.Server.Host, EnvPrefix+"HOST")
	setDuration(&config.Server.ReadTimeout, EnvPrefix+"READ_TIMEOUT")
	setDuration(&config.Server.WriteTimeout, EnvPrefix+"WRITE_TIMEOUT")
	setDuration(&config.Server.IdleTimeout, EnvPrefix+"IDLE_TIMEOUT")
	setBool(&config.Server.TLSEnabled, EnvPrefix+"TLS_ENABLED")
	setString(&config.Server.TLSCertFile, EnvPrefix+"TLS_CERT_FILE")
	setString(&config.Server.TLSKeyFile, EnvPrefix+"TLS_KEY_FILE")
	if v := os.Getenv(EnvPrefix + "MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Server.MaxUploadBytes = n
		}
	}
	if v := os.Getenv(EnvPrefix + "MAX_JSON_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Server.MaxJSONBytes = n
		}
	}
	setBool(&config.Server.CORS.Enabled, EnvPrefix+"CORS_ENABLED")
	if origins := os.Getenv(EnvPrefix + "CORS_ALLOWED_ORIGINS"); origins != "" {
		config.Server.CORS.AllowedOrigins = splitAndTrim(origins, ",")
	}

	// Gemini configuration
	setString(&config.Gemini.Model, EnvPrefix+"GEMINI_MODEL")
	setString(&config.Gemini.KeyEnvPrefix, EnvPrefix+"GEMINI_KEY_ENV_PREFIX")
	setInt(&config.Gemini.MaxKeys, EnvPrefix+"GEMINI_MAX_KEYS")
	setInt(&config.Gemini.CapacityPerWindow, EnvPrefix+"GEMINI_CAPACITY_PER_WINDOW")
	setDuration(&config.Gemini.Window, EnvPrefix+"GEMINI_WINDOW")
	setString(&config.Gemini.ResetSchedule, EnvPrefix+"GEMINI_RESET_SCHEDULE")
	setDuration(&config.Gemini.RequestTimeout, EnvPrefix+"GEMINI_REQUEST_TIMEOUT")

	// Maps configuration
	setString(&config.Maps.APIKey, "gmaps_API_KEY")
	setString(&config.Maps.APIKey, EnvPrefix+"MAPS_API_KEY")
	setFloat(&config.Maps.DefaultRadiusKm, EnvPrefix+"MAPS_DEFAULT_RADIUS_KM")
	setFloat(&config.Maps.MaxRadiusKm, EnvPrefix+"MAPS_MAX_RADIUS_KM")
	setInt(&config.Maps.MaxResults, EnvPrefix+"MAPS_MAX_RESULTS")
	setInt(&config.Maps.GeocodeCacheSize, EnvPrefix+"MAPS_GEOCODE_CACHE_SIZE")
	setDuration(&config.Maps.GeocodeCacheTTL, EnvPrefix+"MAPS_GEOCODE_CACHE_TTL")

	// Security configuration
	setString(&config.Security.AdminToken, EnvPrefix+"ADMIN_TOKEN")
	setBool(&config.Security.RateLimit.Enabled, EnvPrefix+"RATE_LIMIT_ENABLED")
	setString(&config.Security.RateLimit.Store, EnvPrefix+"RATE_LIMIT_STORE")
	setString(&config.Security.RateLimit.Redis.Addr, EnvPrefix+"REDIS_ADDR")
	setString(&config.Security.RateLimit.Redis.Password, EnvPrefix+"REDIS_PASSWORD")
	setInt(&config.Security.RateLimit.Redis.DB, EnvPrefix+"REDIS_DB")

	// Logging configuration
	setString(&config.Logging.Level, EnvPrefix+"LOG_LEVEL")
	setString(&config.Logging.Format, EnvPrefix+"LOG_FORMAT")
	setString(&config.Logging.Output, EnvPrefix+"LOG_OUTPUT")
	setString(&config.Logging.FilePath, EnvPrefix+"LOG_FILE_PATH")

	// Metrics and tracing
	setBool(&config.Metrics.Enabled, EnvPrefix+"METRICS_ENABLED")
	setString(&config.Metrics.Path, EnvPrefix+"METRICS_PATH")
	setInt(&config.Metrics.Port, EnvPrefix+"METRICS_PORT")
	setBool(&config.Observability.Tracing.Enabled, EnvPrefix+"TRACING_ENABLED")
	setString(&config.Observability.Tracing.Exporter, EnvPrefix+"TRACING_EXPORTER")
	setString(&config.Observability.Tracing.OTLPEndpoint, EnvPrefix+"OTLP_ENDPOINT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitAndTrim(s, delim string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, delim) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// SaveExample writes the default configuration as YAML, for operators to
// start from. gemini.reset_schedule stays empty so keys reset lazily per
// window; set a cron expression such as "@every 1m" only for hard resets.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
