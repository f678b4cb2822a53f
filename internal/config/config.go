// Package config loads casedesk settings from a YAML file, a .env file and
// CASEDESK_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cookie   CookieConfig   `yaml:"cookie"`
	Builder  BuilderConfig  `yaml:"builder"`
	Activity ActivityConfig `yaml:"activity"`
	Locale   LocaleConfig   `yaml:"locale"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	WSOrigins       []string `yaml:"ws_origins"` // origin patterns allowed on /v1/live
	EventBuffer     int      `yaml:"event_buffer"`
}

// APIConfig points at the external REST API.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each API call. Empty or "0" means no local timeout.
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// CookieConfig configures the auth cookie.
type CookieConfig struct {
	Name   string `yaml:"name"`
	Secure bool   `yaml:"secure"`
	MaxAge string `yaml:"max_age"`
}

// BuilderConfig configures template builder sessions.
type BuilderConfig struct {
	SessionMaxAge   string `yaml:"session_max_age"`
	SessionIdle     string `yaml:"session_idle"`
	CleanupInterval string `yaml:"cleanup_interval"`
}

// ActivityConfig sizes the in-memory activity feed.
type ActivityConfig struct {
	Capacity int `yaml:"capacity"`
}

// LocaleConfig configures message localization.
type LocaleConfig struct {
	Default string `yaml:"default"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: "10s",
			EventBuffer:     256,
		},
		API: APIConfig{
			BaseURL: "http://localhost:3000/api",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cookie: CookieConfig{
			Name:   "casedesk_session",
			MaxAge: "24h",
		},
		Builder: BuilderConfig{
			SessionMaxAge:   "8h",
			SessionIdle:     "1h",
			CleanupInterval: "5m",
		},
		Activity: ActivityConfig{Capacity: 10000},
		Locale:   LocaleConfig{Default: "en"},
	}
}

// Load reads .env (if present), the YAML file at path (defaults when it does
// not exist) and then applies environment overrides.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("CASEDESK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CASEDESK_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("CASEDESK_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CASEDESK_API_TIMEOUT"); v != "" {
		c.API.Timeout = v
	}
	if v := os.Getenv("CASEDESK_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CASEDESK_COOKIE_NAME"); v != "" {
		c.Cookie.Name = v
	}
	if v := os.Getenv("CASEDESK_COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CASEDESK_COOKIE_SECURE: %w", err)
		}
		c.Cookie.Secure = secure
	}
	return nil
}

func duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// APITimeout returns the per-call API timeout; zero means none.
func (c *Config) APITimeout() time.Duration { return duration(c.API.Timeout, 0) }

// ShutdownTimeout returns how long in-flight requests get on shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return duration(c.Server.ShutdownTimeout, 10*time.Second)
}

// CookieMaxAge returns the auth cookie lifetime.
func (c *Config) CookieMaxAge() time.Duration { return duration(c.Cookie.MaxAge, 24*time.Hour) }

// BuilderSessionMaxAge returns the absolute builder session lifetime.
func (c *Config) BuilderSessionMaxAge() time.Duration {
	return duration(c.Builder.SessionMaxAge, 8*time.Hour)
}

// BuilderSessionIdle returns the builder session idle timeout.
func (c *Config) BuilderSessionIdle() time.Duration {
	return duration(c.Builder.SessionIdle, time.Hour)
}

// BuilderCleanupInterval returns how often expired sessions are swept.
func (c *Config) BuilderCleanupInterval() time.Duration {
	return duration(c.Builder.CleanupInterval, 5*time.Minute)
}

// ValidLogLevels lists accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL not configured (set api.base_url or CASEDESK_API_BASE_URL)")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.API.BaseURL)
	}
	valid := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	for name, v := range map[string]string{
		"api.timeout":              c.API.Timeout,
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"cookie.max_age":           c.Cookie.MaxAge,
		"builder.session_max_age":  c.Builder.SessionMaxAge,
		"builder.session_idle":     c.Builder.SessionIdle,
		"builder.cleanup_interval": c.Builder.CleanupInterval,
	} {
		if v == "" || v == "0" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Cookie.Name == "" {
		return fmt.Errorf("cookie name must not be empty")
	}
	return nil
}
