package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jgirmay/livetrack/pkg/logging"
	"github.com/jgirmay/livetrack/pkg/movement"
	"github.com/jgirmay/livetrack/pkg/session"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the livemonitor process configuration.
type Config struct {
	Stream   session.Config  `yaml:"stream"`
	Movement movement.Config `yaml:"movement"`
	Zones    ZonesConfig     `yaml:"zones"`
	Location LocationConfig  `yaml:"location"`
	Database DatabaseConfig  `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis"`
	HTTP     HTTPConfig      `yaml:"http"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ZonesConfig selects where geofence zones and anchors come from.
type ZonesConfig struct {
	// Source is "database", "http" or "none".
	Source          string        `yaml:"source"`
	URL             string        `yaml:"url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// LocationConfig controls periodic self-reporting of this client's position.
type LocationConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Latitude  float64       `yaml:"latitude"`
	Longitude float64       `yaml:"longitude"`
}

type DatabaseConfig struct {
	// URL is a postgres:// DSN or sqlite:<path>. Empty disables persistence.
	URL string `yaml:"url"`
}

type RedisConfig struct {
	// Addr empty disables notification fan-out.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Stream: session.Config{
			URL: "ws://localhost:3001/ws",
			Identity: session.Identity{
				UserID:     "admin_dashboard",
				Role:       "admin",
				ClientType: "web",
			},
			ReconnectDelay:   session.DefaultReconnectDelay,
			HandshakeTimeout: session.DefaultHandshakeTimeout,
			PingInterval:     session.DefaultPingInterval,
		},
		Movement: movement.DefaultConfig(),
		Zones: ZonesConfig{
			Source:          "none",
			RefreshInterval: 5 * time.Second,
		},
		Location: LocationConfig{
			Interval: 30 * time.Second,
		},
		Redis: RedisConfig{
			Channel: "livetrack:notifications",
		},
		HTTP: HTTPConfig{
			Addr: ":8090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (if non-empty and present) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LIVETRACK_STREAM_URL"); v != "" {
		c.Stream.URL = v
	}
	if v := os.Getenv("LIVETRACK_USER_ID"); v != "" {
		c.Stream.Identity.UserID = v
	}
	if v := os.Getenv("LIVETRACK_ROLE"); v != "" {
		c.Stream.Identity.Role = v
	}
	if v := os.Getenv("LIVETRACK_CLIENT_TYPE"); v != "" {
		c.Stream.Identity.ClientType = v
	}
	if v := os.Getenv("LIVETRACK_TOKEN"); v != "" {
		c.Stream.Identity.Token = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Stream.URL == "" {
		return fmt.Errorf("%w: stream url is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("%w: stream url must use ws:// or wss://", ErrInvalidConfig)
	}
	id := c.Stream.Identity
	if id.UserID == "" || id.Role == "" || id.ClientType == "" {
		return fmt.Errorf("%w: stream identity needs user_id, role and client_type", ErrInvalidConfig)
	}
	if c.Stream.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: reconnect delay must be positive", ErrInvalidConfig)
	}
	if c.Stream.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake timeout must be positive", ErrInvalidConfig)
	}
	if c.Stream.PingInterval < 0 {
		return fmt.Errorf("%w: ping interval cannot be negative", ErrInvalidConfig)
	}

	if err := c.Movement.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch c.Zones.Source {
	case "none":
	case "database":
		if c.Database.URL == "" {
			return fmt.Errorf("%w: zones source database needs database url", ErrInvalidConfig)
		}
	case "http":
		if c.Zones.URL == "" {
			return fmt.Errorf("%w: zones source http needs zones url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown zones source %q", ErrInvalidConfig, c.Zones.Source)
	}
	if c.Zones.Source != "none" && c.Zones.RefreshInterval <= 0 {
		return fmt.Errorf("%w: zone refresh interval must be positive", ErrInvalidConfig)
	}

	if c.Location.Enabled && c.Location.Interval <= 0 {
		return fmt.Errorf("%w: location interval must be positive", ErrInvalidConfig)
	}

	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("%w: redis channel is required", ErrInvalidConfig)
	}

	if !logging.Level(c.Logging.Level).Valid() {
		return fmt.Errorf("%w: invalid logging level: %s", ErrInvalidConfig, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("%w: invalid logging format: %s", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// String summarises the configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Stream: %s as %s/%s, Zones: %s, HTTP: %s, Logging: %s/%s}",
		c.Stream.URL, c.Stream.Identity.Role, c.Stream.Identity.UserID,
		c.Zones.Source, c.HTTP.Addr, c.Logging.Level, c.Logging.Format,
	)
}
