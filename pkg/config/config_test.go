package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Stream.ReconnectDelay)
	assert.Equal(t, 5*time.Second, cfg.Zones.RefreshInterval)
	assert.Equal(t, 100.0, cfg.Movement.CustomerProximityMeters)
	assert.False(t, cfg.Movement.BreakDetectionEnabled())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livetrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stream:
  url: wss://portal.example.com/ws
  identity:
    user_id: dispatcher-7
    role: admin
    client_type: web
  reconnect_delay: 5s
movement:
  idle_speed_kmh: 3
  break_min_duration: 10m
  stable_radius_meters: 40
zones:
  source: http
  url: https://portal.example.com/api/geofences
  refresh_interval: 10s
logging:
  level: debug
  format: console
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://portal.example.com/ws", cfg.Stream.URL)
	assert.Equal(t, "dispatcher-7", cfg.Stream.Identity.UserID)
	assert.Equal(t, 5*time.Second, cfg.Stream.ReconnectDelay)
	assert.Equal(t, 10*time.Second, cfg.Stream.HandshakeTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Movement.BreakMinDuration)
	assert.True(t, cfg.Movement.BreakDetectionEnabled())
	assert.Equal(t, 100.0, cfg.Movement.CustomerProximityMeters)
	assert.Equal(t, "http", cfg.Zones.Source)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream: [oops"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIVETRACK_STREAM_URL", "ws://10.0.0.5:3001/ws")
	t.Setenv("LIVETRACK_USER_ID", "eng-42")
	t.Setenv("LIVETRACK_ROLE", "field_engineer")
	t.Setenv("LIVETRACK_CLIENT_TYPE", "mobile")
	t.Setenv("LIVETRACK_TOKEN", "abc")
	t.Setenv("DATABASE_URL", "sqlite:/tmp/livetrack.db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:3001/ws", cfg.Stream.URL)
	assert.Equal(t, "eng-42", cfg.Stream.Identity.UserID)
	assert.Equal(t, "field_engineer", cfg.Stream.Identity.Role)
	assert.Equal(t, "mobile", cfg.Stream.Identity.ClientType)
	assert.Equal(t, "abc", cfg.Stream.Identity.Token)
	assert.Equal(t, "sqlite:/tmp/livetrack.db", cfg.Database.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Stream.URL = "" }},
		{"http url", func(c *Config) { c.Stream.URL = "http://x" }},
		{"missing role", func(c *Config) { c.Stream.Identity.Role = "" }},
		{"zero reconnect delay", func(c *Config) { c.Stream.ReconnectDelay = 0 }},
		{"negative ping", func(c *Config) { c.Stream.PingInterval = -time.Second }},
		{"break without radius", func(c *Config) {
			c.Movement.IdleSpeedKmh = 2
			c.Movement.BreakMinDuration = time.Minute
		}},
		{"database zones without url", func(c *Config) { c.Zones.Source = "database" }},
		{"http zones without url", func(c *Config) { c.Zones.Source = "http" }},
		{"unknown zones source", func(c *Config) { c.Zones.Source = "ldap" }},
		{"location without interval", func(c *Config) {
			c.Location.Enabled = true
			c.Location.Interval = 0
		}},
		{"redis without channel", func(c *Config) {
			c.Redis.Addr = "localhost:6379"
			c.Redis.Channel = ""
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
