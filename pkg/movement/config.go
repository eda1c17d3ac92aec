package movement

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid movement config")

// Config holds the classification thresholds. They are policy: callers
// supply them from configuration.
type Config struct {
	// CustomerProximityMeters is the distance below which a sample counts as at the customer site.
	CustomerProximityMeters float64 `yaml:"customer_proximity_meters"`
	// IdleSpeedKmh is the speed below which a worker is considered stationary.
	IdleSpeedKmh float64 `yaml:"idle_speed_kmh"`
	// BreakMinDuration is how long a worker must stay idle at a stable point to be on a break.
	BreakMinDuration time.Duration `yaml:"break_min_duration"`
	// StableRadiusMeters bounds how far samples may drift and still count as the same point.
	StableRadiusMeters float64 `yaml:"stable_radius_meters"`
}

// DefaultConfig returns a config with customer proximity set and break
// detection disabled.
func DefaultConfig() Config {
	return Config{CustomerProximityMeters: 100}
}

// BreakDetectionEnabled reports whether the break rule is configured.
func (c Config) BreakDetectionEnabled() bool {
	return c.IdleSpeedKmh > 0 && c.BreakMinDuration > 0
}

// Validate checks the thresholds for consistency.
func (c Config) Validate() error {
	if c.CustomerProximityMeters < 0 {
		return fmt.Errorf("%w: customer proximity must not be negative", ErrInvalidConfig)
	}
	if c.IdleSpeedKmh < 0 || c.BreakMinDuration < 0 {
		return fmt.Errorf("%w: break thresholds must not be negative", ErrInvalidConfig)
	}
	if c.BreakDetectionEnabled() && c.StableRadiusMeters <= 0 {
		return fmt.Errorf("%w: stable radius is required when break detection is enabled", ErrInvalidConfig)
	}
	return nil
}
