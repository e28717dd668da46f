package health

import (
	"fmt"
	"time"
)

// Defaults.
const (
	DefaultInterval     = 30 * time.Second
	DefaultPath         = "/health"
	DefaultErrorCeiling = 10
)

// Config configures the monitor.
type Config struct {
	// Interval between ticks.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// Path is the liveness endpoint probed on each tick.
	Path string `yaml:"path" mapstructure:"path"`
	// ErrorCeiling stops automatic reconnects once ErrorCount reaches it.
	ErrorCeiling int `yaml:"error_ceiling" mapstructure:"error_ceiling"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.ErrorCeiling <= 0 {
		c.ErrorCeiling = DefaultErrorCeiling
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("health: interval must be positive")
	}
	if c.Path == "" || c.Path[0] != '/' {
		return fmt.Errorf("health: path must start with /, got %q", c.Path)
	}
	if c.ErrorCeiling <= 0 {
		return fmt.Errorf("health: error_ceiling must be positive")
	}
	return nil
}
