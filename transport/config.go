package transport

import (
	"fmt"
	"time"

	"github.com/kbukum/crmkit/resilience"
)

const defaultTimeout = 30 * time.Second

// Config configures the transport.
type Config struct {
	// BaseURL is prepended to every endpoint.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// Timeout bounds a single attempt. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Retry is the default policy; requests may override it.
	Retry resilience.RetryConfig `yaml:"-" mapstructure:"-"`
	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// RateLimit throttles outbound attempts when Rate > 0.
	RateLimit resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	// MaxInFlight caps concurrent attempts when > 0.
	MaxInFlight int `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	// HTTP2 enables HTTP/2 over TLS.
	HTTP2 bool `yaml:"http2" mapstructure:"http2"`
	// TLS configures server verification.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Retry.BaseDelay <= 0 && c.Retry.MaxRetries == 0 && c.Retry.BackoffFactor == 0 {
		c.Retry = resilience.DefaultRetryConfig()
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("transport: base_url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("transport: timeout must be positive")
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	return c.TLS.Validate()
}
