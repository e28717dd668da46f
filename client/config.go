package client

import (
	"fmt"
	"time"

	"github.com/kbukum/crmkit/health"
	"github.com/kbukum/crmkit/location"
	"github.com/kbukum/crmkit/redis"
	"github.com/kbukum/crmkit/resilience"
	"github.com/kbukum/crmkit/transport"
	"github.com/kbukum/crmkit/validation"
)

// Defaults.
const (
	DefaultCacheTTL = 30 * time.Second
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Config configures a Client.
type Config struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// Timeout bounds one attempt. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// MaxRetries defaults to 3 unless BaseDelay is set too.
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	BaseDelay     time.Duration `yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`
	BackoffFactor float64       `yaml:"backoff_factor" mapstructure:"backoff_factor" validate:"gt=1"`
	MaxDelay      time.Duration `yaml:"max_delay" mapstructure:"max_delay" validate:"gte=0"`

	// CacheTTL applies to every cached operation without its own entry in
	// CacheTTLs. A negative value disables caching.
	CacheTTL  time.Duration            `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheTTLs map[string]time.Duration `yaml:"cache_ttls" mapstructure:"cache_ttls"`

	// Location is the id of the location active at startup. Defaults to the
	// first entry of Locations.
	Location  string             `yaml:"location" mapstructure:"location" validate:"required"`
	Locations []location.Context `yaml:"locations" mapstructure:"locations" validate:"dive"`

	// Token is the initial bearer token.
	Token string `yaml:"token" mapstructure:"token"`

	Health health.Config `yaml:"health" mapstructure:"health"`

	RateLimit          resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxInFlight        int                          `yaml:"max_in_flight" mapstructure:"max_in_flight" validate:"gte=0"`
	HTTP2              bool                         `yaml:"http2" mapstructure:"http2"`
	InsecureSkipVerify bool                         `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	Headers            map[string]string            `yaml:"headers" mapstructure:"headers"`

	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot"`
}

// SnapshotConfig configures the persistent last-known-good store.
type SnapshotConfig struct {
	Redis redis.Config `yaml:"redis" mapstructure:"redis"`
	// Secret, when set, encrypts snapshots at rest.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// TTL expires snapshots; 0 keeps them until overwritten.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
}

// locationIDForbidden keeps location ids usable as a header value.
var locationIDForbidden = []string{"\r", "\n", "\x00"}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 && c.BaseDelay == 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 1.5
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.Location == "" && len(c.Locations) > 0 {
		c.Location = c.Locations[0].ID
	}
	c.Health.ApplyDefaults()
	if c.Snapshot.Redis.Enabled {
		c.Snapshot.Redis.ApplyDefaults()
	}
}

// Validate checks tags first, then cross-field rules.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	v := validation.New()
	for i, loc := range c.Locations {
		field := fmt.Sprintf("locations[%d].id", i)
		v.Required(field, loc.ID).NoneOf(field, loc.ID, locationIDForbidden...)
	}
	v.NoneOf("location", c.Location, locationIDForbidden...)
	for op, ttl := range c.CacheTTLs {
		v.Custom(op != "", "cache_ttls", "operation name must not be empty")
		v.Custom(ttl != 0, "cache_ttls."+op, "must not be zero")
	}
	if err := c.transport().Retry.Validate(); err != nil {
		v.AddError("max_delay", err.Error())
	}
	if err := v.Err(); err != nil {
		return err
	}
	if err := c.Health.Validate(); err != nil {
		return err
	}
	if err := c.Snapshot.Redis.Validate(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// TTL returns the cache TTL for operation.
func (c *Config) TTL(operation string) time.Duration {
	if ttl, ok := c.CacheTTLs[operation]; ok {
		return ttl
	}
	return c.CacheTTL
}

func (c *Config) transport() transport.Config {
	cfg := transport.Config{
		BaseURL: c.BaseURL,
		Timeout: c.Timeout,
		Retry: resilience.RetryConfig{
			MaxRetries:    c.MaxRetries,
			BaseDelay:     c.BaseDelay,
			BackoffFactor: c.BackoffFactor,
			MaxDelay:      c.MaxDelay,
		},
		Headers:     c.Headers,
		RateLimit:   c.RateLimit,
		MaxInFlight: c.MaxInFlight,
		HTTP2:       c.HTTP2,
	}
	if c.InsecureSkipVerify {
		cfg.TLS = &transport.TLSConfig{SkipVerify: true}
	}
	return cfg
}
