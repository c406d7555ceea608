package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/civicdispatch/core/factory"
)

// DefaultIssuingSystem prefixes reference ids ("MC-MUMBAI-...").
const DefaultIssuingSystem = "MC"

// Config defines dispatch-related settings.
type Config struct {
	// RadiusKm bounds the neighborhood searched for targets.
	RadiusKm      float64              `json:"radius_km"`
	IssuingSystem string               `json:"issuing_system"`
	Transport     factory.ModuleConfig `json:"transport"`
	Retry         RetryConfig          `json:"retry"`
}

// RetryConfig configures the retry decorator around the transport. A value of
// MaxAttempts <= 1 disables retries.
type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts"`
	InitialIntervalMS int `json:"initial_interval_ms"`
	MaxIntervalMS     int `json:"max_interval_ms"`
}

// Policy converts the config into a RetryPolicy.
func (c RetryConfig) Policy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: time.Duration(c.InitialIntervalMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.MaxIntervalMS) * time.Millisecond,
	}
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RadiusKm == 0 {
		c.RadiusKm = 100
	}
	if c.IssuingSystem == "" {
		c.IssuingSystem = DefaultIssuingSystem
	}
	if c.Transport.Type == "" {
		c.Transport.Type = "simulated"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.InitialIntervalMS == 0 {
		c.Retry.InitialIntervalMS = 500
	}
	if c.Retry.MaxIntervalMS == 0 {
		c.Retry.MaxIntervalMS = 5000
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.RadiusKm < 0 {
		return fmt.Errorf("radius_km must be >= 0, got %v", c.RadiusKm)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxIntervalMS < c.Retry.InitialIntervalMS {
		return fmt.Errorf("retry.max_interval_ms must be >= initial_interval_ms")
	}
	return nil
}
