package config

import "fmt"

// HTTPConfig configures the REST API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token on every API call.
	Token string `json:"token"`
	// ReadTimeoutSeconds bounds reading a request. Dispatch rounds are not
	// bounded by it.
	ReadTimeoutSeconds int `json:"read_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.ReadTimeoutSeconds < 0 {
		return fmt.Errorf("read_timeout_seconds must be >= 0")
	}
	return nil
}
