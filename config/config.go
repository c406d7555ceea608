package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/core/ledger"
	"github.com/kilianp07/civicdispatch/core/metrics"
	"github.com/kilianp07/civicdispatch/core/registry"
	"github.com/kilianp07/civicdispatch/infra/monitoring"
)

// Config is the root configuration of the dispatch service. Transport
// specific settings, MQTT broker included, live in dispatch.transport.conf.
type Config struct {
	Dispatch dispatch.Config   `json:"dispatch"`
	Registry registry.Config   `json:"registry"`
	Ledger   ledger.Config     `json:"ledger"`
	Metrics  metrics.Config    `json:"metrics"`
	HTTP     HTTPConfig        `json:"http"`
	Sentry   monitoring.Config `json:"sentry"`
}

// Load reads a YAML or JSON file. An empty path loads defaults only.
// Environment variables prefixed with K_ override file values, "__"
// separating levels: K_DISPATCH__RADIUS_KM=50.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Ledger.SetDefaults()
	c.HTTP.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}
