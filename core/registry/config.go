package registry

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/civicdispatch/core/model"
)

// TargetConfig is the on-disk representation of a target. Categories use
// their wire values ("water-supply").
type TargetConfig struct {
	ID                string   `json:"id"`
	DisplayName       string   `json:"display_name"`
	Lat               float64  `json:"lat"`
	Lng               float64  `json:"lng"`
	ContactEmail      string   `json:"contact_email"`
	ContactPhone      string   `json:"contact_phone"`
	WebsiteURL        string   `json:"website_url"`
	JurisdictionLabel string   `json:"jurisdiction_label"`
	Categories        []string `json:"categories"`
	MessageTemplate   string   `json:"message_template"`
}

// Config selects where targets come from. Path wins over inline Targets; when
// both are empty the built-in table is used.
type Config struct {
	Path    string         `json:"path"`
	Targets []TargetConfig `json:"targets"`
}

// Target converts the config entry into a model target. An empty category
// list means every category and an empty template means DefaultTemplate.
func (c TargetConfig) Target() (model.DispatchTarget, error) {
	t := model.DispatchTarget{
		ID:                c.ID,
		DisplayName:       c.DisplayName,
		Location:          model.GeoPoint{Lat: c.Lat, Lng: c.Lng},
		ContactEmail:      c.ContactEmail,
		ContactPhone:      c.ContactPhone,
		WebsiteURL:        c.WebsiteURL,
		JurisdictionLabel: c.JurisdictionLabel,
		MessageTemplate:   c.MessageTemplate,
	}
	if t.MessageTemplate == "" {
		t.MessageTemplate = DefaultTemplate
	}
	if len(c.Categories) == 0 {
		t.CoveredCategories = model.AllCategories()
	}
	for _, s := range c.Categories {
		cat, err := model.ParseCategory(s)
		if err != nil {
			return model.DispatchTarget{}, fmt.Errorf("target %s: %w", c.ID, err)
		}
		t.CoveredCategories = append(t.CoveredCategories, cat)
	}
	return t, nil
}

// FromConfig builds the registry described by cfg.
func FromConfig(cfg Config) (*Registry, error) {
	entries := cfg.Targets
	if cfg.Path != "" {
		loaded, err := LoadFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		entries = loaded
	}
	if len(entries) == 0 {
		return Default(), nil
	}
	targets := make([]model.DispatchTarget, 0, len(entries))
	for _, e := range entries {
		t, err := e.Target()
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return New(targets)
}

// LoadFile reads a YAML or JSON document with a top-level "targets" list.
func LoadFile(path string) ([]TargetConfig, error) {
	k := koanf.New(".")
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported registry format: %s", path)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load registry %s: %w", path, err)
	}
	var doc struct {
		Targets []TargetConfig `json:"targets"`
	}
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	return doc.Targets, nil
}
