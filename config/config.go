// Package config loads the evgrid configuration from a YAML or JSON file
// with EVGRID_ environment overrides.
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

	"github.com/kilianp07/evgrid/core/city"
	"github.com/kilianp07/evgrid/core/factory"
	"github.com/kilianp07/evgrid/core/gridedge"
	"github.com/kilianp07/evgrid/core/history"
	"github.com/kilianp07/evgrid/core/metrics"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: EVGRID_SERVER__ADDRESS sets server.address.
const EnvPrefix = "EVGRID_"

type Config struct {
	Log       LogConfig            `json:"log"`
	City      city.Config          `json:"city"`
	GridEdge  gridedge.Config      `json:"gridedge"`
	Policy    factory.ModuleConfig `json:"policy"`
	Server    ServerConfig         `json:"server"`
	Scheduler SchedulerConfig      `json:"scheduler"`
	Metrics   metrics.Config       `json:"metrics"`
	History   history.Config       `json:"history"`
	KPI       KPIConfig            `json:"kpi"`
	Sentry    SentryConfig         `json:"sentry"`
}

// Load reads path, applies environment overrides, defaults and validation.
// An empty path loads defaults and the environment only.
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
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
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

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Log.SetDefaults()
	c.City.SetDefaults()
	c.GridEdge.SetDefaults()
	if c.Policy.Type == "" {
		c.Policy.Type = "rule"
	}
	c.Server.SetDefaults()
	c.Scheduler.SetDefaults()
	c.KPI.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"log", c.Log.Validate},
		{"city", c.City.Validate},
		{"gridedge", c.GridEdge.Validate},
		{"server", c.Server.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"kpi", c.KPI.Validate},
		{"sentry", c.Sentry.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	return nil
}
