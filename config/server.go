package config

import (
	"fmt"
	"time"
)

// ServerConfig defines the HTTP server.
type ServerConfig struct {
	Address string `json:"address"`
	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins     []string      `json:"cors_origins"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	// Live enables the websocket feed on /ws.
	Live bool `json:"live"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be >=0")
	}
	return nil
}

// SchedulerConfig controls the periodic stepping of both simulations.
type SchedulerConfig struct {
	CityInterval time.Duration `json:"city_interval"`
	// GridEdgeInterval steps the grid-edge environment with the configured
	// policy. Zero disables the job.
	GridEdgeInterval time.Duration `json:"gridedge_interval"`
}

// SetDefaults applies sane defaults.
func (c *SchedulerConfig) SetDefaults() {
	if c.CityInterval == 0 {
		c.CityInterval = time.Second
	}
}

// Validate checks the intervals.
func (c SchedulerConfig) Validate() error {
	if c.CityInterval < 10*time.Millisecond {
		return fmt.Errorf("city_interval must be >=10ms")
	}
	if c.GridEdgeInterval < 0 {
		return fmt.Errorf("gridedge_interval must be >=0")
	}
	return nil
}

// KPIConfig enables the per-vehicle daily energy store.
type KPIConfig struct {
	Enabled bool `json:"enabled"`
	// Path selects a SQLite file; empty keeps the figures in memory.
	Path string `json:"path"`
	// CO2Factor is the grid emission factor in g/kWh.
	CO2Factor float64 `json:"co2_factor"`
}

// SetDefaults applies sane defaults.
func (c *KPIConfig) SetDefaults() {
	if c.CO2Factor == 0 {
		c.CO2Factor = 56
	}
}

// Validate checks the emission factor.
func (c KPIConfig) Validate() error {
	if c.CO2Factor < 0 {
		return fmt.Errorf("co2_factor must be >=0")
	}
	return nil
}
