package gridedge

import (
	"fmt"

	"github.com/kilianp07/evgrid/internal/ptr"
)

// Config parameterises the charging-coordination environment.
type Config struct {
	EVs                int     `json:"evs"`
	MaxChargingPowerKW float64 `json:"max_charging_power_kw"`
	// TransformerKWPerEV sizes the transformer as EVs x TransformerKWPerEV.
	TransformerKWPerEV float64   `json:"transformer_kw_per_ev"`
	BasePrice          float64   `json:"base_price"`
	PeakMultiplier     float64   `json:"peak_multiplier"`
	BatteryKWh         float64   `json:"battery_kwh"`
	StepHours          float64   `json:"step_hours"`
	PowerLimitsKW      []float64 `json:"power_limits_kw"`
	SoCMin             float64   `json:"soc_min"`
	SoCMax             float64   `json:"soc_max"`
	DepartureMinH      float64   `json:"departure_min_h"`
	DepartureMaxH      float64   `json:"departure_max_h"`
	ThresholdMin       float64   `json:"threshold_min"`
	ThresholdMax       float64   `json:"threshold_max"`
	// NoiseSigma is the renewable noise deviation. Nil takes the default; an
	// explicit 0 disables noise.
	NoiseSigma *float64 `json:"noise_sigma"`
	// MaxSteps truncates an episode; zero never truncates.
	MaxSteps int    `json:"max_steps"`
	Seed     uint64 `json:"seed"`
}

// SetDefaults applies the reference scenario to zero fields.
func (c *Config) SetDefaults() {
	if c.EVs == 0 {
		c.EVs = 10
	}
	if c.MaxChargingPowerKW == 0 {
		c.MaxChargingPowerKW = 22
	}
	if c.TransformerKWPerEV == 0 {
		c.TransformerKWPerEV = 7
	}
	if c.BasePrice == 0 {
		c.BasePrice = 0.15
	}
	if c.PeakMultiplier == 0 {
		c.PeakMultiplier = 3
	}
	if c.BatteryKWh == 0 {
		c.BatteryKWh = 100
	}
	if c.StepHours == 0 {
		c.StepHours = 0.25
	}
	if len(c.PowerLimitsKW) == 0 {
		c.PowerLimitsKW = []float64{3.7, 7.4, 22}
	}
	if c.SoCMin == 0 && c.SoCMax == 0 {
		c.SoCMin, c.SoCMax = 0.2, 0.8
	}
	if c.DepartureMinH == 0 && c.DepartureMaxH == 0 {
		c.DepartureMinH, c.DepartureMaxH = 1, 24
	}
	if c.ThresholdMin == 0 && c.ThresholdMax == 0 {
		c.ThresholdMin, c.ThresholdMax = 0.2, 0.4
	}
	if c.NoiseSigma == nil {
		c.NoiseSigma = ptr.To(0.1)
	}
}

// Validate checks the configuration ranges.
//
//gocyclo:ignore
func (c Config) Validate() error {
	if c.EVs <= 0 {
		return fmt.Errorf("evs must be >0")
	}
	if c.MaxChargingPowerKW <= 0 || c.TransformerKWPerEV <= 0 {
		return fmt.Errorf("max_charging_power_kw and transformer_kw_per_ev must be >0")
	}
	if c.BasePrice <= 0 || c.PeakMultiplier < 1 {
		return fmt.Errorf("base_price must be >0 and peak_multiplier >=1")
	}
	if c.BatteryKWh <= 0 || c.StepHours <= 0 {
		return fmt.Errorf("battery_kwh and step_hours must be >0")
	}
	for _, p := range c.PowerLimitsKW {
		if p <= 0 || p > c.MaxChargingPowerKW {
			return fmt.Errorf("power limit %.1f outside (0, %.1f]", p, c.MaxChargingPowerKW)
		}
	}
	if c.SoCMin < 0 || c.SoCMax > 1 || c.SoCMin > c.SoCMax {
		return fmt.Errorf("soc range [%.2f, %.2f] invalid", c.SoCMin, c.SoCMax)
	}
	if c.DepartureMinH <= 0 || c.DepartureMinH > c.DepartureMaxH {
		return fmt.Errorf("departure range [%.2f, %.2f] invalid", c.DepartureMinH, c.DepartureMaxH)
	}
	if c.ThresholdMin < 0 || c.ThresholdMin > c.ThresholdMax {
		return fmt.Errorf("threshold range [%.2f, %.2f] invalid", c.ThresholdMin, c.ThresholdMax)
	}
	if ptr.Deref(c.NoiseSigma, 0) < 0 {
		return fmt.Errorf("noise_sigma must be >=0")
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be >=0")
	}
	return nil
}

// TransformerKW returns the total transformer capacity.
func (c Config) TransformerKW() float64 { return float64(c.EVs) * c.TransformerKWPerEV }

// PeakPrice is the highest price the tariff can produce.
func (c Config) PeakPrice() float64 { return c.BasePrice * c.PeakMultiplier }

// Scales returns the normalisation used by Observation for this config.
func (c Config) Scales() Scales {
	return Scales{
		DepartureH: DepartureScaleH,
		PowerKW:    c.MaxChargingPowerKW,
		Threshold:  ThresholdScale,
		Price:      c.PeakPrice(),
	}
}
