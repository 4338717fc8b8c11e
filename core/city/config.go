package city

import (
	"fmt"

	"github.com/kilianp07/evgrid/core/geo"
	"github.com/kilianp07/evgrid/core/model"
	"github.com/kilianp07/evgrid/core/roadnet"
	"github.com/kilianp07/evgrid/internal/ptr"
)

// DefaultVehicles is the fleet size when vehicles is unset.
const DefaultVehicles = 10

// Oxford is the default simulation centre.
var Oxford = geo.LatLon{Lat: 51.7520, Lon: -1.2577}

// Config defines the city simulation parameters.
type Config struct {
	Center geo.LatLon `json:"center"`
	// RadiusM and GridSpacingM size the generated street grid. They are
	// ignored when NetworkFile is set.
	RadiusM      float64 `json:"radius_m"`
	GridSpacingM float64 `json:"grid_spacing_m"`
	NetworkFile  string  `json:"network_file"`

	// Vehicles and ConsumptionKWhPerKm accept an explicit 0; nil takes the
	// default.
	Vehicles            *int     `json:"vehicles"`
	BatteryCapacityKWh  float64  `json:"battery_capacity_kwh"`
	InitialSoCMin       float64  `json:"initial_soc_min"`
	InitialSoCMax       float64  `json:"initial_soc_max"`
	ConsumptionKWhPerKm *float64 `json:"consumption_kwh_per_km"`
	// ProgressPerStep is the fraction of a road segment driven per step.
	ProgressPerStep float64 `json:"progress_per_step"`
	// ChargeThreshold is the SoC below which a vehicle looks for a station.
	ChargeThreshold float64 `json:"charge_threshold"`
	// ChargeTarget is the SoC at which a vehicle unplugs.
	ChargeTarget float64 `json:"charge_target"`
	// ChargeHoursPerStep converts station power into energy per step.
	ChargeHoursPerStep float64 `json:"charge_hours_per_step"`
	Seed               uint64  `json:"seed"`

	Stations []model.ChargingStation `json:"stations"`
	Plants   []model.PowerPlant      `json:"plants"`
	Panels   []model.SolarPanel      `json:"panels"`
}

// SetDefaults fills zero values with the Oxford scenario.
func (c *Config) SetDefaults() {
	if c.Center == (geo.LatLon{}) {
		c.Center = Oxford
	}
	if c.RadiusM == 0 {
		c.RadiusM = 3000
	}
	if c.GridSpacingM == 0 {
		c.GridSpacingM = 250
	}
	if c.Vehicles == nil {
		c.Vehicles = ptr.To(DefaultVehicles)
	}
	if c.BatteryCapacityKWh == 0 {
		c.BatteryCapacityKWh = 60
	}
	if c.InitialSoCMin == 0 && c.InitialSoCMax == 0 {
		c.InitialSoCMin, c.InitialSoCMax = 0.6, 0.9
	}
	if c.ConsumptionKWhPerKm == nil {
		// 0.02 kWh per metre of travelled distance
		c.ConsumptionKWhPerKm = ptr.To(20.0)
	}
	if c.ProgressPerStep == 0 {
		c.ProgressPerStep = 0.8
	}
	if c.ChargeThreshold == 0 {
		c.ChargeThreshold = 0.3
	}
	if c.ChargeTarget == 0 {
		c.ChargeTarget = 0.8
	}
	if c.ChargeHoursPerStep == 0 {
		c.ChargeHoursPerStep = 0.016
	}
	if c.Stations == nil {
		c.Stations = DefaultStations()
	}
	if c.Plants == nil {
		c.Plants = DefaultPlants()
	}
	if c.Panels == nil {
		c.Panels = DefaultPanels()
	}
	for i := range c.Stations {
		if c.Stations[i].CapacityKW == 0 {
			c.Stations[i].CapacityKW = 50
		}
	}
}

// FleetSize returns the configured number of vehicles.
func (c Config) FleetSize() int { return ptr.Deref(c.Vehicles, DefaultVehicles) }

// Validate checks the parameter ranges.
//
//gocyclo:ignore
func (c Config) Validate() error {
	if c.FleetSize() < 0 {
		return fmt.Errorf("vehicles must be >=0")
	}
	if c.BatteryCapacityKWh <= 0 {
		return fmt.Errorf("battery_capacity_kwh must be >0")
	}
	if c.InitialSoCMin < 0 || c.InitialSoCMax > 1 || c.InitialSoCMin > c.InitialSoCMax {
		return fmt.Errorf("initial soc range [%.2f, %.2f] invalid", c.InitialSoCMin, c.InitialSoCMax)
	}
	if ptr.Deref(c.ConsumptionKWhPerKm, 0) < 0 {
		return fmt.Errorf("consumption_kwh_per_km must be >=0")
	}
	if c.ProgressPerStep <= 0 {
		return fmt.Errorf("progress_per_step must be >0")
	}
	if c.ChargeThreshold <= 0 || c.ChargeTarget > 1 || c.ChargeThreshold >= c.ChargeTarget {
		return fmt.Errorf("charge_threshold must be >0 and below charge_target <= 1")
	}
	if c.ChargeHoursPerStep <= 0 {
		return fmt.Errorf("charge_hours_per_step must be >0")
	}
	if c.NetworkFile == "" {
		if c.RadiusM <= 0 || c.GridSpacingM <= 0 {
			return fmt.Errorf("radius_m and grid_spacing_m must be >0")
		}
		if n := roadnet.GridNodes(c.RadiusM, c.GridSpacingM); n > roadnet.MaxGridNodes {
			return fmt.Errorf("radius_m %.0f and grid_spacing_m %.0f give %d intersections (max %d)",
				c.RadiusM, c.GridSpacingM, n, roadnet.MaxGridNodes)
		}
	}
	seen := map[string]bool{}
	for _, s := range c.Stations {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("station id %q missing or duplicated", s.ID)
		}
		seen[s.ID] = true
		if s.CapacityKW <= 0 {
			return fmt.Errorf("station %s capacity must be >0", s.ID)
		}
	}
	for _, p := range c.Plants {
		if p.CapacityKW < 0 {
			return fmt.Errorf("plant %s capacity must be >=0", p.ID)
		}
	}
	for _, p := range c.Panels {
		if p.CapacityKW < 0 {
			return fmt.Errorf("panel %s capacity must be >=0", p.ID)
		}
	}
	return nil
}

// DefaultStations returns the five Oxford charging stations.
func DefaultStations() []model.ChargingStation {
	locs := []struct {
		name string
		pos  geo.LatLon
	}{
		{"City Centre", geo.LatLon{Lat: 51.7520, Lon: -1.2577}},
		{"Train Station", geo.LatLon{Lat: 51.7540, Lon: -1.2600}},
		{"East Oxford", geo.LatLon{Lat: 51.7500, Lon: -1.2500}},
		{"West Oxford", geo.LatLon{Lat: 51.7480, Lon: -1.2620}},
		{"North Oxford", geo.LatLon{Lat: 51.7560, Lon: -1.2540}},
	}
	out := make([]model.ChargingStation, len(locs))
	for i, l := range locs {
		out[i] = model.ChargingStation{
			ID:         fmt.Sprintf("CS_%d", i),
			Name:       l.name,
			Position:   l.pos,
			CapacityKW: 50,
		}
	}
	return out
}

// DefaultPlants returns the single 10 MW plant south-west of the centre.
func DefaultPlants() []model.PowerPlant {
	return []model.PowerPlant{{ID: "PP_1", Position: geo.LatLon{Lat: 51.7420, Lon: -1.2677}, CapacityKW: 10000}}
}

// DefaultPanels returns the four 100 kW rooftop installations.
func DefaultPanels() []model.SolarPanel {
	locs := []geo.LatLon{
		{Lat: 51.7510, Lon: -1.2590},
		{Lat: 51.7530, Lon: -1.2520},
		{Lat: 51.7490, Lon: -1.2550},
		{Lat: 51.7515, Lon: -1.2600},
	}
	out := make([]model.SolarPanel, len(locs))
	for i, p := range locs {
		out[i] = model.SolarPanel{ID: fmt.Sprintf("SP_%d", i), Position: p, CapacityKW: 100}
	}
	return out
}
