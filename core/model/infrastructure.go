package model

import "github.com/kilianp07/evgrid/core/geo"

// ChargingStation is a single-bay charger that serves one vehicle at a time.
type ChargingStation struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name,omitempty" yaml:"name"`
	Position   geo.LatLon `json:"position" yaml:"position"`
	CapacityKW float64    `json:"capacity_kw" yaml:"capacity_kw"`
	Available  bool       `json:"available" yaml:"-"`
	VehicleID  string     `json:"vehicle_id,omitempty" yaml:"-"`
}

// Occupied reports whether a vehicle is plugged in.
func (s ChargingStation) Occupied() bool { return s.VehicleID != "" }

// PowerPlant is a dispatchable generator covering demand solar cannot meet.
type PowerPlant struct {
	ID         string     `json:"id" yaml:"id"`
	Position   geo.LatLon `json:"position" yaml:"position"`
	CapacityKW float64    `json:"capacity_kw" yaml:"capacity_kw"`
	OutputKW   float64    `json:"output_kw" yaml:"-"`
}

// SolarPanel is a photovoltaic installation.
type SolarPanel struct {
	ID         string     `json:"id" yaml:"id"`
	Position   geo.LatLon `json:"position" yaml:"position"`
	CapacityKW float64    `json:"capacity_kw" yaml:"capacity_kw"`
	OutputKW   float64    `json:"output_kw" yaml:"-"`
}

// EVState is the charging-coordination view of a parked EV.
type EVState struct {
	SoC              float64 `json:"soc"`
	HoursToDeparture float64 `json:"hours_to_departure"`
	PowerLimitKW     float64 `json:"power_limit_kw"`
	// CostThreshold is the price in $/kWh above which the owner prefers
	// not to charge.
	CostThreshold float64 `json:"cost_threshold"`
}

// GridBalance is the city's power balance for one step.
type GridBalance struct {
	SolarKW  float64 `json:"solar_kw"`
	PlantKW  float64 `json:"plant_kw"`
	DemandKW float64 `json:"demand_kw"`
	// UnservedKW is the demand neither solar nor the plants could cover.
	UnservedKW float64 `json:"unserved_kw"`
}
