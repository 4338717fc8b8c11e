package model

import (
	"fmt"

	"github.com/kilianp07/evgrid/core/geo"
)

// VehicleStatus summarises what a city vehicle is doing.
type VehicleStatus string

const (
	StatusMoving   VehicleStatus = "moving"
	StatusCharging VehicleStatus = "charging"
	StatusStranded VehicleStatus = "stranded"
)

// Palette holds the marker colours assigned to vehicles by their number.
var Palette = []string{
	"#FF0000", "#00FF00", "#0000FF", "#FF00FF", "#00FFFF",
	"#FFA500", "#800080", "#008000", "#000080", "#FF1493",
	"#4B0082", "#FF4500", "#2E8B57", "#8B4513", "#483D8B",
}

// ColorFor returns the palette colour of vehicle number n.
func ColorFor(n int) string {
	if n < 0 {
		n = -n
	}
	return Palette[n%len(Palette)]
}

// VehicleID formats the identifier of vehicle number n.
func VehicleID(n int) string { return fmt.Sprintf("V_%d", n) }

// Vehicle is an EV driving around the city road network.
type Vehicle struct {
	ID                  string     `json:"id"`
	Position            geo.LatLon `json:"position"`
	BatteryCapacityKWh  float64    `json:"battery_capacity_kwh"`
	BatteryKWh          float64    `json:"battery_kwh"`
	ConsumptionKWhPerKm float64    `json:"consumption_kwh_per_km"`

	// Route holds the coordinates of RouteNodes. RouteIndex points at the
	// node most recently reached and Progress is the fraction of the next
	// segment already driven.
	Route      []geo.LatLon `json:"route,omitempty"`
	RouteNodes []int64      `json:"route_nodes,omitempty"`
	RouteIndex int          `json:"route_index"`
	Progress   float64      `json:"progress"`

	Charging    bool   `json:"charging"`
	Stranded    bool   `json:"stranded"`
	Destination string `json:"destination,omitempty"`
	Color       string `json:"color"`
}

// SoC returns the state of charge in [0,1].
func (v Vehicle) SoC() float64 {
	if v.BatteryCapacityKWh <= 0 {
		return 0
	}
	return v.BatteryKWh / v.BatteryCapacityKWh
}

// Status reports the current activity. Stranded wins over charging.
func (v Vehicle) Status() VehicleStatus {
	switch {
	case v.Stranded:
		return StatusStranded
	case v.Charging:
		return StatusCharging
	default:
		return StatusMoving
	}
}

// NeedsCharge reports whether the battery is below threshold x capacity.
func (v Vehicle) NeedsCharge(threshold float64) bool {
	return v.BatteryKWh < threshold*v.BatteryCapacityKWh
}

// EnergyFor returns the energy in kWh needed to drive distanceM metres.
func (v Vehicle) EnergyFor(distanceM float64) float64 {
	return distanceM / 1000 * v.ConsumptionKWhPerKm
}

// HasRoute reports whether there is still a segment left to drive.
func (v Vehicle) HasRoute() bool {
	return len(v.RouteNodes) > 0 && v.RouteIndex < len(v.RouteNodes)-1
}

// RouteProgress returns the share of route nodes reached, in percent.
func (v Vehicle) RouteProgress() float64 {
	if len(v.RouteNodes) == 0 {
		return 0
	}
	return float64(v.RouteIndex) / float64(len(v.RouteNodes)) * 100
}

// RemainingRoute returns the route from the last reached node onwards.
func (v Vehicle) RemainingRoute() []geo.LatLon {
	if v.RouteIndex >= len(v.Route) {
		return nil
	}
	return v.Route[v.RouteIndex:]
}

// SetRoute replaces the route and restarts it from its first node.
func (v *Vehicle) SetRoute(nodes []int64, points []geo.LatLon) {
	v.RouteNodes = nodes
	v.Route = points
	v.RouteIndex = 0
	v.Progress = 0
	if len(points) > 0 {
		v.Position = points[0]
	}
}

// Clone returns a deep copy.
func (v Vehicle) Clone() Vehicle {
	c := v
	c.Route = append([]geo.LatLon(nil), v.Route...)
	c.RouteNodes = append([]int64(nil), v.RouteNodes...)
	return c
}
