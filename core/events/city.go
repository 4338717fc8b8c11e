package events

import (
	"time"

	"github.com/kilianp07/evgrid/core/geo"
	"github.com/kilianp07/evgrid/core/model"
)

// CityStepEvent is published after every city simulation step.
type CityStepEvent struct {
	RunID    string                  `json:"run_id"`
	Step     int                     `json:"step"`
	Time     time.Time               `json:"time"`
	Vehicles []model.Vehicle         `json:"vehicles"`
	Stations []model.ChargingStation `json:"stations"`
	Balance  model.GridBalance       `json:"balance"`
	// DrivenKWh and ChargedKWh hold the energy each vehicle used and
	// received during the step, keyed by vehicle ID.
	DrivenKWh  map[string]float64 `json:"driven_kwh"`
	ChargedKWh map[string]float64 `json:"charged_kwh"`
}

// ChargingPhase tells whether a session started or finished.
type ChargingPhase string

const (
	ChargingStarted  ChargingPhase = "started"
	ChargingFinished ChargingPhase = "finished"
)

// ChargingEvent is published when a vehicle plugs in or unplugs.
type ChargingEvent struct {
	RunID      string        `json:"run_id"`
	VehicleID  string        `json:"vehicle_id"`
	StationID  string        `json:"station_id"`
	Phase      ChargingPhase `json:"phase"`
	BatteryKWh float64       `json:"battery_kwh"`
	SoC        float64       `json:"soc"`
	Time       time.Time     `json:"time"`
}

// StrandedEvent is published once when a vehicle cannot reach its next node.
type StrandedEvent struct {
	RunID      string     `json:"run_id"`
	VehicleID  string     `json:"vehicle_id"`
	Position   geo.LatLon `json:"position"`
	BatteryKWh float64    `json:"battery_kwh"`
	Time       time.Time  `json:"time"`
}
