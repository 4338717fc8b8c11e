package metrics

import (
	"time"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/model"
)

// CityStep summarises one city simulation step.
type CityStep struct {
	RunID    string    `json:"run_id"`
	Step     int       `json:"step"`
	Time     time.Time `json:"time"`
	Moving   int       `json:"moving"`
	Charging int       `json:"charging"`
	Stranded int       `json:"stranded"`
	// OccupiedStations out of Stations are serving a vehicle.
	OccupiedStations int     `json:"occupied_stations"`
	Stations         int     `json:"stations"`
	MeanSoC          float64 `json:"mean_soc"`
	SolarKW          float64 `json:"solar_kw"`
	PlantKW          float64 `json:"plant_kw"`
	DemandKW         float64 `json:"demand_kw"`
	UnservedKW       float64 `json:"unserved_kw"`
	// DrivenKWh and ChargedKWh are keyed by vehicle ID.
	DrivenKWh  map[string]float64 `json:"driven_kwh,omitempty"`
	ChargedKWh map[string]float64 `json:"charged_kwh,omitempty"`
}

// NewCityStep derives the summary from a step event.
func NewCityStep(ev events.CityStepEvent) CityStep {
	cs := CityStep{
		RunID:      ev.RunID,
		Step:       ev.Step,
		Time:       ev.Time,
		Stations:   len(ev.Stations),
		SolarKW:    ev.Balance.SolarKW,
		PlantKW:    ev.Balance.PlantKW,
		DemandKW:   ev.Balance.DemandKW,
		UnservedKW: ev.Balance.UnservedKW,
		DrivenKWh:  ev.DrivenKWh,
		ChargedKWh: ev.ChargedKWh,
	}
	for _, v := range ev.Vehicles {
		switch v.Status() {
		case model.StatusCharging:
			cs.Charging++
		case model.StatusStranded:
			cs.Stranded++
		default:
			cs.Moving++
		}
		cs.MeanSoC += v.SoC()
	}
	if len(ev.Vehicles) > 0 {
		cs.MeanSoC /= float64(len(ev.Vehicles))
	}
	for _, st := range ev.Stations {
		if st.Occupied() {
			cs.OccupiedStations++
		}
	}
	return cs
}

// MetricsSink records city steps.
type MetricsSink interface {
	RecordCityStep(CityStep) error
}

// VehicleStateEvent is a snapshot of a vehicle.
type VehicleStateEvent struct {
	RunID   string
	Vehicle model.Vehicle
	Time    time.Time
}

// VehicleStateRecorder records vehicle state snapshots.
type VehicleStateRecorder interface {
	RecordVehicleState(ev VehicleStateEvent) error
}

// GridStepRecorder records grid-edge environment steps.
type GridStepRecorder interface {
	RecordGridStep(ev events.GridStepEvent) error
}

// ChargingRecorder records charging sessions starting and finishing.
type ChargingRecorder interface {
	RecordCharging(ev events.ChargingEvent) error
}

// StrandedRecorder records vehicles running out of energy.
type StrandedRecorder interface {
	RecordStranded(ev events.StrandedEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCityStep(CityStep) error              { return nil }
func (NopSink) RecordVehicleState(VehicleStateEvent) error { return nil }
func (NopSink) RecordGridStep(events.GridStepEvent) error  { return nil }
func (NopSink) RecordCharging(events.ChargingEvent) error  { return nil }
func (NopSink) RecordStranded(events.StrandedEvent) error  { return nil }
func (NopSink) SinkName() string                           { return "nop" }
