package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/model"
)

func TestNewCityStep(t *testing.T) {
	ev := events.CityStepEvent{
		RunID: "r",
		Step:  3,
		Vehicles: []model.Vehicle{
			{ID: "V_0", BatteryCapacityKWh: 60, BatteryKWh: 30},
			{ID: "V_1", BatteryCapacityKWh: 60, BatteryKWh: 60, Charging: true},
			{ID: "V_2", BatteryCapacityKWh: 60, BatteryKWh: 0, Stranded: true},
		},
		Stations: []model.ChargingStation{{ID: "CS_0", VehicleID: "V_1"}, {ID: "CS_1", Available: true}},
		Balance:  model.GridBalance{SolarKW: 10, PlantKW: 40, DemandKW: 50},
	}
	cs := NewCityStep(ev)
	assert.Equal(t, 1, cs.Moving)
	assert.Equal(t, 1, cs.Charging)
	assert.Equal(t, 1, cs.Stranded)
	assert.Equal(t, 1, cs.OccupiedStations)
	assert.Equal(t, 2, cs.Stations)
	assert.InDelta(t, 0.5, cs.MeanSoC, 1e-9)
	assert.Equal(t, 50.0, cs.DemandKW)
	assert.Equal(t, 3, cs.Step)
}
