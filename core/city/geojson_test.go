package city

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evgrid/core/model"
)

func TestGeoJSON(t *testing.T) {
	cfg := testConfig()
	cfg.Plants = []model.PowerPlant{{ID: "PP_1", Position: nodePos(1), CapacityKW: 10000}}
	cfg.Panels = []model.SolarPanel{{ID: "SP_0", Position: nodePos(2), CapacityKW: 100}}
	s, _ := newTestSim(t, cfg)
	v := place(s, model.Vehicle{ID: "V_0", BatteryKWh: 30, Color: "#FF0000"})
	v.SetRoute([]int64{1, 2, 3}, s.graph.Positions([]int64{1, 2, 3}))

	fc := GeoJSON(s.Snapshot(), s.Graph())
	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	assert.Equal(t, map[string]int{
		KindRoad: 3, KindStation: 1, KindPlant: 1, KindPanel: 1, KindVehicle: 1, KindRoute: 1,
	}, kinds)

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)

	var vehicle map[string]any
	for _, f := range decoded.Features {
		if f.Properties["kind"] == KindVehicle {
			vehicle = f.Properties
			var coords []float64
			require.NoError(t, json.Unmarshal(f.Geometry.Coordinates, &coords))
			assert.Equal(t, []float64{-1.25, 51.75}, coords, "lon/lat order")
		}
	}
	require.NotNil(t, vehicle)
	assert.Equal(t, 50.0, vehicle["battery_pct"])
	assert.Equal(t, "moving", vehicle["status"])

	noRoads := GeoJSON(s.Snapshot(), nil)
	assert.Len(t, noRoads.Features, 5)
}
