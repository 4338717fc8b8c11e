package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evgrid/core/events"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
)

func TestWriteCityCSV(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := WriteCityCSV(&buf, []coremetrics.CityStep{{
		RunID: "r1", Step: 2, Time: ts, Moving: 3, Charging: 1,
		OccupiedStations: 1, MeanSoC: 0.5, SolarKW: 120, PlantKW: 0, DemandKW: 50,
	}})
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "run_id", rows[0][0])
	assert.Equal(t, []string{"r1", "2", "2024-06-01T12:00:00Z", "3", "1", "0", "1", "0.5", "120", "0", "50", "0"}, rows[1])
}

func TestWriteGridCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGridCSV(&buf, []events.GridStepEvent{{
		RunID: "g", Step: 1, Hour: 18.25, Price: 0.45, LoadKW: 22, CapacityKW: 21, Rates: []float64{1, 0.5},
	}})
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "18.25", rows[1][2])
	assert.Equal(t, "1;0.5", rows[1][9])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []events.GridStepEvent{{RunID: "g", Step: 1}}))
	var out []events.GridStepEvent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "g", out[0].RunID)
}

func TestFormat(t *testing.T) {
	f, err := Format("steps.CSV")
	require.NoError(t, err)
	assert.Equal(t, "csv", f)
	_, err = Format("steps.txt")
	assert.Error(t, err)
}
