package backfill

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evgrid/core/history"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/metrics/energy"
)

func TestEnergy(t *testing.T) {
	ctx := context.Background()
	hist := history.NewMemoryStore()
	day := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		cs := coremetrics.CityStep{
			Step:       i,
			DrivenKWh:  map[string]float64{"V_0": 1},
			ChargedKWh: map[string]float64{"V_0": 0.5},
		}
		rec, err := history.NewRecord("run", history.KindCityStep, i, day.Add(time.Duration(i)*time.Hour), cs)
		require.NoError(t, err)
		require.NoError(t, hist.Append(ctx, rec))
	}
	grid, err := history.NewRecord("run", history.KindGridStep, 0, day, map[string]int{"x": 1})
	require.NoError(t, err)
	require.NoError(t, hist.Append(ctx, grid))

	store := energy.NewMemoryStore()
	n, err := Energy(ctx, hist, history.Query{RunID: "run"}, store)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := store.Query("V_0", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 3, recs[0].DrivenKWh, 1e-9)
	assert.InDelta(t, 1.5, recs[0].ChargedKWh, 1e-9)
	assert.InDelta(t, 0.5, recs[0].ChargeRatio(), 1e-9)
}

func TestEnergy_BadPayload(t *testing.T) {
	ctx := context.Background()
	hist := history.NewMemoryStore()
	require.NoError(t, hist.Append(ctx, history.Record{RunID: "r", Kind: history.KindCityStep, Timestamp: time.Now(), Payload: json.RawMessage(`[1,2]`)}))
	_, err := Energy(ctx, hist, history.Query{}, energy.NewMemoryStore())
	assert.Error(t, err)
}
