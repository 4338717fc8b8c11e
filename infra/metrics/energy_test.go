package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/metrics/energy"
)

func TestEnergySink_Accumulates(t *testing.T) {
	store := energy.NewMemoryStore()
	sink, err := NewEnergySink(store, 100, prometheus.NewRegistry())
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, sink.RecordCityStep(coremetrics.CityStep{
			Time:       day.Add(time.Duration(i) * time.Minute),
			DrivenKWh:  map[string]float64{"V_0": 2},
			ChargedKWh: map[string]float64{"V_1": 1.5},
		}))
	}

	recs, err := store.Query("V_0", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 6, recs[0].DrivenKWh, 1e-9)

	assert.InDelta(t, 6, testutil.ToFloat64(sink.driven.WithLabelValues("V_0")), 1e-9)
	assert.InDelta(t, 4.5, testutil.ToFloat64(sink.charged.WithLabelValues("V_1")), 1e-9)
	assert.InDelta(t, 450, testutil.ToFloat64(sink.co2.WithLabelValues("V_1")), 1e-9)
}
