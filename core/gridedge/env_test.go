package gridedge

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/model"
	"github.com/kilianp07/evgrid/internal/eventbus"
	"github.com/kilianp07/evgrid/internal/ptr"
)

// deterministicEnv returns an environment without renewable noise.
func deterministicEnv(t *testing.T, cfg Config, opts ...Option) *Env {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 7
	}
	cfg.NoiseSigma = ptr.To(0.0)
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

type deciderFunc func(Observation, int) ([]float64, error)

func (f deciderFunc) Decide(o Observation, n int) ([]float64, error) { return f(o, n) }

func TestResetRanges(t *testing.T) {
	e, err := New(Config{Seed: 1})
	require.NoError(t, err)
	obs := e.Observation()
	require.Len(t, obs, 44)

	snap := e.Snapshot()
	assert.Equal(t, 70.0, snap.CapacityKW)
	assert.GreaterOrEqual(t, snap.Hour, 0.0)
	assert.Less(t, snap.Hour, 24.0)
	assert.Zero(t, snap.LoadKW)
	for _, ev := range snap.EVs {
		assert.GreaterOrEqual(t, ev.SoC, 0.2)
		assert.LessOrEqual(t, ev.SoC, 0.8)
		assert.GreaterOrEqual(t, ev.HoursToDeparture, 1.0)
		assert.LessOrEqual(t, ev.HoursToDeparture, 24.0)
		assert.Contains(t, []float64{3.7, 7.4, 22}, ev.PowerLimitKW)
		assert.GreaterOrEqual(t, ev.CostThreshold, 0.2)
		assert.LessOrEqual(t, ev.CostThreshold, 0.4)
	}
	assert.GreaterOrEqual(t, e.RenewableAvailability(), 0.0)
}

func TestResetWithSeedIsReproducible(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	seed := uint64(99)
	a := e.Reset(&seed)
	runA := e.RunID()
	b := e.Reset(&seed)
	assert.Equal(t, a, b)
	assert.NotEqual(t, runA, e.RunID())
}

func TestStepActionSize(t *testing.T) {
	e := deterministicEnv(t, Config{EVs: 3})
	_, err := e.Step([]float64{1, 1})
	assert.True(t, errors.Is(err, ErrActionSize))
	assert.Zero(t, e.Snapshot().Step, "rejected action must not advance time")
}

func TestStepReward(t *testing.T) {
	e := deterministicEnv(t, Config{EVs: 2})
	e.hour = 11.75
	e.evs = []model.EVState{
		{SoC: 0.5, HoursToDeparture: 10, PowerLimitKW: 22, CostThreshold: 0.3},
		{SoC: 0.5, HoursToDeparture: 0.6, PowerLimitKW: 7.4, CostThreshold: 0.4},
	}

	res, err := e.Step([]float64{1.5, -1})
	require.NoError(t, err)

	assert.InDelta(t, 12.0, res.Info.Hour, 1e-9)
	assert.InDelta(t, 0.8, res.Info.Renewable, 1e-9)
	assert.InDelta(t, 0.342, res.Info.Price, 1e-9)
	assert.InDelta(t, 22.0, res.Info.TotalLoadKW, 1e-9)
	assert.Equal(t, []float64{1, 0}, res.Info.Rates)
	// ev0: -1.881 cost -5 overload +1.6 renewable -1 price
	// ev1: -10 not ready -5 overload
	assert.InDelta(t, -21.281, res.Reward, 1e-9)
	assert.False(t, res.Terminated)
	assert.False(t, res.Truncated)

	snap := e.Snapshot()
	assert.InDelta(t, 0.555, snap.EVs[0].SoC, 1e-9)
	assert.InDelta(t, 9.75, snap.EVs[0].HoursToDeparture, 1e-9)
	assert.InDelta(t, 0.5, snap.EVs[1].SoC, 1e-9)
	assert.InDelta(t, 0.35, snap.EVs[1].HoursToDeparture, 1e-9)

	g := res.Observation[2*PerEV:]
	assert.InDelta(t, 0.5, g[0], 1e-9)
	assert.InDelta(t, 0.76, g[1], 1e-9)
	assert.InDelta(t, 0.8, g[2], 1e-9)
	assert.InDelta(t, 22.0/14.0, g[3], 1e-9)
}

func TestDepartedEVIsReplaced(t *testing.T) {
	e := deterministicEnv(t, Config{EVs: 1})
	e.evs = []model.EVState{{SoC: 0.95, HoursToDeparture: 0.25, PowerLimitKW: 3.7, CostThreshold: 0.3}}
	_, err := e.Step([]float64{0})
	require.NoError(t, err)
	ev := e.Snapshot().EVs[0]
	assert.GreaterOrEqual(t, ev.HoursToDeparture, 1.0)
	assert.LessOrEqual(t, ev.SoC, 0.8)
	assert.Equal(t, 3.7, ev.PowerLimitKW)
	assert.Equal(t, 0.3, ev.CostThreshold)
}

func TestSoCCappedAtOne(t *testing.T) {
	e := deterministicEnv(t, Config{EVs: 1})
	e.evs = []model.EVState{{SoC: 0.99, HoursToDeparture: 10, PowerLimitKW: 22, CostThreshold: 0.3}}
	_, err := e.Step([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Snapshot().EVs[0].SoC)
}

func TestHourWrapsAndTariff(t *testing.T) {
	e := deterministicEnv(t, Config{EVs: 1})
	e.hour = 23.9
	_, err := e.Step([]float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 0.15, e.Snapshot().Hour, 1e-9)
	assert.Zero(t, e.RenewableAvailability())
	assert.InDelta(t, 0.15, e.Price(), 1e-9)

	cases := map[float64]bool{8.75: false, 9: true, 12: true, 12.25: false, 17: true, 20: true, 20.25: false}
	for hour, peak := range cases {
		assert.Equal(t, peak, isPeak(hour), "hour %.2f", hour)
	}

	e.hour, e.renewable = 10, 0
	assert.InDelta(t, 0.45, e.Price(), 1e-9)
	e.renewable = 1
	assert.InDelta(t, 0.315, e.Price(), 1e-9)
}

func TestNoiseSigmaZeroIsKept(t *testing.T) {
	e, err := New(Config{NoiseSigma: ptr.To(0.0), Seed: 3})
	require.NoError(t, err)
	require.NotNil(t, e.Config().NoiseSigma)
	assert.Zero(t, *e.Config().NoiseSigma)
	e.hour = 2
	assert.Zero(t, e.sampleRenewable())

	d, err := New(Config{Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 0.1, *d.Config().NoiseSigma)
}

func TestObservationCarriesLastLoad(t *testing.T) {
	e := deterministicEnv(t, Config{EVs: 3})
	obs := e.Observation()
	assert.Zero(t, obs[len(obs)-1])

	res, err := e.Step([]float64{1, 1, 1})
	require.NoError(t, err)
	require.Greater(t, res.Info.TotalLoadKW, 0.0)
	last := res.Observation[len(res.Observation)-1]
	assert.InDelta(t, res.Info.TotalLoadKW/e.Config().TransformerKW(), last, 1e-9)

	st, err := e.Scales().Decode(res.Observation, 3)
	require.NoError(t, err)
	assert.InDelta(t, last, st.Load, 1e-9)
}

func TestRenewableCurve(t *testing.T) {
	e := deterministicEnv(t, Config{EVs: 1})
	for _, tc := range []struct{ hour, want float64 }{
		{3, 0}, {6, 0}, {9, 0.8 * math.Sin(math.Pi/4)}, {12, 0.8}, {18, 0}, {21, 0},
	} {
		e.hour = tc.hour
		assert.InDelta(t, tc.want, e.sampleRenewable(), 1e-9, "hour %.0f", tc.hour)
	}

	e.cfg.NoiseSigma = ptr.To(0.1)
	e.hour = 2
	for i := 0; i < 100; i++ {
		assert.GreaterOrEqual(t, e.sampleRenewable(), 0.0)
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, 0.0, clip(math.NaN()))
	assert.Equal(t, 0.0, clip(-0.3))
	assert.Equal(t, 1.0, clip(7))
	assert.Equal(t, 0.4, clip(0.4))
}

func TestDecodeObservation(t *testing.T) {
	e := deterministicEnv(t, Config{})
	st, err := DecodeObservation(e.Observation(), 10)
	require.NoError(t, err)
	snap := e.Snapshot()
	for i, ev := range snap.EVs {
		assert.InDelta(t, ev.SoC, st.EVs[i].SoC, 1e-9)
		assert.InDelta(t, ev.HoursToDeparture, st.EVs[i].HoursToDeparture, 1e-9)
		assert.InDelta(t, ev.PowerLimitKW, st.EVs[i].PowerLimitKW, 1e-9)
		assert.InDelta(t, ev.CostThreshold, st.EVs[i].CostThreshold, 1e-9)
	}
	assert.InDelta(t, snap.Hour, st.Hour, 1e-9)
	assert.InDelta(t, snap.Price, st.Price, 1e-9)

	_, err = DecodeObservation(e.Observation(), 9)
	assert.ErrorIs(t, err, ErrObservationSize)
}

func TestTruncationAndRollout(t *testing.T) {
	e := deterministicEnv(t, Config{EVs: 2, MaxSteps: 3})
	calls := 0
	full := deciderFunc(func(o Observation, n int) ([]float64, error) {
		assert.Len(t, o, Len(n))
		return []float64{1, 1}, nil
	})
	sum, err := e.Rollout(context.Background(), full, 10, func(StepResult) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Steps)
	assert.Equal(t, 3, calls)
	assert.Greater(t, sum.EnergyKWh, 0.0)
	assert.InDelta(t, sum.MeanLoadKW*3*0.25, sum.EnergyKWh, 1e-9)
	assert.GreaterOrEqual(t, sum.PeakLoadKW, sum.MeanLoadKW)

	failing := deciderFunc(func(Observation, int) ([]float64, error) { return nil, errors.New("boom") })
	_, err = e.Rollout(context.Background(), failing, 1, nil)
	assert.ErrorContains(t, err, "boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Rollout(ctx, full, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStepPublishesEvent(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	e := deterministicEnv(t, Config{EVs: 2}, WithBus(bus), WithClock(mock))
	e.evs = []model.EVState{
		{SoC: 0.4, HoursToDeparture: 10, PowerLimitKW: 22, CostThreshold: 0.3},
		{SoC: 0.6, HoursToDeparture: 10, PowerLimitKW: 22, CostThreshold: 0.3},
	}
	_, err := e.Step([]float64{1, 0})
	require.NoError(t, err)

	select {
	case ev := <-sub:
		step, ok := ev.(events.GridStepEvent)
		require.True(t, ok)
		assert.Equal(t, 1, step.Step)
		assert.Equal(t, 14.0, step.CapacityKW)
		assert.True(t, step.Overloaded())
		assert.InDelta(t, (0.455+0.6)/2, step.MeanSoC, 1e-9)
		assert.Equal(t, mock.Now(), step.Time)
		assert.Equal(t, e.RunID(), step.RunID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestConfigValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.InDelta(t, 0.45, c.PeakPrice(), 1e-12)

	bad := c
	bad.PowerLimitsKW = []float64{50}
	assert.Error(t, bad.Validate())
	bad = c
	bad.SoCMin, bad.SoCMax = 0.9, 0.1
	assert.Error(t, bad.Validate())
	bad = c
	bad.MaxSteps = -1
	assert.Error(t, bad.Validate())

	_, err := New(Config{EVs: -1})
	assert.Error(t, err)
}
