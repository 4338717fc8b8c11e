package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evgrid/core/events"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/model"
	"github.com/kilianp07/evgrid/internal/eventbus"
)

type recordingSink struct {
	mu       sync.Mutex
	steps    int
	vehicles []string
	grid     int
	sessions int
	stranded int
}

func (r *recordingSink) RecordCityStep(coremetrics.CityStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps++
	return nil
}

func (r *recordingSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles = append(r.vehicles, ev.Vehicle.ID)
	return nil
}

func (r *recordingSink) RecordGridStep(events.GridStepEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grid++
	return nil
}

func (r *recordingSink) RecordCharging(events.ChargingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions++
	return nil
}

func (r *recordingSink) RecordStranded(events.StrandedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stranded++
	return nil
}

func (r *recordingSink) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steps + len(r.vehicles) + r.grid + r.sessions + r.stranded
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink, nil)

	bus.Publish(events.CityStepEvent{Vehicles: []model.Vehicle{{ID: "V_0"}, {ID: "V_1"}}})
	bus.Publish(events.GridStepEvent{})
	bus.Publish(events.ChargingEvent{})
	bus.Publish(events.StrandedEvent{})
	bus.Publish("ignored")

	require.Eventually(t, func() bool { return sink.total() == 6 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, sink.steps)
	assert.Equal(t, []string{"V_0", "V_1"}, sink.vehicles)
}

func TestStartEventCollector_OnlyCityStep(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	steps := make(chan coremetrics.CityStep, 1)
	done := StartEventCollector(ctx, bus, stepFunc(func(cs coremetrics.CityStep) error {
		steps <- cs
		return nil
	}), nil)

	bus.Publish(events.GridStepEvent{})
	bus.Publish(events.CityStepEvent{RunID: "r", Step: 3})
	select {
	case cs := <-steps:
		assert.Equal(t, 3, cs.Step)
	case <-time.After(time.Second):
		t.Fatal("city step not recorded")
	}
	bus.Close()
	<-done
}

type brokenSink struct{}

func (brokenSink) RecordCityStep(coremetrics.CityStep) error { return errors.New("broker down") }
func (brokenSink) SinkName() string                          { return "broken" }

func TestStartEventCollector_FailingSinkDoesNotStarveOthers(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	healthy := &recordingSink{}
	before := testutil.ToFloat64(sinkErrors.WithLabelValues("broken"))
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, coremetrics.NewMultiSink(brokenSink{}, healthy), nil)

	bus.Publish(events.CityStepEvent{Vehicles: []model.Vehicle{{ID: "V_0"}, {ID: "V_1"}}})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(sinkErrors.WithLabelValues("broken")) == before+1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, healthy.steps)
	assert.Equal(t, []string{"V_0", "V_1"}, healthy.vehicles)
}

func TestStartEventCollector_NilBus(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, coremetrics.NopSink{}, nil)
	select {
	case <-done:
	default:
		t.Fatal("expected closed channel")
	}
}

type stepFunc func(coremetrics.CityStep) error

func (f stepFunc) RecordCityStep(cs coremetrics.CityStep) error { return f(cs) }
