package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/factory"
	"github.com/kilianp07/evgrid/core/geo"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	coremon "github.com/kilianp07/evgrid/core/monitoring"
	"github.com/kilianp07/evgrid/core/model"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any)    {}
func (r *recordMonitor) Flush(time.Duration) {}

func newTestPublisher(t *testing.T, mc *mockClient, cfg Config) *Publisher {
	t.Helper()
	installMock(t, mc)
	p, err := NewPublisher(cfg)
	require.NoError(t, err)
	p.sleep = func(time.Duration) {}
	return p
}

func TestPublisher_VehicleState(t *testing.T) {
	mc := &mockClient{}
	p := newTestPublisher(t, mc, Config{TopicPrefix: "oxford", QoS: 1, Retain: true})

	v := model.Vehicle{ID: "V_2", BatteryCapacityKWh: 60, BatteryKWh: 45, Destination: "CS_1",
		Position: geo.LatLon{Lat: 51.75, Lon: -1.26}}
	now := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, p.RecordVehicleState(coremetrics.VehicleStateEvent{RunID: "r", Vehicle: v, Time: now}))

	require.Len(t, mc.messages(), 1)
	msg := mc.messages()[0]
	assert.Equal(t, "oxford/vehicle/V_2/state", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var got vehicleMessage
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "V_2", got.ID)
	assert.InDelta(t, 0.75, got.SoC, 1e-9)
	assert.Equal(t, "moving", got.Status)
	assert.Equal(t, now.UnixMilli(), got.Timestamp)
}

func TestPublisher_GridTopics(t *testing.T) {
	mc := &mockClient{}
	p := newTestPublisher(t, mc, Config{})

	require.NoError(t, p.RecordCityStep(coremetrics.CityStep{Step: 1, SolarKW: 12, DrivenKWh: map[string]float64{"V_0": 1}}))
	require.NoError(t, p.RecordGridStep(events.GridStepEvent{Step: 2, LoadKW: 30}))

	require.Len(t, mc.messages(), 2)
	assert.Equal(t, "evgrid/grid/state", mc.messages()[0].topic)
	assert.Equal(t, "evgrid/gridedge/step", mc.messages()[1].topic)

	var cs map[string]any
	require.NoError(t, json.Unmarshal(mc.messages()[0].payload, &cs))
	assert.Equal(t, 12.0, cs["solar_kw"])
	assert.NotContains(t, cs, "driven_kwh")
}

func TestPublisher_Retry(t *testing.T) {
	mc := &mockClient{failures: []error{errors.New("net fail"), nil}}
	p := newTestPublisher(t, mc, Config{MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, p.RecordGridStep(events.GridStepEvent{}))
	assert.Len(t, mc.messages(), 2)
}

func TestPublisher_ErrorCaptured(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{failures: []error{fail, fail, fail}}
	p := newTestPublisher(t, mc, Config{MaxRetries: 2, BackoffMS: 1})
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	err := p.RecordGridStep(events.GridStepEvent{})
	require.ErrorIs(t, err, fail)
	assert.Len(t, mc.messages(), 3)
	require.NotNil(t, mon.err)
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Equal(t, "evgrid/gridedge/step", mon.tags["topic"])
}

func TestPublisher_RegisteredSink(t *testing.T) {
	mc := &mockClient{}
	installMock(t, mc)
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "mqtt",
		Conf: map[string]any{"broker": "tcp://broker:1883", "topic_prefix": "city", "qos": 1},
	}})
	require.NoError(t, err)
	p, ok := sink.(*Publisher)
	require.True(t, ok)
	assert.Equal(t, "city/grid/state", p.GridTopic())
	assert.Equal(t, byte(1), p.qos)
	assert.Equal(t, "tcp://broker:1883", mc.opts.Servers[0].String())
}

func TestPublisher_LWTConfigured(t *testing.T) {
	mc := &mockClient{}
	p := newTestPublisher(t, mc, Config{LWTTopic: "evgrid/status", LWTPayload: "offline", LWTQoS: 1})
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "evgrid/status", mc.opts.WillTopic)
	assert.Equal(t, "offline", string(mc.opts.WillPayload))
	p.Disconnect()
	assert.Empty(t, mc.messages())
}
