package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/factory"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	coremon "github.com/kilianp07/evgrid/core/monitoring"
	"github.com/kilianp07/evgrid/infra/logger"
)

func init() {
	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var cfg Config
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		p, err := NewPublisher(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Publisher publishes simulation telemetry as JSON messages:
//
//	<prefix>/vehicle/<id>/state  one message per vehicle and city step
//	<prefix>/grid/state          city power balance and fleet counts
//	<prefix>/gridedge/step       grid-edge environment steps
type Publisher struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
	sleep      func(time.Duration)
}

// SinkName implements metrics.NamedSink.
func (*Publisher) SinkName() string { return "mqtt" }

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &Publisher{
		cli:        c,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.backoff(),
		log:        log,
		sleep:      time.Sleep,
	}, nil
}

// VehicleTopic returns the state topic of a vehicle.
func (p *Publisher) VehicleTopic(id string) string {
	return fmt.Sprintf("%s/vehicle/%s/state", p.prefix, id)
}

// GridTopic returns the city grid state topic.
func (p *Publisher) GridTopic() string { return p.prefix + "/grid/state" }

// GridEdgeTopic returns the grid-edge step topic.
func (p *Publisher) GridEdgeTopic() string { return p.prefix + "/gridedge/step" }

// Publish marshals v and publishes it, retrying with exponential backoff.
func (p *Publisher) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			p.sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	coremon.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

type vehicleMessage struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	SoC         float64 `json:"soc"`
	BatteryKWh  float64 `json:"battery_kwh"`
	Status      string  `json:"status"`
	Destination string  `json:"destination,omitempty"`
	RunID       string  `json:"run_id,omitempty"`
	Timestamp   int64   `json:"timestamp"`
}

// RecordVehicleState publishes a vehicle snapshot.
func (p *Publisher) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	v := ev.Vehicle
	return p.Publish(p.VehicleTopic(v.ID), vehicleMessage{
		ID:          v.ID,
		Lat:         v.Position.Lat,
		Lon:         v.Position.Lon,
		SoC:         v.SoC(),
		BatteryKWh:  v.BatteryKWh,
		Status:      string(v.Status()),
		Destination: v.Destination,
		RunID:       ev.RunID,
		Timestamp:   ev.Time.UnixMilli(),
	})
}

// RecordCityStep publishes the city power balance. The per-vehicle energy
// maps are left out of the message.
func (p *Publisher) RecordCityStep(cs coremetrics.CityStep) error {
	cs.DrivenKWh = nil
	cs.ChargedKWh = nil
	return p.Publish(p.GridTopic(), cs)
}

// RecordGridStep publishes a grid-edge environment step.
func (p *Publisher) RecordGridStep(ev events.GridStepEvent) error {
	return p.Publish(p.GridEdgeTopic(), ev)
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
