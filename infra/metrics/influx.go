package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/evgrid/core/events"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/infra/logger"
)

// InfluxSink writes simulation records to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

func (*InfluxSink) SinkName() string { return "influx" }

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCityStep writes the fleet counts and power balance of a step.
func (s *InfluxSink) RecordCityStep(cs coremetrics.CityStep) error {
	p := write.NewPointWithMeasurement("city_step").
		AddTag("run_id", cs.RunID).
		AddField("step", cs.Step).
		AddField("moving", cs.Moving).
		AddField("charging", cs.Charging).
		AddField("stranded", cs.Stranded).
		AddField("stations_occupied", cs.OccupiedStations).
		AddField("mean_soc", round3(cs.MeanSoC)).
		AddField("solar_kw", round3(cs.SolarKW)).
		AddField("plant_kw", round3(cs.PlantKW)).
		AddField("demand_kw", round3(cs.DemandKW)).
		AddField("unserved_kw", round3(cs.UnservedKW)).
		SetTime(cs.Time)
	return s.write(p)
}

// RecordVehicleState writes a snapshot of a vehicle.
func (s *InfluxSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	v := ev.Vehicle
	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", v.ID).
		AddTag("status", string(v.Status())).
		AddField("soc", round3(v.SoC())).
		AddField("battery_kwh", round3(v.BatteryKWh)).
		AddField("lat", v.Position.Lat).
		AddField("lon", v.Position.Lon).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordCharging writes a charging session transition.
func (s *InfluxSink) RecordCharging(ev events.ChargingEvent) error {
	p := write.NewPointWithMeasurement("charging_session").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("station_id", ev.StationID).
		AddTag("phase", string(ev.Phase)).
		AddField("battery_kwh", round3(ev.BatteryKWh)).
		AddField("soc", round3(ev.SoC)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordStranded writes a stranded vehicle.
func (s *InfluxSink) RecordStranded(ev events.StrandedEvent) error {
	p := write.NewPointWithMeasurement("vehicle_stranded").
		AddTag("vehicle_id", ev.VehicleID).
		AddField("battery_kwh", round3(ev.BatteryKWh)).
		AddField("lat", ev.Position.Lat).
		AddField("lon", ev.Position.Lon).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordGridStep writes a grid-edge environment step.
func (s *InfluxSink) RecordGridStep(ev events.GridStepEvent) error {
	p := write.NewPointWithMeasurement("gridedge_step").
		AddTag("run_id", ev.RunID).
		AddField("step", ev.Step).
		AddField("hour", round3(ev.Hour)).
		AddField("price", round3(ev.Price)).
		AddField("renewable", round3(ev.Renewable)).
		AddField("load_kw", round3(ev.LoadKW)).
		AddField("capacity_kw", round3(ev.CapacityKW)).
		AddField("reward", round3(ev.Reward)).
		AddField("mean_soc", round3(ev.MeanSoC)).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
