package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/evgrid/core/events"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
)

// PromSink exposes the city and grid-edge state as Prometheus metrics.
type PromSink struct {
	vehicles  *prometheus.GaugeVec
	meanSoC   prometheus.Gauge
	vehSoC    *prometheus.GaugeVec
	occupied  prometheus.Gauge
	power     *prometheus.GaugeVec
	steps     prometheus.Counter
	sessions  *prometheus.CounterVec
	stranded  prometheus.Counter
	gridPrice prometheus.Gauge
	gridLoad  *prometheus.GaugeVec
	gridRenew prometheus.Gauge
	gridRew   prometheus.Gauge
	overloads prometheus.Counter
}

// SinkName implements coremetrics.NamedSink.
func (*PromSink) SinkName() string { return "prometheus" }

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	s := &PromSink{}
	if s.vehicles, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "city_vehicles",
		Help: "Number of vehicles per status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.meanSoC, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "city_vehicle_mean_soc",
		Help: "Mean state of charge of the fleet",
	})); err != nil {
		return nil, err
	}
	if s.vehSoC, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "city_vehicle_soc",
		Help: "State of charge per vehicle",
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	if s.occupied, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "city_stations_occupied",
		Help: "Charging stations currently serving a vehicle",
	})); err != nil {
		return nil, err
	}
	if s.power, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "city_power_kw",
		Help: "Power balance of the city grid by source",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.steps, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "city_steps_total",
		Help: "Completed city simulation steps",
	})); err != nil {
		return nil, err
	}
	if s.sessions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "city_charging_sessions_total",
		Help: "Charging sessions started or finished",
	}, []string{"station_id", "phase"})); err != nil {
		return nil, err
	}
	if s.stranded, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "city_vehicles_stranded_total",
		Help: "Vehicles that ran out of energy",
	})); err != nil {
		return nil, err
	}
	if s.gridPrice, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridedge_price_per_kwh",
		Help: "Current electricity price",
	})); err != nil {
		return nil, err
	}
	if s.gridLoad, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridedge_load_kw",
		Help: "Charging load and transformer capacity",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.gridRenew, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridedge_renewable_availability",
		Help: "Renewable availability between 0 and 1",
	})); err != nil {
		return nil, err
	}
	if s.gridRew, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridedge_step_reward",
		Help: "Reward of the last environment step",
	})); err != nil {
		return nil, err
	}
	if s.overloads, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gridedge_overload_steps_total",
		Help: "Steps where the load exceeded the transformer capacity",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCityStep updates the fleet and power gauges.
func (s *PromSink) RecordCityStep(cs coremetrics.CityStep) error {
	s.vehicles.WithLabelValues("moving").Set(float64(cs.Moving))
	s.vehicles.WithLabelValues("charging").Set(float64(cs.Charging))
	s.vehicles.WithLabelValues("stranded").Set(float64(cs.Stranded))
	s.meanSoC.Set(cs.MeanSoC)
	s.occupied.Set(float64(cs.OccupiedStations))
	s.power.WithLabelValues("solar").Set(cs.SolarKW)
	s.power.WithLabelValues("plant").Set(cs.PlantKW)
	s.power.WithLabelValues("demand").Set(cs.DemandKW)
	s.power.WithLabelValues("unserved").Set(cs.UnservedKW)
	s.steps.Inc()
	return nil
}

// RecordVehicleState sets the per-vehicle SoC gauge.
func (s *PromSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	s.vehSoC.WithLabelValues(ev.Vehicle.ID).Set(ev.Vehicle.SoC())
	return nil
}

// RecordCharging counts charging sessions.
func (s *PromSink) RecordCharging(ev events.ChargingEvent) error {
	s.sessions.WithLabelValues(ev.StationID, string(ev.Phase)).Inc()
	return nil
}

// RecordStranded counts stranded vehicles.
func (s *PromSink) RecordStranded(events.StrandedEvent) error {
	s.stranded.Inc()
	return nil
}

// RecordGridStep updates the grid-edge gauges.
func (s *PromSink) RecordGridStep(ev events.GridStepEvent) error {
	s.gridPrice.Set(ev.Price)
	s.gridLoad.WithLabelValues("load").Set(ev.LoadKW)
	s.gridLoad.WithLabelValues("capacity").Set(ev.CapacityKW)
	s.gridRenew.Set(ev.Renewable)
	s.gridRew.Set(ev.Reward)
	if ev.Overloaded() {
		s.overloads.Inc()
	}
	return nil
}
