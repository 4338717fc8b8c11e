package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/metrics/energy"
)

// EnergySink accumulates per-vehicle daily energy into a store and exposes
// the running totals as gauges.
type EnergySink struct {
	store   energy.Store
	driven  *prometheus.GaugeVec
	charged *prometheus.GaugeVec
	co2     *prometheus.GaugeVec
	factor  float64
}

func (*EnergySink) SinkName() string { return "energy" }

// NewEnergySink wires the store. factor is the grid CO2 intensity in g/kWh.
func NewEnergySink(store energy.Store, factor float64, reg prometheus.Registerer) (*EnergySink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &EnergySink{store: store, factor: factor}
	var err error
	if s.driven, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_driven_kwh_total",
		Help: "Energy used for driving by vehicle",
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	if s.charged, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_charged_kwh_total",
		Help: "Energy taken from chargers by vehicle",
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_grid_co2_grams",
		Help: "Estimated CO2 of the energy charged by vehicle",
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	return s, nil
}

// Store returns the underlying energy store.
func (s *EnergySink) Store() energy.Store { return s.store }

// RecordCityStep stores the energy of the step and updates the gauges.
func (s *EnergySink) RecordCityStep(cs coremetrics.CityStep) error {
	if err := energy.Accumulate(s.store, cs.Time, cs.DrivenKWh, cs.ChargedKWh); err != nil {
		return err
	}
	for id, kwh := range cs.DrivenKWh {
		s.driven.WithLabelValues(id).Add(kwh)
	}
	for id, kwh := range cs.ChargedKWh {
		s.charged.WithLabelValues(id).Add(kwh)
		s.co2.WithLabelValues(id).Add(energy.Record{ChargedKWh: kwh}.GridCO2(s.factor))
	}
	return nil
}
