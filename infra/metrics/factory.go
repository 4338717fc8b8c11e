package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/evgrid/core/factory"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/metrics/energy"
	"github.com/kilianp07/evgrid/infra/kpi"
)

// DefaultCO2Factor is the grid emission factor in g/kWh used by the energy
// sink when none is configured.
const DefaultCO2Factor = 56.0

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	// The listen port lives in metrics.prometheus_port; the sink only registers collectors.
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		s, err := NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	_ = coremetrics.RegisterMetricsSink("energy", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c := struct {
			Path      string  `json:"path"`
			CO2Factor float64 `json:"co2_factor"`
		}{CO2Factor: DefaultCO2Factor}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		var store energy.Store = energy.NewMemoryStore()
		if c.Path != "" {
			s, err := kpi.NewSQLiteStore(c.Path)
			if err != nil {
				return nil, err
			}
			store = s
		}
		s, err := NewEnergySink(store, c.CO2Factor, prometheus.DefaultRegisterer)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
