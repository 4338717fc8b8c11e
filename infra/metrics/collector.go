package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/evgrid/core/events"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/infra/logger"
	"github.com/kilianp07/evgrid/internal/eventbus"
)

// sinkErrors counts failed records per sink.
var sinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "evgrid_sink_errors_total",
	Help: "Records a metrics sink failed to store",
}, []string{"sink"})

func init() {
	prometheus.MustRegister(sinkErrors)
}

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled. The returned channel is closed once
// the collector has unsubscribed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					countSinkErrors(sink, err)
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.CityStepEvent:
		errs := []error{sink.RecordCityStep(coremetrics.NewCityStep(e))}
		if r, ok := sink.(coremetrics.VehicleStateRecorder); ok {
			for _, v := range e.Vehicles {
				errs = append(errs, r.RecordVehicleState(coremetrics.VehicleStateEvent{RunID: e.RunID, Vehicle: v, Time: e.Time}))
			}
		}
		return errors.Join(errs...)
	case events.GridStepEvent:
		if r, ok := sink.(coremetrics.GridStepRecorder); ok {
			return r.RecordGridStep(e)
		}
	case events.ChargingEvent:
		if r, ok := sink.(coremetrics.ChargingRecorder); ok {
			return r.RecordCharging(e)
		}
	case events.StrandedEvent:
		if r, ok := sink.(coremetrics.StrandedRecorder); ok {
			return r.RecordStranded(e)
		}
	}
	return nil
}

func countSinkErrors(sink coremetrics.MetricsSink, err error) {
	for _, se := range coremetrics.SinkErrors(err, coremetrics.SinkName(sink)) {
		sinkErrors.WithLabelValues(se.Sink).Inc()
	}
}
