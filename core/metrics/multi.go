package metrics

import (
	"errors"
	"fmt"

	"github.com/kilianp07/evgrid/core/events"
)

// NamedSink is implemented by sinks reporting a stable name for error
// accounting.
type NamedSink interface {
	SinkName() string
}

// SinkName returns the name of s, falling back to its Go type.
func SinkName(s MetricsSink) string {
	if n, ok := s.(NamedSink); ok {
		return n.SinkName()
	}
	return fmt.Sprintf("%T", s)
}

// SinkError is a failure of one sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string { return e.Sink + ": " + e.Err.Error() }
func (e *SinkError) Unwrap() error { return e.Err }

// SinkErrors flattens err into the sink failures it carries. Errors not
// attributed to a sink are reported under fallback.
func SinkErrors(err error, fallback string) []*SinkError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*SinkError
		for _, e := range joined.Unwrap() {
			out = append(out, SinkErrors(e, fallback)...)
		}
		return out
	}
	var se *SinkError
	if errors.As(err, &se) {
		return []*SinkError{se}
	}
	return []*SinkError{{Sink: fallback, Err: err}}
}

// MultiSink fans records out to several sinks. Optional records are only
// forwarded to sinks implementing the matching recorder. Every sink receives
// every record; failures are joined into one error.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) each(fn func(MetricsSink) error) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := fn(s); err != nil {
			errs = append(errs, &SinkError{Sink: SinkName(s), Err: err})
		}
	}
	return errors.Join(errs...)
}

// RecordCityStep forwards the step to all sinks.
func (m *MultiSink) RecordCityStep(cs CityStep) error {
	return m.each(func(s MetricsSink) error { return s.RecordCityStep(cs) })
}

// RecordVehicleState forwards vehicle snapshots.
func (m *MultiSink) RecordVehicleState(ev VehicleStateEvent) error {
	return m.each(func(s MetricsSink) error {
		if rec, ok := s.(VehicleStateRecorder); ok {
			return rec.RecordVehicleState(ev)
		}
		return nil
	})
}

// RecordGridStep forwards grid-edge steps.
func (m *MultiSink) RecordGridStep(ev events.GridStepEvent) error {
	return m.each(func(s MetricsSink) error {
		if rec, ok := s.(GridStepRecorder); ok {
			return rec.RecordGridStep(ev)
		}
		return nil
	})
}

// RecordCharging forwards charging sessions.
func (m *MultiSink) RecordCharging(ev events.ChargingEvent) error {
	return m.each(func(s MetricsSink) error {
		if rec, ok := s.(ChargingRecorder); ok {
			return rec.RecordCharging(ev)
		}
		return nil
	})
}

// RecordStranded forwards stranding events.
func (m *MultiSink) RecordStranded(ev events.StrandedEvent) error {
	return m.each(func(s MetricsSink) error {
		if rec, ok := s.(StrandedRecorder); ok {
			return rec.RecordStranded(ev)
		}
		return nil
	})
}
