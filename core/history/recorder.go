package history

import (
	"context"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/logger"
	"github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/internal/eventbus"
)

// ToRecord converts a bus event into a record. ok is false for events that
// are not persisted.
func ToRecord(ev eventbus.Event) (rec Record, ok bool, err error) {
	switch e := ev.(type) {
	case events.CityStepEvent:
		rec, err = NewRecord(e.RunID, KindCityStep, e.Step, e.Time, metrics.NewCityStep(e))
	case events.GridStepEvent:
		rec, err = NewRecord(e.RunID, KindGridStep, e.Step, e.Time, e)
	case events.ChargingEvent:
		rec, err = NewRecord(e.RunID, KindCharging, 0, e.Time, e)
	case events.StrandedEvent:
		rec, err = NewRecord(e.RunID, KindStranded, 0, e.Time, e)
	default:
		return Record{}, false, nil
	}
	return rec, err == nil, err
}

// StartRecorder persists bus events into store until ctx is done. The
// returned channel is closed once the recorder has stopped.
func StartRecorder(ctx context.Context, bus eventbus.EventBus, store Store, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.Nop{}
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
				rec, keep, err := ToRecord(ev)
				if err != nil {
					log.Errorf("history encode: %v", err)
					continue
				}
				if !keep {
					continue
				}
				if err := store.Append(ctx, rec); err != nil {
					log.Errorf("history append %s: %v", rec.Kind, err)
				}
			}
		}
	}()
	return done
}
