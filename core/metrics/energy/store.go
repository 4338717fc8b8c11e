package energy

import "time"

// Store persists energy records. Add accumulates into the existing record
// for the same vehicle and day.
type Store interface {
	Add(Record) error
	Query(vehicleID string, start, end time.Time) ([]Record, error)
}

// Accumulate adds the per-vehicle driven and charged kWh of one step to
// store under the day of t.
func Accumulate(store Store, t time.Time, driven, charged map[string]float64) error {
	ids := map[string]struct{}{}
	for id := range driven {
		ids[id] = struct{}{}
	}
	for id := range charged {
		ids[id] = struct{}{}
	}
	for id := range ids {
		if driven[id] == 0 && charged[id] == 0 {
			continue
		}
		if err := store.Add(Record{VehicleID: id, Date: t, DrivenKWh: driven[id], ChargedKWh: charged[id]}); err != nil {
			return err
		}
	}
	return nil
}
