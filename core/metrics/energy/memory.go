package energy

import (
	"sort"
	"sync"
	"time"
)

type dayKey struct {
	vehicle string
	day     time.Time
}

// MemoryStore keeps daily records in a map. It backs the energy sink when no
// database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	days map[dayKey]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[dayKey]Record)}
}

func (s *MemoryStore) Add(r Record) error {
	k := dayKey{vehicle: r.VehicleID, day: Day(r.Date)}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.days[k]
	if !ok {
		cur = Record{VehicleID: k.vehicle, Date: k.day}
	}
	cur.DrivenKWh += r.DrivenKWh
	cur.ChargedKWh += r.ChargedKWh
	s.days[k] = cur
	return nil
}

// Query returns the days of vehicleID within [start, end], oldest first.
func (s *MemoryStore) Query(vehicleID string, start, end time.Time) ([]Record, error) {
	from, to := Day(start), Day(end)
	s.mu.RLock()
	var out []Record
	for k, r := range s.days {
		if k.vehicle == vehicleID && !k.day.Before(from) && !k.day.After(to) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
