package energy

import (
	"testing"
	"time"
)

func TestMemoryStore_Aggregation(t *testing.T) {
	s := NewMemoryStore()
	d := Day(time.Now())
	if err := s.Add(Record{VehicleID: "V_1", Date: d, DrivenKWh: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Record{VehicleID: "V_1", Date: d.Add(2 * time.Hour), DrivenKWh: 1, ChargedKWh: 4}); err != nil {
		t.Fatalf("add2: %v", err)
	}
	if err := s.Add(Record{VehicleID: "V_1", Date: d.Add(-time.Hour), ChargedKWh: 9}); err != nil {
		t.Fatalf("add3: %v", err)
	}
	recs, err := s.Query("V_1", d, d)
	if err != nil || len(recs) != 1 {
		t.Fatalf("query: %v len=%d", err, len(recs))
	}
	if recs[0].DrivenKWh != 3 || recs[0].ChargedKWh != 4 {
		t.Fatalf("unexpected record %+v", recs[0])
	}
	recs, _ = s.Query("V_1", d.AddDate(0, 0, -1), d)
	if len(recs) != 2 || !recs[0].Date.Before(recs[1].Date) {
		t.Fatalf("expected two sorted days, got %+v", recs)
	}
}

func TestRecordCalculations(t *testing.T) {
	r := Record{DrivenKWh: 2, ChargedKWh: 4}
	if r.ChargeRatio() != 2 {
		t.Fatalf("ratio")
	}
	if r.GridCO2(10) != 40 {
		t.Fatalf("co2")
	}
	if (Record{ChargedKWh: 3}).ChargeRatio() != 3 || (Record{}).ChargeRatio() != 0 {
		t.Fatalf("ratio edge cases")
	}
}

func TestAccumulate(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	err := Accumulate(s, now,
		map[string]float64{"V_0": 1.5, "V_1": 0},
		map[string]float64{"V_2": 0.8})
	if err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	if recs, _ := s.Query("V_0", now, now); len(recs) != 1 || recs[0].DrivenKWh != 1.5 {
		t.Fatalf("V_0: %+v", recs)
	}
	if recs, _ := s.Query("V_1", now, now); len(recs) != 0 {
		t.Fatalf("V_1 should be skipped: %+v", recs)
	}
	if recs, _ := s.Query("V_2", now, now); len(recs) != 1 || recs[0].ChargedKWh != 0.8 {
		t.Fatalf("V_2: %+v", recs)
	}
}
