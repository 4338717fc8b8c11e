package city

import "math"

func (s *Simulation) updateStations(res *StepResult) {
	for _, st := range s.stations {
		if !st.Occupied() {
			continue
		}
		v := s.byID[st.VehicleID]
		if v == nil {
			st.VehicleID = ""
			st.Available = true
			continue
		}
		charge := math.Min(st.CapacityKW*s.cfg.ChargeHoursPerStep, v.BatteryCapacityKWh-v.BatteryKWh)
		charge = math.Max(0, charge)
		v.BatteryKWh += charge
		res.ChargedKWh[v.ID] += charge
		if v.BatteryKWh < s.cfg.ChargeTarget*v.BatteryCapacityKWh {
			continue
		}
		v.Charging = false
		st.Available = true
		st.VehicleID = ""
		res.Unplugged = append(res.Unplugged, Session{VehicleID: v.ID, StationID: st.ID})
		s.log.Infof("vehicle %s finished charging at %s (soc %.0f%%)", v.ID, st.ID, v.SoC()*100)
		if start, err := s.graph.Nearest(st.Position); err == nil {
			s.randomRoute(v, start.ID)
		}
	}
}
