package city

import (
	"math"

	"github.com/kilianp07/evgrid/core/geo"
	"github.com/kilianp07/evgrid/core/model"
)

func (s *Simulation) updateVehicles(res *StepResult) {
	for _, v := range s.vehicles {
		if v.Charging || v.Stranded {
			continue
		}
		if !v.HasRoute() && v.Destination == "" {
			s.planRoute(v)
		}
		s.move(v, res)
	}
}

// planRoute picks the next route for a vehicle that finished its previous
// one: the nearest free station when the battery runs low and the trip is
// affordable, a random destination otherwise.
func (s *Simulation) planRoute(v *model.Vehicle) {
	start, err := s.graph.Nearest(v.Position)
	if err != nil {
		s.log.Errorf("vehicle %s: %v", v.ID, err)
		return
	}
	if v.NeedsCharge(s.cfg.ChargeThreshold) {
		if st := s.nearestAvailableStation(v.Position); st != nil && s.routeToStation(v, start.ID, st) {
			return
		}
	}
	s.randomRoute(v, start.ID)
}

func (s *Simulation) routeToStation(v *model.Vehicle, from int64, st *model.ChargingStation) bool {
	target, err := s.graph.Nearest(st.Position)
	if err != nil {
		return false
	}
	path, err := s.graph.ShortestPath(from, target.ID)
	if err != nil {
		s.log.Debugw("no route to station", map[string]any{"vehicle": v.ID, "station": st.ID, "error": err.Error()})
		return false
	}
	need := v.EnergyFor(s.graph.PathLength(path))
	if need > v.BatteryKWh {
		s.log.Debugw("station out of range", map[string]any{
			"vehicle": v.ID, "station": st.ID, "need_kwh": need, "battery_kwh": v.BatteryKWh,
		})
		return false
	}
	v.SetRoute(path, s.graph.Positions(path))
	v.Destination = st.ID
	st.Available = false
	s.log.Debugw("heading to station", map[string]any{
		"vehicle": v.ID, "station": st.ID, "need_kwh": need, "battery_kwh": v.BatteryKWh,
	})
	return true
}

// randomRoute sends the vehicle from node `from` to a random node. The
// vehicle keeps its state when the destination is unreachable.
func (s *Simulation) randomRoute(v *model.Vehicle, from int64) bool {
	ids := s.graph.IDs()
	to := ids[s.rng.IntN(len(ids))]
	path, err := s.graph.ShortestPath(from, to)
	if err != nil {
		s.log.Debugw("random route failed", map[string]any{"vehicle": v.ID, "error": err.Error()})
		return false
	}
	v.SetRoute(path, s.graph.Positions(path))
	return true
}

// nearestAvailableStation returns the closest free station by great-circle
// distance or nil when all are taken.
func (s *Simulation) nearestAvailableStation(pos geo.LatLon) *model.ChargingStation {
	var best *model.ChargingStation
	bestD := math.Inf(1)
	for _, st := range s.stations {
		if !st.Available {
			continue
		}
		if d := geo.Distance(pos, st.Position); d < bestD {
			best, bestD = st, d
		}
	}
	return best
}

func (s *Simulation) station(id string) *model.ChargingStation {
	for _, st := range s.stations {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// move drives the vehicle along its current segment. Reaching the last
// node of a station route plugs the vehicle in.
func (s *Simulation) move(v *model.Vehicle, res *StepResult) {
	if !v.HasRoute() {
		if v.Destination != "" {
			s.arrive(v, res)
		}
		return
	}
	cur := v.Route[v.RouteIndex]
	next := v.Route[v.RouteIndex+1]
	need := v.EnergyFor(geo.Distance(cur, next))
	if need > v.BatteryKWh {
		s.strand(v, res)
		return
	}
	v.Progress += s.cfg.ProgressPerStep
	if v.Progress < 1 {
		v.Position = geo.Interpolate(cur, next, v.Progress)
		return
	}
	v.RouteIndex++
	v.Position = next
	v.Progress = 0
	used := math.Min(need, v.BatteryKWh)
	v.BatteryKWh = math.Max(0, v.BatteryKWh-need)
	res.DrivenKWh[v.ID] += used
	if v.Destination != "" && !v.HasRoute() {
		s.arrive(v, res)
	}
}

func (s *Simulation) strand(v *model.Vehicle, res *StepResult) {
	v.Stranded = true
	if st := s.station(v.Destination); st != nil && !st.Occupied() {
		st.Available = true
	}
	v.Destination = ""
	res.Stranded = append(res.Stranded, v.ID)
	s.log.Warnf("vehicle %s stranded at %s with %.2f kWh", v.ID, v.Position, v.BatteryKWh)
}

func (s *Simulation) arrive(v *model.Vehicle, res *StepResult) {
	st := s.station(v.Destination)
	v.Destination = ""
	if st == nil {
		return
	}
	v.Charging = true
	st.Available = false
	st.VehicleID = v.ID
	res.Plugged = append(res.Plugged, Session{VehicleID: v.ID, StationID: st.ID})
	s.log.Infof("vehicle %s plugged in at %s (soc %.0f%%)", v.ID, st.ID, v.SoC()*100)
}
