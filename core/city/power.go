package city

import (
	"math"
	"time"
)

// SolarEfficiency returns the share of nameplate solar output available at
// the given time of day: a half sine between 06:00 and 18:00, zero at night.
func SolarEfficiency(t time.Time) float64 {
	h := float64(t.Hour()) + float64(t.Minute())/60
	return math.Max(0, math.Sin(math.Pi*(h-6)/12))
}

// updatePowerSources sets panel output from the time of day and lets the
// plants cover the remaining charging demand in proportion to capacity.
func (s *Simulation) updatePowerSources(res *StepResult) {
	eff := SolarEfficiency(s.now)
	solar := 0.0
	for _, p := range s.panels {
		p.OutputKW = p.CapacityKW * eff
		solar += p.OutputKW
	}
	demand := 0.0
	for _, st := range s.stations {
		if st.Occupied() {
			demand += st.CapacityKW
		}
	}
	residual := math.Max(0, demand-solar)
	plantCap := 0.0
	for _, p := range s.plants {
		plantCap += p.CapacityKW
	}
	served := 0.0
	for _, p := range s.plants {
		p.OutputKW = 0
		if plantCap > 0 {
			p.OutputKW = math.Min(p.CapacityKW, residual*p.CapacityKW/plantCap)
		}
		served += p.OutputKW
	}
	s.balance.SolarKW = solar
	s.balance.PlantKW = served
	s.balance.DemandKW = demand
	s.balance.UnservedKW = math.Max(0, residual-served)
	res.Balance = s.balance
}
