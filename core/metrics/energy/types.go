// Package energy aggregates per-vehicle daily energy figures: kWh drawn
// from the battery while driving and kWh delivered by charging stations.
package energy

import "time"

// Record aggregates the energy of one vehicle over one day.
type Record struct {
	VehicleID  string    `json:"vehicle_id"`
	Date       time.Time `json:"date"`
	DrivenKWh  float64   `json:"driven_kwh"`
	ChargedKWh float64   `json:"charged_kwh"`
}

// ChargeRatio returns charged over driven energy. A value below one means
// the vehicle is draining its battery.
func (r Record) ChargeRatio() float64 {
	if r.DrivenKWh == 0 {
		if r.ChargedKWh == 0 {
			return 0
		}
		return r.ChargedKWh
	}
	return r.ChargedKWh / r.DrivenKWh
}

// GridCO2 returns the grams of CO2 attributed to charged energy given an
// emission factor in g/kWh.
func (r Record) GridCO2(factor float64) float64 {
	return r.ChargedKWh * factor
}

// Day aligns t to the start of its day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
