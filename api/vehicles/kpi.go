package vehicles

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/evgrid/core/metrics/energy"
)

// DailyEnergy is one day of GET /api/vehicles/{id}/energy.
type DailyEnergy struct {
	Date        string  `json:"date"`
	DrivenKWh   float64 `json:"driven_kwh"`
	ChargedKWh  float64 `json:"charged_kwh"`
	ChargeRatio float64 `json:"charge_ratio"`
	GridCO2G    float64 `json:"grid_co2_g"`
}

// NewEnergyHandler exposes daily energy via GET /api/vehicles/{id}/energy.
// start and end are RFC3339; end defaults to now and start to seven days
// before end.
func NewEnergyHandler(store energy.Store, factor float64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		end, _ := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if end.IsZero() {
			end = time.Now()
		}
		start, _ := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		if start.IsZero() {
			start = end.AddDate(0, 0, -7)
		}
		recs, err := store.Query(id, start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]DailyEnergy, len(recs))
		for i, rec := range recs {
			out[i] = DailyEnergy{
				Date:        rec.Date.Format("2006-01-02"),
				DrivenKWh:   rec.DrivenKWh,
				ChargedKWh:  rec.ChargedKWh,
				ChargeRatio: rec.ChargeRatio(),
				GridCO2G:    rec.GridCO2(factor),
			}
		}
		writeJSON(w, out)
	})
}
