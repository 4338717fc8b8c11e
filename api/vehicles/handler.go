// Package vehicles exposes the city fleet and its energy figures.
package vehicles

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kilianp07/evgrid/core/city"
	"github.com/kilianp07/evgrid/core/metrics/energy"
	"github.com/kilianp07/evgrid/core/model"
)

// Source provides the fleet. *city.Simulation implements it.
type Source interface {
	Snapshot() city.Snapshot
}

// Register mounts the vehicle routes. store may be nil, in which case the
// energy route is not mounted.
func Register(r *mux.Router, src Source, store energy.Store, factor float64) {
	r.Handle("/api/vehicles", NewListHandler(src)).Methods(http.MethodGet)
	r.Handle("/api/vehicles/{id}", NewVehicleHandler(src)).Methods(http.MethodGet)
	if store != nil {
		r.Handle("/api/vehicles/{id}/energy", NewEnergyHandler(store, factor)).Methods(http.MethodGet)
	}
}

// NewListHandler returns the fleet via GET /api/vehicles, optionally
// filtered with ?status=moving|charging|stranded.
func NewListHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := model.VehicleStatus(r.URL.Query().Get("status"))
		out := []model.Vehicle{}
		for _, v := range src.Snapshot().Vehicles {
			if status != "" && v.Status() != status {
				continue
			}
			out = append(out, v)
		}
		writeJSON(w, out)
	})
}

// NewVehicleHandler returns one vehicle via GET /api/vehicles/{id}.
func NewVehicleHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		for _, v := range src.Snapshot().Vehicles {
			if v.ID == id {
				writeJSON(w, v)
				return
			}
		}
		http.NotFound(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
