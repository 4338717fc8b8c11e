// Package city exposes the city simulation over HTTP.
package city

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/evgrid/core/city"
	"github.com/kilianp07/evgrid/core/roadnet"
)

// Source provides the state served by the handlers. *city.Simulation
// implements it.
type Source interface {
	Snapshot() city.Snapshot
	Graph() *roadnet.Graph
}

// State is the body of GET /api/city/state.
type State struct {
	city.Snapshot
	Moving   int `json:"moving"`
	Charging int `json:"charging"`
	Stranded int `json:"stranded"`
}

// Register mounts the city routes on r.
func Register(r *mux.Router, src Source) {
	r.Handle("/api/city/state", NewStateHandler(src)).Methods(http.MethodGet)
	r.Handle("/api/city/geojson", NewGeoJSONHandler(src)).Methods(http.MethodGet)
	r.Handle("/", NewPageHandler(time.Second)).Methods(http.MethodGet)
}

// NewStateHandler returns the current snapshot with vehicle counts.
func NewStateHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := src.Snapshot()
		st := State{Snapshot: snap}
		st.Moving, st.Charging, st.Stranded = snap.Counts()
		writeJSON(w, st)
	})
}

// NewGeoJSONHandler returns the snapshot as a GeoJSON feature collection.
// Roads are left out with ?roads=false.
func NewGeoJSONHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		graph := src.Graph()
		if r.URL.Query().Get("roads") == "false" {
			graph = nil
		}
		fc := city.GeoJSON(src.Snapshot(), graph)
		data, err := fc.MarshalJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(data)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
