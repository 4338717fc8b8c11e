package city

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kilianp07/evgrid/core/geo"
	"github.com/kilianp07/evgrid/core/roadnet"
)

// Feature kinds used in the "kind" property of GeoJSON output.
const (
	KindRoad    = "road"
	KindStation = "station"
	KindPlant   = "plant"
	KindPanel   = "panel"
	KindVehicle = "vehicle"
	KindRoute   = "route"
)

// GeoJSON renders the snapshot as a feature collection. Roads are only
// included when graph is non-nil; two-way streets are emitted once.
func GeoJSON(snap Snapshot, graph *roadnet.Graph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if graph != nil {
		seen := map[[2]int64]bool{}
		for _, e := range graph.Edges() {
			key := [2]int64{min(e.From, e.To), max(e.From, e.To)}
			if seen[key] {
				continue
			}
			seen[key] = true
			pts := graph.Positions([]int64{e.From, e.To})
			f := geojson.NewFeature(lineString(pts))
			f.Properties["kind"] = KindRoad
			f.Properties["length_m"] = round1(e.LengthM)
			fc.Append(f)
		}
	}
	for _, st := range snap.Stations {
		f := geojson.NewFeature(point(st.Position))
		f.Properties["kind"] = KindStation
		f.Properties["id"] = st.ID
		f.Properties["name"] = st.Name
		f.Properties["capacity_kw"] = st.CapacityKW
		f.Properties["available"] = st.Available
		f.Properties["vehicle_id"] = st.VehicleID
		fc.Append(f)
	}
	for _, p := range snap.Plants {
		f := geojson.NewFeature(point(p.Position))
		f.Properties["kind"] = KindPlant
		f.Properties["id"] = p.ID
		f.Properties["capacity_kw"] = p.CapacityKW
		f.Properties["output_kw"] = round1(p.OutputKW)
		fc.Append(f)
	}
	for _, p := range snap.Panels {
		f := geojson.NewFeature(point(p.Position))
		f.Properties["kind"] = KindPanel
		f.Properties["id"] = p.ID
		f.Properties["capacity_kw"] = p.CapacityKW
		f.Properties["output_kw"] = round1(p.OutputKW)
		fc.Append(f)
	}
	for _, v := range snap.Vehicles {
		f := geojson.NewFeature(point(v.Position))
		f.Properties["kind"] = KindVehicle
		f.Properties["id"] = v.ID
		f.Properties["status"] = string(v.Status())
		f.Properties["color"] = v.Color
		f.Properties["battery_pct"] = round1(v.SoC() * 100)
		f.Properties["battery_kwh"] = round1(v.BatteryKWh)
		f.Properties["route_progress_pct"] = round1(v.RouteProgress())
		if v.Destination != "" {
			f.Properties["destination"] = v.Destination
		}
		fc.Append(f)
		if rest := v.RemainingRoute(); len(rest) > 1 && !v.Charging {
			r := geojson.NewFeature(lineString(rest))
			r.Properties["kind"] = KindRoute
			r.Properties["id"] = v.ID
			r.Properties["color"] = v.Color
			fc.Append(r)
		}
	}
	return fc
}

func point(p geo.LatLon) orb.Point { return orb.Point{p.Lon, p.Lat} }

func lineString(pts []geo.LatLon) orb.LineString {
	ls := make(orb.LineString, len(pts))
	for i, p := range pts {
		ls[i] = point(p)
	}
	return ls
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
