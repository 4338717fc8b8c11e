package city

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/evgrid/core/city"
	"github.com/kilianp07/evgrid/core/geo"
	"github.com/kilianp07/evgrid/core/roadnet"
)

var pageTmpl = template.Must(template.New("city").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
#info { position: absolute; top: 10px; right: 10px; z-index: 1000; background: #fff; padding: 6px 10px; font: 13px sans-serif; }
</style>
</head>
<body>
<div id="map"></div>
<div id="info">{{.Title}}</div>
<script>
const map = L.map('map').setView([{{.Lat}}, {{.Lon}}], 14);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {maxZoom: 19}).addTo(map);
const colours = {station: '#2e7d32', plant: '#6d4c41', panel: '#f9a825', road: '#9e9e9e'};
let layer = null;
function style(f) {
  const p = f.properties;
  if (p.kind === 'route') return {color: p.color, weight: 2, dashArray: '4'};
  return {color: colours[p.kind] || p.color, weight: 1};
}
function point(f, latlng) {
  const p = f.properties;
  const colour = p.kind === 'vehicle' ? p.color : colours[p.kind];
  const radius = p.kind === 'vehicle' ? 6 : 8;
  return L.circleMarker(latlng, {radius: radius, color: colour, fillOpacity: 0.8});
}
function popup(f, l) {
  const p = f.properties;
  if (p.kind === 'road') return;
  l.bindPopup(Object.keys(p).map(k => k + ': ' + p[k]).join('<br>'));
}
function draw(data) {
  if (layer) map.removeLayer(layer);
  layer = L.geoJSON(data, {style: style, pointToLayer: point, onEachFeature: popup}).addTo(map);
}
{{if .Live}}
async function refresh() {
  const res = await fetch('/api/city/geojson');
  if (res.ok) draw(await res.json());
  const st = await fetch('/api/city/state');
  if (st.ok) {
    const s = await st.json();
    document.getElementById('info').textContent =
      'step ' + s.step + ' | moving ' + s.moving + ' | charging ' + s.charging + ' | stranded ' + s.stranded;
  }
}
refresh();
setInterval(refresh, {{.RefreshMS}});
{{else}}
draw({{.Data}});
{{end}}
</script>
</body>
</html>
`))

type pageData struct {
	Title     string
	Lat, Lon  float64
	Live      bool
	RefreshMS int64
	Data      template.JS
}

// NewPageHandler serves a map that polls the GeoJSON endpoint every refresh.
func NewPageHandler(refresh time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := pageTmpl.Execute(w, pageData{
			Title:     "EV city simulation",
			Lat:       city.Oxford.Lat,
			Lon:       city.Oxford.Lon,
			Live:      true,
			RefreshMS: refresh.Milliseconds(),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// RenderPage writes a self-contained map of the snapshot.
func RenderPage(w io.Writer, snap city.Snapshot, graph *roadnet.Graph) error {
	data, err := city.GeoJSON(snap, graph).MarshalJSON()
	if err != nil {
		return err
	}
	center := city.Oxford
	if n := len(snap.Stations); n > 0 {
		center = geo.LatLon{}
		for _, st := range snap.Stations {
			center.Lat += st.Position.Lat / float64(n)
			center.Lon += st.Position.Lon / float64(n)
		}
	}
	moving, charging, stranded := snap.Counts()
	return pageTmpl.Execute(w, pageData{
		Title: fmt.Sprintf("Step %d: %d moving, %d charging, %d stranded", snap.Step, moving, charging, stranded),
		Lat:   center.Lat,
		Lon:   center.Lon,
		Data:  template.JS(data),
	})
}
