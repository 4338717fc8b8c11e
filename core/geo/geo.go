// Package geo holds the small amount of spherical geometry the simulations
// need: great-circle distances and straight-line interpolation between two
// coordinates.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusM is the mean earth radius in metres.
const EarthRadiusM = 6371009.0

// LatLon is a WGS84 coordinate in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

func (p LatLon) String() string { return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon) }

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b LatLon) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, h)
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

// Interpolate returns the point at fraction f of the segment a->b. f is
// clamped to [0,1].
func Interpolate(a, b LatLon, f float64) LatLon {
	f = math.Max(0, math.Min(1, f))
	return LatLon{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
	}
}

// Offset moves p by the given north and east distances in metres.
func Offset(p LatLon, northM, eastM float64) LatLon {
	dLat := northM / EarthRadiusM
	dLon := eastM / (EarthRadiusM * math.Cos(radians(p.Lat)))
	return LatLon{Lat: p.Lat + degrees(dLat), Lon: p.Lon + degrees(dLon)}
}

func radians(d float64) float64 { return d * math.Pi / 180 }

func degrees(r float64) float64 { return r * 180 / math.Pi }
