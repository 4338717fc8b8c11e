package roadnet

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/evgrid/core/geo"
)

// MaxGridNodes bounds the intersections a generated grid may have.
const MaxGridNodes = 250_000

// ErrGridTooLarge is returned when radius and spacing would exceed
// MaxGridNodes.
var ErrGridTooLarge = errors.New("roadnet: grid too large")

// GridNodes returns the number of intersections Grid creates for radiusM and
// spacingM, saturating at math.MaxInt32.
func GridNodes(radiusM, spacingM float64) int {
	if radiusM <= 0 || spacingM <= 0 {
		return 0
	}
	side := 2*math.Floor(radiusM/spacingM) + 1
	n := side * side
	if n >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Grid builds a Manhattan street grid centred on center that covers a square
// of half-width radiusM, with intersections every spacingM metres. Node IDs
// start at 1 and run row by row from the south-west corner.
func Grid(center geo.LatLon, radiusM, spacingM float64) (*Graph, error) {
	if radiusM <= 0 || spacingM <= 0 {
		return nil, fmt.Errorf("roadnet: grid radius and spacing must be >0")
	}
	if spacingM > radiusM {
		return nil, fmt.Errorf("roadnet: spacing %.0fm exceeds radius %.0fm", spacingM, radiusM)
	}
	if n := GridNodes(radiusM, spacingM); n > MaxGridNodes {
		return nil, fmt.Errorf("%w: %d nodes for radius %.0fm and spacing %.0fm (max %d)",
			ErrGridTooLarge, n, radiusM, spacingM, MaxGridNodes)
	}
	k := int(math.Floor(radiusM / spacingM))
	side := 2*k + 1
	g := New()
	id := func(row, col int) int64 { return int64(row*side + col + 1) }
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			north := float64(row-k) * spacingM
			east := float64(col-k) * spacingM
			g.AddNode(id(row, col), geo.Offset(center, north, east))
		}
	}
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			if col+1 < side {
				if err := g.AddRoad(id(row, col), id(row, col+1), 0); err != nil {
					return nil, err
				}
			}
			if row+1 < side {
				if err := g.AddRoad(id(row, col), id(row+1, col), 0); err != nil {
					return nil, err
				}
			}
		}
	}
	return g, nil
}
