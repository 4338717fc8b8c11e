package gridedge

import (
	"errors"
	"fmt"

	"github.com/kilianp07/evgrid/core/model"
)

// Fixed normalisation constants of the observation vector.
const (
	DepartureScaleH = 24.0
	ThresholdScale  = 0.5
	// PerEV is the number of observation entries per EV.
	PerEV = 4
	// Globals is the number of trailing global entries.
	Globals = 4
)

// ErrObservationSize is returned when an observation does not match the
// number of EVs it is decoded for.
var ErrObservationSize = errors.New("gridedge: observation size mismatch")

// Observation is the flat normalised state vector:
// per EV [SoC, departure/24, limit/max power, threshold/0.5] followed by
// [hour/24, price/peak price, renewable, load/transformer].
type Observation []float64

// Len returns the observation length for n EVs.
func Len(n int) int { return n*PerEV + Globals }

// Scales holds the denominators used to normalise an observation.
type Scales struct {
	DepartureH float64
	PowerKW    float64
	Threshold  float64
	Price      float64
}

// DefaultScales matches the default Config.
func DefaultScales() Scales {
	var c Config
	c.SetDefaults()
	return c.Scales()
}

// State is a decoded observation in physical units.
type State struct {
	EVs       []model.EVState `json:"evs"`
	Hour      float64         `json:"hour"`
	Price     float64         `json:"price"`
	Renewable float64         `json:"renewable"`
	// Load is the grid load as a fraction of transformer capacity.
	Load float64 `json:"load"`
}

// DecodeObservation decodes obs for n EVs using DefaultScales.
func DecodeObservation(obs Observation, n int) (State, error) {
	return DefaultScales().Decode(obs, n)
}

// Decode converts a normalised observation back to physical units.
func (s Scales) Decode(obs Observation, n int) (State, error) {
	if n < 0 || len(obs) != Len(n) {
		return State{}, fmt.Errorf("%w: %d values for %d evs", ErrObservationSize, len(obs), n)
	}
	st := State{EVs: make([]model.EVState, n)}
	for i := 0; i < n; i++ {
		o := obs[i*PerEV:]
		st.EVs[i] = model.EVState{
			SoC:              o[0],
			HoursToDeparture: o[1] * s.DepartureH,
			PowerLimitKW:     o[2] * s.PowerKW,
			CostThreshold:    o[3] * s.Threshold,
		}
	}
	g := obs[n*PerEV:]
	st.Hour = g[0] * 24
	st.Price = g[1] * s.Price
	st.Renewable = g[2]
	st.Load = g[3]
	return st, nil
}

// Encode builds an observation; loadRatio is load over transformer capacity.
func (s Scales) Encode(evs []model.EVState, hour, price, renewable, loadRatio float64) Observation {
	obs := make(Observation, 0, Len(len(evs)))
	for _, ev := range evs {
		obs = append(obs,
			ev.SoC,
			ev.HoursToDeparture/s.DepartureH,
			ev.PowerLimitKW/s.PowerKW,
			ev.CostThreshold/s.Threshold,
		)
	}
	return append(obs, hour/24, price/s.Price, renewable, loadRatio)
}
