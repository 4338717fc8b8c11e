package policy

import (
	"errors"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/evgrid/core/gridedge"
)

// ErrInfeasible indicates the charging LP had no feasible solution.
var ErrInfeasible = errors.New("policy: lp infeasible")

// LPWeights shape the per-kW objective of the LP policy:
//
//	w_i = Urgency (1 - SoC_i) / max(departure_i, step)
//	    + Renewable renewable / limit_i
//	    - price step
//	    - ThresholdPenalty / limit_i   when price > threshold_i
//
// where step is the environment step length in hours.
type LPWeights struct {
	Urgency          float64 `json:"urgency"`
	Renewable        float64 `json:"renewable"`
	ThresholdPenalty float64 `json:"threshold_penalty"`
	// CapacityKW further bounds the summed power below the transformer
	// capacity. Zero leaves the transformer as the only bound.
	CapacityKW float64 `json:"capacity_kw"`
}

// DefaultLPWeights mirrors the environment reward terms.
func DefaultLPWeights() LPWeights {
	return LPWeights{
		Urgency:          1,
		Renewable:        gridedge.RenewableBonus,
		ThresholdPenalty: gridedge.PricePenalty,
	}
}

// LP allocates transformer capacity by solving a linear program and falls
// back to Rule when the solver fails.
type LP struct {
	Weights   LPWeights
	scales    gridedge.Scales
	stepHours float64
	kwPerEV   float64
	fallback  *Rule
	fallbacks atomic.Uint64
}

// NewLP returns an LP policy with default weights sized for the default
// environment.
func NewLP() *LP {
	var env gridedge.Config
	env.SetDefaults()
	l := &LP{Weights: DefaultLPWeights(), fallback: NewRule()}
	l.SetEnv(env)
	return l
}

func (*LP) Name() string { return "lp" }

// SetScales implements ScaleSetter.
func (l *LP) SetScales(s gridedge.Scales) {
	l.scales = s
	l.fallback.SetScales(s)
}

// SetEnv implements EnvSetter. The transformer capacity and step length of
// cfg replace the defaults.
func (l *LP) SetEnv(cfg gridedge.Config) {
	l.SetScales(cfg.Scales())
	l.stepHours = cfg.StepHours
	l.kwPerEV = cfg.TransformerKWPerEV
}

// capacity returns the bound on summed power for n EVs.
func (l *LP) capacity(n int) float64 {
	capKW := float64(n) * l.kwPerEV
	if c := l.Weights.CapacityKW; c > 0 && c < capKW {
		capKW = c
	}
	return capKW
}

// Fallbacks returns how many decisions were delegated to the rule policy.
func (l *LP) Fallbacks() uint64 { return l.fallbacks.Load() }

func (l *LP) Decide(obs gridedge.Observation, n int) ([]float64, error) {
	st, err := l.scales.Decode(obs, n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []float64{}, nil
	}
	weights, limits := l.objective(st)
	power, err := lpSolve(weights, limits, l.capacity(n))
	if err != nil {
		l.fallbacks.Add(1)
		return l.fallback.rates(st), nil
	}
	rates := make([]float64, n)
	for i, p := range power {
		if limits[i] > 0 {
			rates[i] = math.Min(1, math.Max(0, p/limits[i]))
		}
	}
	return rates, nil
}

func (l *LP) objective(st gridedge.State) (weights, limits []float64) {
	w := l.Weights
	weights = make([]float64, len(st.EVs))
	limits = make([]float64, len(st.EVs))
	for i, ev := range st.EVs {
		if !(ev.PowerLimitKW > 0) {
			continue
		}
		limits[i] = ev.PowerLimitKW
		v := w.Urgency*(1-ev.SoC)/math.Max(ev.HoursToDeparture, l.stepHours) +
			w.Renewable*st.Renewable/limits[i] -
			st.Price*l.stepHours
		if st.Price > ev.CostThreshold {
			v -= w.ThresholdPenalty / limits[i]
		}
		if !math.IsNaN(v) {
			weights[i] = v
		}
	}
	return weights, limits
}

// solveLP maximises sum(w_i p_i) subject to 0 <= p_i <= limit_i and
// sum(p_i) <= capKW. The problem is put in standard form with one slack per
// bound and one for the capacity row, so the slacks form a feasible basis.
func solveLP(weights, limits []float64, capKW float64) ([]float64, error) {
	n := len(weights)
	if capKW < 0 {
		return nil, ErrInfeasible
	}
	cols := 2*n + 1
	c := make([]float64, cols)
	for i, w := range weights {
		c[i] = -w
	}
	A := mat.NewDense(n+1, cols, nil)
	b := make([]float64, n+1)
	basic := make([]int, n+1)
	for i := 0; i < n; i++ {
		A.Set(i, i, 1)
		A.Set(i, n+i, 1)
		b[i] = limits[i]
		A.Set(n, i, 1)
		basic[i] = n + i
	}
	A.Set(n, 2*n, 1)
	b[n] = capKW
	basic[n] = 2 * n

	_, x, err := lp.Simplex(c, A, b, 1e-10, basic)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return nil, ErrInfeasible
		}
		return nil, err
	}
	return x[:n], nil
}

// lpSolve points to the function used to solve the LP. Tests override it to
// simulate solver failures.
var lpSolve = solveLP
