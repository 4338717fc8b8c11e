package policy

import "github.com/kilianp07/evgrid/core/gridedge"

// RuleThresholds parameterises the rule-based policy. The first matching
// rule wins for each EV.
type RuleThresholds struct {
	EmergencySoC       float64 `json:"emergency_soc"`
	EmergencyHours     float64 `json:"emergency_hours"`
	HighRenewable      float64 `json:"high_renewable"`
	CheapTargetSoC     float64 `json:"cheap_target_soc"`
	DepartureSoonHours float64 `json:"departure_soon_hours"`
	DepartureSoonSoC   float64 `json:"departure_soon_soc"`
	HighLoad           float64 `json:"high_load"`
	NormalSoC          float64 `json:"normal_soc"`
}

// DefaultRuleThresholds returns the reference thresholds.
func DefaultRuleThresholds() RuleThresholds {
	return RuleThresholds{
		EmergencySoC:       0.2,
		EmergencyHours:     2,
		HighRenewable:      0.6,
		CheapTargetSoC:     0.8,
		DepartureSoonHours: 5,
		DepartureSoonSoC:   0.9,
		HighLoad:           0.8,
		NormalSoC:          0.6,
	}
}

// Rates applied by each rule, in order.
const (
	RateEmergency     = 1.0
	RateRenewable     = 0.8
	RateCheap         = 0.6
	RateDepartureSoon = 0.4
	RateHighLoad      = 0.1
	RateNormal        = 0.3
)

// Rule is the smart-charging heuristic.
type Rule struct {
	Thresholds RuleThresholds
	scales     gridedge.Scales
}

// NewRule returns a rule policy with default thresholds.
func NewRule() *Rule {
	return &Rule{Thresholds: DefaultRuleThresholds(), scales: gridedge.DefaultScales()}
}

func (*Rule) Name() string { return "rule" }

// SetScales implements ScaleSetter.
func (r *Rule) SetScales(s gridedge.Scales) { r.scales = s }

func (r *Rule) Decide(obs gridedge.Observation, n int) ([]float64, error) {
	st, err := r.scales.Decode(obs, n)
	if err != nil {
		return nil, err
	}
	return r.rates(st), nil
}

func (r *Rule) rates(st gridedge.State) []float64 {
	t := r.Thresholds
	out := make([]float64, len(st.EVs))
	for i, ev := range st.EVs {
		switch {
		case ev.SoC < t.EmergencySoC || ev.HoursToDeparture < t.EmergencyHours:
			out[i] = RateEmergency
		case st.Renewable > t.HighRenewable:
			out[i] = RateRenewable
		case st.Price < ev.CostThreshold && ev.SoC < t.CheapTargetSoC:
			out[i] = RateCheap
		case ev.HoursToDeparture < t.DepartureSoonHours && ev.SoC < t.DepartureSoonSoC:
			out[i] = RateDepartureSoon
		case st.Load > t.HighLoad:
			out[i] = RateHighLoad
		case ev.SoC < t.NormalSoC:
			out[i] = RateNormal
		}
	}
	return out
}
