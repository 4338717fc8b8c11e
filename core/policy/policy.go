// Package policy contains charging policies for the grid-edge environment.
// A policy maps an observation to one charging rate in [0, 1] per EV.
package policy

import (
	"fmt"

	"github.com/kilianp07/evgrid/core/factory"
	"github.com/kilianp07/evgrid/core/gridedge"
)

// Policy decides charging rates.
type Policy interface {
	Name() string
	Decide(obs gridedge.Observation, n int) ([]float64, error)
}

// ScaleSetter is implemented by policies that decode observations and need
// the normalisation of a non-default environment.
type ScaleSetter interface {
	SetScales(gridedge.Scales)
}

// EnvSetter is implemented by policies that plan against the physical
// limits of the environment, such as its transformer capacity.
type EnvSetter interface {
	SetEnv(gridedge.Config)
}

// Registry holds the built-in policy factories.
var Registry = factory.NewRegistry[Policy]()

func init() {
	Registry.MustRegister("rule", func(conf map[string]any) (Policy, error) {
		r := NewRule()
		if err := factory.Decode(conf, &r.Thresholds); err != nil {
			return nil, err
		}
		return r, nil
	})
	Registry.MustRegister("lp", func(conf map[string]any) (Policy, error) {
		l := NewLP()
		if err := factory.Decode(conf, &l.Weights); err != nil {
			return nil, err
		}
		return l, nil
	})
	Registry.MustRegister("constant", func(conf map[string]any) (Policy, error) {
		var c struct {
			Rate float64 `json:"rate"`
		}
		c.Rate = 1
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Rate < 0 || c.Rate > 1 {
			return nil, fmt.Errorf("constant rate %.2f outside [0, 1]", c.Rate)
		}
		return Constant{Rate: c.Rate}, nil
	})
}

// New builds the policy described by cfg for an environment configured with
// env. Zero fields of env take the environment defaults.
func New(cfg factory.ModuleConfig, env gridedge.Config) (Policy, error) {
	if cfg.Type == "" {
		cfg.Type = "rule"
	}
	p, err := Registry.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", cfg.Type, err)
	}
	env.SetDefaults()
	switch s := p.(type) {
	case EnvSetter:
		s.SetEnv(env)
	case ScaleSetter:
		s.SetScales(env.Scales())
	}
	return p, nil
}

// Constant charges every EV at the same rate.
type Constant struct {
	Rate float64
}

func (Constant) Name() string { return "constant" }

func (c Constant) Decide(_ gridedge.Observation, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		out[i] = c.Rate
	}
	return out, nil
}
