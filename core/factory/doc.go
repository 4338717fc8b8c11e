// Package factory is a generic registry that builds pluggable modules
// (metrics sinks, charging policies, history stores) from a type name and a
// loosely typed settings map, as found in configuration files.
//
//	reg := factory.NewRegistry[policy.Policy]()
//	_ = reg.Register("constant", func(conf map[string]any) (policy.Policy, error) {
//	    var c struct{ Rate float64 `json:"rate"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return policy.Constant{Rate: c.Rate}, nil
//	})
//	p, err := reg.Create(factory.ModuleConfig{Type: "constant", Conf: map[string]any{"rate": 0.5}})
package factory
