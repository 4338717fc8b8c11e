package events

import "time"

// GridStepEvent is published after every grid-edge environment step.
type GridStepEvent struct {
	RunID      string    `json:"run_id"`
	Step       int       `json:"step"`
	Hour       float64   `json:"hour"`
	Price      float64   `json:"price"`
	Renewable  float64   `json:"renewable"`
	LoadKW     float64   `json:"load_kw"`
	CapacityKW float64   `json:"capacity_kw"`
	Reward     float64   `json:"reward"`
	MeanSoC    float64   `json:"mean_soc"`
	Rates      []float64 `json:"rates"`
	Time       time.Time `json:"time"`
}

// Overloaded reports whether the load exceeded the transformer capacity.
func (e GridStepEvent) Overloaded() bool { return e.LoadKW > e.CapacityKW }
