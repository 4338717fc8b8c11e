// Package gridedge is a step-based environment for coordinating the
// charging of parked EVs under a time-of-use tariff, variable solar supply
// and a shared transformer limit.
//
// Each step advances the clock by a fixed interval, applies one charging
// rate in [0, 1] per EV and returns the next observation and a reward.
package gridedge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/logger"
	"github.com/kilianp07/evgrid/core/model"
	"github.com/kilianp07/evgrid/internal/eventbus"
	"github.com/kilianp07/evgrid/internal/ptr"
)

// ErrActionSize is returned by Step when the action length differs from
// the number of EVs.
var ErrActionSize = errors.New("gridedge: action size mismatch")

// Reward terms.
const (
	DeparturePenalty = 10.0
	OverloadPenalty  = 5.0
	RenewableBonus   = 2.0
	PricePenalty     = 1.0
	// ReadySoC is the SoC an EV must reach before departure.
	ReadySoC = 0.8
)

const seedMix = 0x9e3779b97f4a7c15

// Env is the charging-coordination environment. It is safe for concurrent
// use.
type Env struct {
	mu     sync.Mutex
	cfg    Config
	scales Scales
	pcg    *rand.PCG
	rng    *rand.Rand
	clock  clock.Clock
	log    logger.Logger
	bus    eventbus.EventBus

	runID     string
	steps     int
	hour      float64
	renewable float64
	loadKW    float64
	reward    float64
	rates     []float64
	evs       []model.EVState
}

// Option customises an Env.
type Option func(*Env)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(e *Env) { e.log = l } }

// WithBus publishes a GridStepEvent after every step.
func WithBus(b eventbus.EventBus) Option { return func(e *Env) { e.bus = b } }

// WithClock sets the clock used to timestamp events.
func WithClock(c clock.Clock) Option { return func(e *Env) { e.clock = c } }

// New validates cfg and returns a reset environment.
func New(cfg Config, opts ...Option) (*Env, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gridedge config: %w", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	e := &Env{
		cfg:    cfg,
		scales: cfg.Scales(),
		pcg:    rand.NewPCG(seed, seed^seedMix),
		clock:  clock.New(),
		log:    logger.Nop{},
	}
	e.rng = rand.New(e.pcg)
	for _, o := range opts {
		o(e)
	}
	e.Reset(nil)
	return e, nil
}

// Config returns the effective configuration.
func (e *Env) Config() Config { return e.cfg }

// Scales returns the observation normalisation.
func (e *Env) Scales() Scales { return e.scales }

// RunID identifies the current episode. It changes on every Reset.
func (e *Env) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Reset starts a new episode. A non-nil seed reseeds the random source.
func (e *Env) Reset(seed *uint64) Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seed != nil {
		e.pcg.Seed(*seed, *seed^seedMix)
	}
	e.runID = uuid.NewString()
	e.steps = 0
	e.reward = 0
	e.loadKW = 0
	e.rates = make([]float64, e.cfg.EVs)
	e.hour = distuv.Uniform{Min: 0, Max: 24, Src: e.pcg}.Rand()
	e.evs = make([]model.EVState, e.cfg.EVs)
	for i := range e.evs {
		e.evs[i] = model.EVState{
			SoC:              e.uniform(e.cfg.SoCMin, e.cfg.SoCMax),
			HoursToDeparture: e.uniform(e.cfg.DepartureMinH, e.cfg.DepartureMaxH),
			PowerLimitKW:     e.cfg.PowerLimitsKW[e.rng.IntN(len(e.cfg.PowerLimitsKW))],
			CostThreshold:    e.uniform(e.cfg.ThresholdMin, e.cfg.ThresholdMax),
		}
	}
	e.renewable = e.sampleRenewable()
	e.log.Infof("grid-edge episode %s reset at %.2fh with %d evs", e.runID, e.hour, e.cfg.EVs)
	return e.observation()
}

// StepResult is the outcome of one step.
type StepResult struct {
	Observation Observation `json:"observation"`
	Reward      float64     `json:"reward"`
	Terminated  bool        `json:"terminated"`
	Truncated   bool        `json:"truncated"`
	Info        Info        `json:"info"`
}

// Info carries diagnostics for a step.
type Info struct {
	TotalLoadKW float64   `json:"total_load_kw"`
	Price       float64   `json:"price"`
	Renewable   float64   `json:"renewable_availability"`
	Hour        float64   `json:"hour"`
	Step        int       `json:"step"`
	Rates       []float64 `json:"rates"`
}

// Step applies one charging rate per EV and advances time by one interval.
func (e *Env) Step(action []float64) (StepResult, error) {
	e.mu.Lock()
	if len(action) != e.cfg.EVs {
		e.mu.Unlock()
		return StepResult{}, fmt.Errorf("%w: got %d want %d", ErrActionSize, len(action), e.cfg.EVs)
	}
	e.hour = math.Mod(e.hour+e.cfg.StepHours, 24)
	e.renewable = e.sampleRenewable()
	price := e.price()

	rates := make([]float64, len(action))
	for i, a := range action {
		rates[i] = clip(a)
	}
	e.loadKW = e.load(rates)

	reward := 0.0
	for i := range e.evs {
		ev := &e.evs[i]
		ev.SoC = math.Min(1, ev.SoC+rates[i]*ev.PowerLimitKW*e.cfg.StepHours/e.cfg.BatteryKWh)
		ev.HoursToDeparture -= e.cfg.StepHours
		reward += e.evReward(*ev, rates[i], price)
		if ev.HoursToDeparture <= 0 {
			ev.SoC = e.uniform(e.cfg.SoCMin, e.cfg.SoCMax)
			ev.HoursToDeparture = e.uniform(e.cfg.DepartureMinH, e.cfg.DepartureMaxH)
		}
	}
	e.steps++
	e.reward = reward
	e.rates = rates

	res := StepResult{
		Observation: e.observation(),
		Reward:      reward,
		Truncated:   e.cfg.MaxSteps > 0 && e.steps >= e.cfg.MaxSteps,
		Info: Info{
			TotalLoadKW: e.loadKW,
			Price:       price,
			Renewable:   e.renewable,
			Hour:        e.hour,
			Step:        e.steps,
			Rates:       append([]float64(nil), rates...),
		},
	}
	ev := e.event(res)
	e.mu.Unlock()

	e.log.Debugf("grid-edge step %d hour=%.2f load=%.1fkW price=%.3f reward=%.2f",
		res.Info.Step, res.Info.Hour, res.Info.TotalLoadKW, res.Info.Price, reward)
	if e.loadKW > e.cfg.TransformerKW() {
		e.log.Warnf("transformer overloaded: %.1f kW > %.1f kW", ev.LoadKW, ev.CapacityKW)
	}
	if e.bus != nil {
		e.bus.Publish(ev)
	}
	return res, nil
}

// Observation returns the current observation.
func (e *Env) Observation() Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observation()
}

// Price returns the current tariff in $/kWh.
func (e *Env) Price() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.price()
}

// RenewableAvailability returns the renewable share sampled for the current
// hour.
func (e *Env) RenewableAvailability() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renewable
}

// Snapshot is the environment state exposed over the API.
type Snapshot struct {
	RunID      string          `json:"run_id"`
	Step       int             `json:"step"`
	Hour       float64         `json:"hour"`
	Price      float64         `json:"price"`
	Renewable  float64         `json:"renewable"`
	LoadKW     float64         `json:"load_kw"`
	CapacityKW float64         `json:"capacity_kw"`
	LastReward float64         `json:"last_reward"`
	Rates      []float64       `json:"rates"`
	EVs        []model.EVState `json:"evs"`
}

// Snapshot returns a copy of the state.
func (e *Env) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		RunID:      e.runID,
		Step:       e.steps,
		Hour:       e.hour,
		Price:      e.price(),
		Renewable:  e.renewable,
		LoadKW:     e.loadKW,
		CapacityKW: e.cfg.TransformerKW(),
		LastReward: e.reward,
		Rates:      append([]float64(nil), e.rates...),
		EVs:        append([]model.EVState(nil), e.evs...),
	}
}

// Decider chooses charging rates from an observation.
type Decider interface {
	Decide(obs Observation, n int) ([]float64, error)
}

// Summary aggregates a rollout.
type Summary struct {
	Steps         int     `json:"steps"`
	TotalReward   float64 `json:"total_reward"`
	MeanLoadKW    float64 `json:"mean_load_kw"`
	PeakLoadKW    float64 `json:"peak_load_kw"`
	OverloadSteps int     `json:"overload_steps"`
	EnergyKWh     float64 `json:"energy_kwh"`
	Cost          float64 `json:"cost"`
}

// Rollout runs d for up to steps steps, stopping early on truncation or
// context cancellation. fn, when set, sees every step result.
func (e *Env) Rollout(ctx context.Context, d Decider, steps int, fn func(StepResult)) (Summary, error) {
	var sum Summary
	obs := e.Observation()
	capKW := e.cfg.TransformerKW()
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		action, err := d.Decide(obs, e.cfg.EVs)
		if err != nil {
			return sum, fmt.Errorf("decide step %d: %w", i+1, err)
		}
		res, err := e.Step(action)
		if err != nil {
			return sum, err
		}
		sum.Steps++
		sum.TotalReward += res.Reward
		sum.MeanLoadKW += res.Info.TotalLoadKW
		sum.PeakLoadKW = math.Max(sum.PeakLoadKW, res.Info.TotalLoadKW)
		if res.Info.TotalLoadKW > capKW {
			sum.OverloadSteps++
		}
		kwh := res.Info.TotalLoadKW * e.cfg.StepHours
		sum.EnergyKWh += kwh
		sum.Cost += kwh * res.Info.Price
		if fn != nil {
			fn(res)
		}
		obs = res.Observation
		if res.Terminated || res.Truncated {
			break
		}
	}
	if sum.Steps > 0 {
		sum.MeanLoadKW /= float64(sum.Steps)
	}
	return sum, nil
}

func (e *Env) uniform(lo, hi float64) float64 {
	if lo == hi {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: e.pcg}.Rand()
}

func (e *Env) noise() float64 {
	sigma := ptr.Deref(e.cfg.NoiseSigma, 0)
	if sigma == 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: sigma, Src: e.pcg}.Rand()
}

func (e *Env) sampleRenewable() float64 {
	if e.hour >= 6 && e.hour <= 18 {
		solar := math.Sin(math.Pi*(e.hour-6)/12) * 0.8
		return math.Max(0, solar+e.noise())
	}
	return math.Max(0, e.noise())
}

func (e *Env) price() float64 {
	p := e.cfg.BasePrice
	if isPeak(e.hour) {
		p *= e.cfg.PeakMultiplier
	}
	return p * (1 - 0.3*e.renewable)
}

func isPeak(hour float64) bool {
	return (hour >= 9 && hour <= 12) || (hour >= 17 && hour <= 20)
}

func (e *Env) load(rates []float64) float64 {
	total := 0.0
	for i, r := range rates {
		total += r * e.evs[i].PowerLimitKW
	}
	return total
}

func (e *Env) evReward(ev model.EVState, rate, price float64) float64 {
	r := -(rate * ev.PowerLimitKW * price * e.cfg.StepHours)
	if ev.HoursToDeparture <= 0.5 && ev.SoC < ReadySoC {
		r -= DeparturePenalty
	}
	if e.loadKW > e.cfg.TransformerKW() {
		r -= OverloadPenalty
	}
	if rate > 0 {
		r += RenewableBonus * e.renewable * rate
	}
	if price > ev.CostThreshold && rate > 0.2 {
		r -= PricePenalty
	}
	return r
}

func (e *Env) observation() Observation {
	return e.scales.Encode(e.evs, e.hour, e.price(), e.renewable, e.loadKW/e.cfg.TransformerKW())
}

func (e *Env) event(res StepResult) events.GridStepEvent {
	mean := 0.0
	for _, ev := range e.evs {
		mean += ev.SoC
	}
	mean /= float64(len(e.evs))
	return events.GridStepEvent{
		RunID:      e.runID,
		Step:       res.Info.Step,
		Hour:       res.Info.Hour,
		Price:      res.Info.Price,
		Renewable:  res.Info.Renewable,
		LoadKW:     res.Info.TotalLoadKW,
		CapacityKW: e.cfg.TransformerKW(),
		Reward:     res.Reward,
		MeanSoC:    mean,
		Rates:      res.Info.Rates,
		Time:       e.clock.Now(),
	}
}

// clip bounds a rate to [0, 1]; NaN becomes 0.
func clip(a float64) float64 {
	switch {
	case math.IsNaN(a) || a < 0:
		return 0
	case a > 1:
		return 1
	}
	return a
}
