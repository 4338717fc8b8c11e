// Package city simulates electric vehicles driving around a road network,
// queueing for charging stations and drawing power from solar panels and a
// power plant.
//
// A step moves every vehicle, charges the plugged-in ones and balances the
// charging demand against generation. Simulation is safe for concurrent use:
// steps and snapshots are serialised by an internal mutex.
package city

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/logger"
	"github.com/kilianp07/evgrid/core/model"
	"github.com/kilianp07/evgrid/core/roadnet"
	"github.com/kilianp07/evgrid/internal/eventbus"
	"github.com/kilianp07/evgrid/internal/ptr"
)

// Simulation holds the city state.
type Simulation struct {
	mu    sync.Mutex
	cfg   Config
	graph *roadnet.Graph
	src   rand.Source
	rng   *rand.Rand
	clock clock.Clock
	log   logger.Logger
	bus   eventbus.EventBus
	runID string

	step     int
	now      time.Time
	vehicles []*model.Vehicle
	byID     map[string]*model.Vehicle
	stations []*model.ChargingStation
	plants   []*model.PowerPlant
	panels   []*model.SolarPanel
	balance  model.GridBalance
}

// Option customises a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Simulation) { s.log = l } }

// WithClock sets the clock used for the time of day.
func WithClock(c clock.Clock) Option { return func(s *Simulation) { s.clock = c } }

// WithBus publishes step events on bus.
func WithBus(b eventbus.EventBus) Option { return func(s *Simulation) { s.bus = b } }

// WithSource overrides the random source seeded from Config.Seed.
func WithSource(src rand.Source) Option { return func(s *Simulation) { s.src = src } }

// WithRunID sets the run identifier attached to events.
func WithRunID(id string) Option { return func(s *Simulation) { s.runID = id } }

// New builds a simulation on graph. Vehicles are added with AddVehicles.
func New(cfg Config, graph *roadnet.Graph, opts ...Option) (*Simulation, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("city config: %w", err)
	}
	if graph == nil || graph.Len() == 0 {
		return nil, roadnet.ErrEmpty
	}
	s := &Simulation{
		cfg:   cfg,
		graph: graph,
		clock: clock.New(),
		log:   logger.Nop{},
		byID:  make(map[string]*model.Vehicle),
		runID: uuid.NewString(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.src == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		s.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
	s.rng = rand.New(s.src)
	s.now = s.clock.Now()
	for _, st := range cfg.Stations {
		st := st
		st.Available = true
		st.VehicleID = ""
		s.stations = append(s.stations, &st)
	}
	for _, p := range cfg.Plants {
		p := p
		s.plants = append(s.plants, &p)
	}
	for _, p := range cfg.Panels {
		p := p
		s.panels = append(s.panels, &p)
	}
	return s, nil
}

// RunID returns the identifier of this run.
func (s *Simulation) RunID() string { return s.runID }

// Graph returns the road network.
func (s *Simulation) Graph() *roadnet.Graph { return s.graph }

// AddVehicles places n new vehicles on random nodes with a random initial
// state of charge. It returns the IDs of the new vehicles.
func (s *Simulation) AddVehicles(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	soc := distuv.Uniform{Min: s.cfg.InitialSoCMin, Max: s.cfg.InitialSoCMax, Src: s.src}
	ids := s.graph.IDs()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		num := len(s.vehicles)
		start, _ := s.graph.Node(ids[s.rng.IntN(len(ids))])
		v := &model.Vehicle{
			ID:                  model.VehicleID(num),
			Position:            start.Pos,
			BatteryCapacityKWh:  s.cfg.BatteryCapacityKWh,
			BatteryKWh:          soc.Rand() * s.cfg.BatteryCapacityKWh,
			ConsumptionKWhPerKm: ptr.Deref(s.cfg.ConsumptionKWhPerKm, 0),
			Color:               model.ColorFor(num),
		}
		s.vehicles = append(s.vehicles, v)
		s.byID[v.ID] = v
		out = append(out, v.ID)
	}
	s.log.Infof("added %d vehicles (fleet size %d)", n, len(s.vehicles))
	return out
}

// StepResult summarises what happened during one step.
type StepResult struct {
	Step int
	Time time.Time
	// DrivenKWh and ChargedKWh are keyed by vehicle ID.
	DrivenKWh  map[string]float64
	ChargedKWh map[string]float64
	// Plugged and Unplugged list the charging sessions that started or
	// finished.
	Plugged   []Session
	Unplugged []Session
	Stranded  []string
	Balance   model.GridBalance
}

// Session pairs a vehicle with the station it charges at.
type Session struct {
	VehicleID string
	StationID string
}

// Step advances the simulation by one tick: vehicles move, stations charge
// and generation is balanced against charging demand.
func (s *Simulation) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = s.clock.Now()
	res := StepResult{
		Time:       s.now,
		DrivenKWh:  map[string]float64{},
		ChargedKWh: map[string]float64{},
	}
	s.updateVehicles(&res)
	s.updateStations(&res)
	s.updatePowerSources(&res)
	s.step++
	res.Step = s.step
	s.publish(res)
	return res, nil
}

// StepCount returns the number of completed steps.
func (s *Simulation) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Simulation) publish(res StepResult) {
	if s.bus == nil {
		return
	}
	for _, id := range res.Stranded {
		v := s.byID[id]
		s.bus.Publish(events.StrandedEvent{
			RunID: s.runID, VehicleID: id, Position: v.Position,
			BatteryKWh: v.BatteryKWh, Time: res.Time,
		})
	}
	for _, sess := range res.Plugged {
		s.bus.Publish(s.chargingEvent(sess, events.ChargingStarted, res.Time))
	}
	for _, sess := range res.Unplugged {
		s.bus.Publish(s.chargingEvent(sess, events.ChargingFinished, res.Time))
	}
	snap := s.snapshot()
	s.bus.Publish(events.CityStepEvent{
		RunID:      s.runID,
		Step:       res.Step,
		Time:       res.Time,
		Vehicles:   snap.Vehicles,
		Stations:   snap.Stations,
		Balance:    res.Balance,
		DrivenKWh:  res.DrivenKWh,
		ChargedKWh: res.ChargedKWh,
	})
}

func (s *Simulation) chargingEvent(sess Session, phase events.ChargingPhase, t time.Time) events.ChargingEvent {
	v := s.byID[sess.VehicleID]
	return events.ChargingEvent{
		RunID: s.runID, VehicleID: sess.VehicleID, StationID: sess.StationID, Phase: phase,
		BatteryKWh: v.BatteryKWh, SoC: v.SoC(), Time: t,
	}
}

// Snapshot is a deep copy of the city state.
type Snapshot struct {
	RunID    string                  `json:"run_id"`
	Step     int                     `json:"step"`
	Time     time.Time               `json:"time"`
	Vehicles []model.Vehicle         `json:"vehicles"`
	Stations []model.ChargingStation `json:"stations"`
	Plants   []model.PowerPlant      `json:"plants"`
	Panels   []model.SolarPanel      `json:"panels"`
	Balance  model.GridBalance       `json:"balance"`
}

// Counts returns the number of moving, charging and stranded vehicles.
func (s Snapshot) Counts() (moving, charging, stranded int) {
	for _, v := range s.Vehicles {
		switch v.Status() {
		case model.StatusCharging:
			charging++
		case model.StatusStranded:
			stranded++
		default:
			moving++
		}
	}
	return moving, charging, stranded
}

// Snapshot returns a copy of the current state.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Simulation) snapshot() Snapshot {
	snap := Snapshot{RunID: s.runID, Step: s.step, Time: s.now, Balance: s.balance}
	snap.Vehicles = make([]model.Vehicle, len(s.vehicles))
	for i, v := range s.vehicles {
		snap.Vehicles[i] = v.Clone()
	}
	snap.Stations = make([]model.ChargingStation, len(s.stations))
	for i, st := range s.stations {
		snap.Stations[i] = *st
	}
	snap.Plants = make([]model.PowerPlant, len(s.plants))
	for i, p := range s.plants {
		snap.Plants[i] = *p
	}
	snap.Panels = make([]model.SolarPanel, len(s.panels))
	for i, p := range s.panels {
		snap.Panels[i] = *p
	}
	return snap
}
