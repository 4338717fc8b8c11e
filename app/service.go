package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apicity "github.com/kilianp07/evgrid/api/city"
	apigridedge "github.com/kilianp07/evgrid/api/gridedge"
	apihistory "github.com/kilianp07/evgrid/api/history"
	"github.com/kilianp07/evgrid/api/live"
	"github.com/kilianp07/evgrid/api/vehicles"
	"github.com/kilianp07/evgrid/config"
	"github.com/kilianp07/evgrid/core/city"
	"github.com/kilianp07/evgrid/core/gridedge"
	"github.com/kilianp07/evgrid/core/history"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/metrics/energy"
	coremon "github.com/kilianp07/evgrid/core/monitoring"
	"github.com/kilianp07/evgrid/core/policy"
	"github.com/kilianp07/evgrid/core/roadnet"
	"github.com/kilianp07/evgrid/infra/kpi"
	"github.com/kilianp07/evgrid/infra/logger"
	"github.com/kilianp07/evgrid/infra/metrics"
	infmon "github.com/kilianp07/evgrid/infra/monitoring"
	"github.com/kilianp07/evgrid/internal/eventbus"

	// sink and store registrations
	_ "github.com/kilianp07/evgrid/infra/mqtt"
	_ "github.com/kilianp07/evgrid/infra/store"
)

// Service hosts the city simulation and the grid-edge environment behind the
// HTTP API and steps both on a schedule.
type Service struct {
	City     *city.Simulation
	GridEdge *gridedge.Env
	Policy   policy.Policy

	cfg     *config.Config
	log     logger.Logger
	bus     *eventbus.Bus
	sink    coremetrics.MetricsSink
	energy  energy.Store
	history history.Store
	hub     *live.Hub
	sched   *gocron.Scheduler
	router  *mux.Router
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	logg := logger.New("service")

	mon, err := infmon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	graph, err := loadGraph(cfg.City)
	if err != nil {
		return nil, fmt.Errorf("road network: %w", err)
	}
	bus := eventbus.New()
	sim, err := city.New(cfg.City, graph,
		city.WithBus(bus),
		city.WithLogger(logger.New("city")),
	)
	if err != nil {
		return nil, err
	}
	sim.AddVehicles(cfg.City.FleetSize())

	env, err := gridedge.New(cfg.GridEdge,
		gridedge.WithBus(bus),
		gridedge.WithLogger(logger.New("gridedge")),
	)
	if err != nil {
		return nil, err
	}
	pol, err := policy.New(cfg.Policy, env.Config())
	if err != nil {
		return nil, err
	}

	svc := &Service{
		City:     sim,
		GridEdge: env,
		Policy:   pol,
		cfg:      cfg,
		log:      logg,
		bus:      bus,
	}
	if err := svc.initSinks(); err != nil {
		_ = svc.closeStores()
		return nil, err
	}
	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Store)
		if err != nil {
			_ = svc.closeStores()
			return nil, fmt.Errorf("history store: %w", err)
		}
		svc.history = store
	}
	if cfg.Server.Live {
		svc.hub = live.NewHub(logger.New("live"))
	}
	svc.router = svc.routes()
	return svc, nil
}

func loadGraph(cfg city.Config) (*roadnet.Graph, error) {
	if cfg.NetworkFile != "" {
		return roadnet.LoadFile(cfg.NetworkFile)
	}
	cfg.SetDefaults()
	return roadnet.Grid(cfg.Center, cfg.RadiusM, cfg.GridSpacingM)
}

func (s *Service) initSinks() error {
	sink, err := coremetrics.NewMetricsSink(s.cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	if !s.cfg.KPI.Enabled {
		s.sink = sink
		return nil
	}
	var store energy.Store = energy.NewMemoryStore()
	if s.cfg.KPI.Path != "" {
		st, err := kpi.NewSQLiteStore(s.cfg.KPI.Path)
		if err != nil {
			return fmt.Errorf("kpi store: %w", err)
		}
		store = st
	}
	s.energy = store
	es, err := metrics.NewEnergySink(store, s.cfg.KPI.CO2Factor, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("energy sink: %w", err)
	}
	s.sink = coremetrics.NewMultiSink(sink, es)
	return nil
}

// Handler returns the HTTP handler with CORS and access logging applied.
func (s *Service) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.cfg.Server.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.cfg.Server.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return handlers.CombinedLoggingHandler(accessLog{logger.New("http")}, h)
}

func (s *Service) routes() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	vehicles.Register(r, s.City, s.energy, s.cfg.KPI.CO2Factor)
	apigridedge.NewHandler(s.GridEdge, s.Policy).Register(r)
	if s.history != nil {
		r.Handle("/api/history", apihistory.NewHandler(s.history, s.cfg.History.Token)).Methods(http.MethodGet)
	}
	if s.hub != nil {
		r.Handle("/ws", s.hub)
	}
	apicity.Register(r, s.City)
	return r
}

// Run starts the collectors, the step jobs and the HTTP server and blocks
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var done []<-chan struct{}
	done = append(done, metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("collector")))
	if s.history != nil {
		done = append(done, history.StartRecorder(ctx, s.bus, s.history, logger.New("history")))
	}
	if s.hub != nil {
		done = append(done, s.hub.Run(ctx, s.bus))
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			defer coremon.Recover()
			if err := metrics.StartPromServer(ctx, port, logger.New("prometheus")); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if err := s.startScheduler(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		defer coremon.Recover()
		s.log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	s.sched.Stop()
	shutdownCtx, stop := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	cancel()
	for _, d := range done {
		<-d
	}
	return runErr
}

func (s *Service) startScheduler(ctx context.Context) error {
	s.sched = gocron.NewScheduler(time.UTC)
	s.sched.SingletonModeAll()
	if _, err := s.sched.Every(s.cfg.Scheduler.CityInterval).Do(func() {
		if err := s.StepCity(ctx); err != nil {
			s.log.Errorf("city step: %v", err)
			coremon.CaptureException(err, map[string]string{"job": "city"})
		}
	}); err != nil {
		return fmt.Errorf("schedule city step: %w", err)
	}
	if iv := s.cfg.Scheduler.GridEdgeInterval; iv > 0 {
		if _, err := s.sched.Every(iv).Do(func() {
			if err := s.StepGridEdge(); err != nil {
				s.log.Errorf("gridedge step: %v", err)
				coremon.CaptureException(err, map[string]string{"job": "gridedge"})
			}
		}); err != nil {
			return fmt.Errorf("schedule gridedge step: %w", err)
		}
	}
	s.sched.StartAsync()
	return nil
}

// StepCity advances the city simulation by one step.
func (s *Service) StepCity(ctx context.Context) (err error) {
	defer coremon.RecoverError(&err)
	res, err := s.City.Step(ctx)
	if err != nil {
		return err
	}
	if len(res.Stranded) > 0 {
		s.log.Debugf("step %d: %d vehicles stranded", res.Step, len(res.Stranded))
	}
	return nil
}

// StepGridEdge lets the policy choose an action for the grid-edge
// environment and starts a new episode once the current one ends.
func (s *Service) StepGridEdge() (err error) {
	defer coremon.RecoverError(&err)
	n := s.GridEdge.Config().EVs
	action, err := s.Policy.Decide(s.GridEdge.Observation(), n)
	if err != nil {
		return fmt.Errorf("policy %s: %w", s.Policy.Name(), err)
	}
	res, err := s.GridEdge.Step(action)
	if err != nil {
		return err
	}
	if res.Terminated || res.Truncated {
		s.GridEdge.Reset(nil)
		s.log.Infof("gridedge episode finished, new run %s", s.GridEdge.RunID())
	}
	return nil
}

// Close releases the stores and the event bus.
func (s *Service) Close() error {
	s.bus.Close()
	err := s.closeStores()
	coremon.Flush(2 * time.Second)
	return err
}

func (s *Service) closeStores() error {
	var errs []error
	if s.history != nil {
		errs = append(errs, s.history.Close())
	}
	if c, ok := s.energy.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return errors.Join(errs...)
}

// accessLog routes gorilla access lines to the component logger.
type accessLog struct{ log logger.Logger }

func (a accessLog) Write(p []byte) (int, error) {
	a.log.Debugf("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
