package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"rallynav/internal/api"
	"rallynav/pkg/config"
	"rallynav/pkg/core"
	"rallynav/pkg/db"
	"rallynav/pkg/db/maintenance"
	"rallynav/pkg/flightlog"
	"rallynav/pkg/geo"
	"rallynav/pkg/gps"
	"rallynav/pkg/gps/gpsd"
	"rallynav/pkg/gps/mockgps"
	"rallynav/pkg/logging"
	"rallynav/pkg/power"
	"rallynav/pkg/probe"
	"rallynav/pkg/route"
	"rallynav/pkg/status"
	"rallynav/pkg/store"
	"rallynav/pkg/version"
	"rallynav/pkg/waypoint"
)

const defaultConfigPath = "configs/rallynav.yaml"

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	importNASR = flag.String("import-nasr", "", "Import a NASR subscription directory and exit")
	states     = flag.String("states", "", "Comma separated state filter for -import-nasr (default from config)")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *importNASR != "" {
		if err := runImport(ctx, *configPath, *importNASR, *states); err != nil {
			fmt.Fprintf(os.Stderr, "NASR import failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func runImport(ctx context.Context, cfgPath, dir, stateList string) error {
	appCfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	filter := appCfg.Import.States
	if stateList != "" {
		filter = splitStates(stateList)
	}
	return maintenance.ImportNASR(ctx, st, dir, filter)
}

func splitStates(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("RallyNav Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, dbConn, appCfg); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	svc, err := initServices(ctx, appCfg, st)
	if err != nil {
		return err
	}
	defer svc.gps.Close()
	resumeFlight(ctx, svc)

	results := probe.Run(ctx, []probe.Probe{
		probe.Database(dbConn),
		probe.ReferenceWaypoints(st),
		probe.AircraftProfile(&appCfg.Aircraft),
		probe.GPSD(&appCfg.Position),
	})
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	sched := setupScheduler(appCfg, svc)

	shutdownCtx, shutdown := context.WithCancel(ctx)
	defer shutdown()

	srv := api.NewServer(appCfg.Server.Address,
		api.NewRouteHandler(svc.engine, svc.interp),
		api.NewFuelHandler(svc.engine, svc.fs, svc.logs),
		svc.pos,
		api.NewWaypointHandler(svc.resolver, st),
		api.NewPlanHandler(st, svc.interp, svc.reg.Name()),
		api.NewFlightLogHandler(st, svc.logs),
		api.NewAircraftHandler(svc.reg),
		svc.stream,
		shutdown,
	)

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		if err := svc.gps.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("position source failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return runServerLifecycle(gctx, srv)
	})

	err = g.Wait()

	// Keep the live session for the next start.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer saveCancel()
	if cpErr := svc.logs.Checkpoint(saveCtx); cpErr != nil {
		slog.Error("Failed to checkpoint flight session", "error", cpErr)
	}
	slog.Info("RallyNav stopped")
	return err
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// services bundles what the scheduler and the server share.
type services struct {
	reg      *power.Registry
	fs       *status.FlightStatus
	logs     *flightlog.Manager
	stream   *api.Stream
	engine   *route.Engine
	resolver *waypoint.Resolver
	interp   *waypoint.Interpreter
	pos      *api.PositionHandler
	gps      gps.Client
}

func initServices(ctx context.Context, cfg *config.Config, st store.Store) (*services, error) {
	reg, err := power.FromConfig(&cfg.Aircraft)
	if err != nil {
		return nil, fmt.Errorf("failed to load aircraft profile: %w", err)
	}

	statute := cfg.Nav.Units == config.UnitsStatute
	sphere := geo.NauticalSphere(cfg.Nav.MagneticVariation)
	if statute {
		sphere = geo.StatuteSphere(cfg.Nav.MagneticVariation)
	}

	fs := status.New(status.Settings{
		Statute:              statute,
		MagneticVariation:    cfg.Nav.MagneticVariation,
		TimePointsPerSecond:  cfg.Scoring.TimePointsPerSecond,
		FuelPointsPerPercent: cfg.Scoring.FuelPointsPerPercent,
		StartFuel:            cfg.Fuel.StartFuel,
		FillOAT:              cfg.Fuel.FillOAT,
		PumpFactor:           cfg.Fuel.PumpFactor,
	})

	logs := flightlog.NewManager(st, st, reg.Name())
	if logs.Restore(ctx) {
		slog.Info("Previous flight session restored")
	}

	stream := api.NewStream()
	engine := route.NewEngine(reg, sphere, fs, route.Options{
		FuelCompPerDegreeF: cfg.Fuel.CompPerDegreeF,
		MinUpdateInterval:  cfg.Ticker.MinUpdate.Std(),
		Notifier:           stream,
		Events:             logs,
	})
	logs.Attach(engine, fs)
	stream.Attach(engine)

	resolver, err := waypoint.NewResolver(st, cfg.Waypoints.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize waypoint resolver: %w", err)
	}

	var client gps.Client
	switch cfg.Position.Provider {
	case "mock":
		slog.Info("Using mock position source", "speed_kts", cfg.Position.Mock.SpeedKts)
		client = mockgps.NewClient(cfg.Position.Mock, engine)
	default:
		slog.Info("Using gpsd position source", "addr", cfg.Position.GPSD.Address)
		client = gpsd.NewClient(cfg.Position.GPSD)
	}

	return &services{
		reg:      reg,
		fs:       fs,
		logs:     logs,
		stream:   stream,
		engine:   engine,
		resolver: resolver,
		interp:   waypoint.NewInterpreter(engine, resolver),
		pos:      api.NewPositionHandler(fs, stream),
		gps:      client,
	}, nil
}

// resumeFlight rebuilds the route of a checkpointed run and puts the engine
// back on the leg it was flying.
func resumeFlight(ctx context.Context, svc *services) {
	p, ok := svc.logs.PendingResume()
	if !ok {
		return
	}
	if err := svc.interp.Submit(ctx, p.Route); err != nil {
		slog.Error("Failed to rebuild checkpointed route", "error", err)
		return
	}
	if err := svc.engine.Resume(p); err != nil {
		slog.Error("Failed to resume checkpointed flight", "error", err)
		return
	}
	slog.Info("Checkpointed flight resumed", "route", p.Route, "leg", p.CurrentLeg)
}

func setupScheduler(cfg *config.Config, svc *services) *core.Scheduler {
	sched := core.NewScheduler(cfg, svc.gps, svc.engine, svc.pos)

	sched.AddJob(core.NewCheckpointJob(svc.logs, cfg.Triggers.SnapshotTime.Std()))

	// Breadcrumbs are measured on the ground track in nautical miles.
	sched.AddJob(core.NewTrackJob(svc.logs, svc.engine, geo.NauticalSphere(0), cfg.Triggers.TrackDistance.Meters()/1852))

	return sched
}

func runServerLifecycle(ctx context.Context, srv *http.Server) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
