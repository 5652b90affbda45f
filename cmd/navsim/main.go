package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/udisondev/squadnav/internal/config"
	"github.com/udisondev/squadnav/internal/db"
	"github.com/udisondev/squadnav/internal/field"
	"github.com/udisondev/squadnav/internal/geo"
	"github.com/udisondev/squadnav/internal/sim"
)

const defaultConfigPath = "config/navsim.yaml"

type options struct {
	configPath string
	ticks      uint64
	realtime   bool
	dumpSquad  uint
	precision  int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", defaultConfigPath, "path to the YAML config")
	flag.Uint64Var(&opts.ticks, "ticks", 500, "number of physics steps to run, 0 runs until interrupted")
	flag.BoolVar(&opts.realtime, "realtime", false, "pace steps on the wall clock instead of running flat out")
	flag.UintVar(&opts.dumpSquad, "dump", 0, "print the summed field view of this squad after the run")
	flag.IntVar(&opts.precision, "precision", 1, "decimal places in the field dump")
	flag.Parse()

	if p := os.Getenv("SQUADNAV_CONFIG"); p != "" {
		opts.configPath = p
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadSimulation(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
	sim.EnableDebugLogging(logLevel == slog.LevelDebug)

	slog.Info("navsim starting", "config", opts.configPath, "log_level", cfg.LogLevel)

	grid, err := geo.NewGrid(cfg.GridSpec(), cfg.Walkability())
	if err != nil {
		return fmt.Errorf("building grid: %w", err)
	}
	s := sim.New(grid, cfg.Params())

	var (
		rec   *db.Recorder
		runID uuid.UUID
	)
	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		rec = db.NewRecorder(database.Pool())
		summary := fmt.Sprintf("grid=%dx%d squads=%d", grid.SizeX, grid.SizeY, len(cfg.Squads))
		runID, err = rec.StartRun(ctx, cfg.Recorder.RunName, summary)
		if err != nil {
			return fmt.Errorf("starting run: %w", err)
		}
	}

	samples := newSampler(cfg.Recorder.SampleEvery, cfg.Recorder.BatchSize)
	paths := make(chan db.PathRecord, 64)

	if err := spawnSquads(s, cfg, paths); err != nil {
		return err
	}

	mgr := sim.NewTickManager(s, cfg.Timing.PhysicsStep, opts.ticks)
	g, gctx := errgroup.WithContext(ctx)

	if rec != nil {
		mgr.Observe(samples.observe(gctx))
	}

	g.Go(func() error {
		defer close(paths)
		defer samples.close(gctx)

		slog.Info("starting tick manager", "step", cfg.Timing.PhysicsStep, "ticks", opts.ticks, "realtime", opts.realtime)
		var err error
		if opts.realtime {
			err = mgr.Start(gctx)
		} else {
			err = mgr.Run(gctx)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("tick manager: %w", err)
		}
		return nil
	})

	if rec != nil {
		g.Go(func() error {
			slog.Info("starting sample recorder", "every", cfg.Recorder.SampleEvery, "batch", cfg.Recorder.BatchSize)
			if err := rec.Consume(gctx, runID, samples.out); err != nil {
				return fmt.Errorf("sample recorder: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			for p := range paths {
				if err := rec.RecordPath(gctx, runID, p); err != nil {
					return fmt.Errorf("path recorder: %w", err)
				}
			}
			return nil
		})
	} else {
		g.Go(func() error {
			for range paths {
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("simulation error: %w", err)
	}

	if rec != nil {
		if err := rec.FinishRun(context.WithoutCancel(ctx), runID, int64(mgr.Ticks())); err != nil {
			return fmt.Errorf("finishing run: %w", err)
		}
	}

	for _, st := range s.Snapshot() {
		slog.Info("agent",
			"id", st.ID,
			"squad", st.Squad,
			"leader", st.Leader,
			"x", st.Position.X,
			"y", st.Position.Y,
			"heading", st.Heading)
	}

	if opts.dumpSquad > 0 {
		sq, ok := s.Squad(sim.SquadID(opts.dumpSquad))
		if !ok {
			return fmt.Errorf("dump: squad %d not found", opts.dumpSquad)
		}
		stack := field.Stack{s.StaticLayer(), sq.GoalLayer(), sq.FormationLayer()}
		if err := field.Dump(os.Stdout, grid, stack, opts.precision); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}

	slog.Info("navsim finished", "ticks", mgr.Ticks(), "elapsed", s.Elapsed())
	return nil
}

// spawnSquads adds the configured squads, sets their goals and queues a
// route preview from each leader to its goal.
func spawnSquads(s *sim.Simulation, cfg config.Simulation, paths chan<- db.PathRecord) error {
	specs, err := cfg.SquadSpecs()
	if err != nil {
		return fmt.Errorf("resolving squads: %w", err)
	}

	for i, spec := range specs {
		id := s.AddSquad(spec)
		goal := cfg.Squads[i].Goal
		if goal == nil {
			continue
		}
		if err := s.SetGoal(id, goal.Vec()); err != nil {
			slog.Warn("squad goal ignored", "squad", id, "err", err)
			continue
		}

		sq, _ := s.Squad(id)
		leader, ok := s.Agent(sq.Leader())
		if !ok {
			continue
		}
		start, end := leader.Position, goal.Vec()
		var ticket uint64
		ticket = s.RequestPath(start, end, func(waypoints []r2.Vec, success bool) {
			length := geo.PathLength(start, waypoints)
			slog.Info("route preview",
				"squad", id,
				"success", success,
				"waypoints", len(waypoints),
				"length", length)

			select {
			case paths <- pathRecord(ticket, start, end, waypoints, success, length):
			default:
				slog.Warn("path record dropped", "ticket", ticket)
			}
		})
	}
	return nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
