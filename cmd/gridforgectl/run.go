package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"gridforge/internal/evo"
	"gridforge/internal/platform"
	"gridforge/internal/status"
	"gridforge/internal/storage"
	"gridforge/internal/telemetry"
)

type runOptions struct {
	configPath  string
	store       storeFlags
	oracle      oracleFlags
	listen      string
	generations int
	runID       string
	seed        int64
}

func (a *app) newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run generations, resuming from the stored snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRun(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config YAML (default: built-in configuration)")
	opts.store.register(cmd)
	opts.oracle.register(cmd)
	cmd.Flags().StringVar(&opts.listen, "listen", ":8080", "status server address; empty disables it")
	cmd.Flags().IntVar(&opts.generations, "generations", 0, "generations to run; 0 runs until interrupted")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "run id for diagnostics (default: stored run id or a new uuid)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed override; 0 keeps the configured seed")
	return cmd
}

func (a *app) runRun(cmd *cobra.Command, opts runOptions) error {
	settings, err := loadSettings(opts.configPath)
	if err != nil {
		return err
	}
	if opts.seed != 0 {
		settings.Engine.Seed = opts.seed
	}
	logger, err := a.logger()
	if err != nil {
		return err
	}
	sim, err := a.oracle(opts.oracle)
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	engine, err := evo.NewEngine(settings, sim, evo.WithLogger(logger), evo.WithMetrics(metrics))
	if err != nil {
		return err
	}
	store, err := storage.NewStore(opts.store.kind, opts.store.path, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	var modules []platform.SupportModule
	if opts.listen != "" {
		gin.SetMode(gin.ReleaseMode)
		modules = append(modules, status.NewServer(opts.listen, status.NewRouter(engine, metrics), logger))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := platform.NewPolis(platform.Config{
		Store:            store,
		Engine:           engine,
		ResultPopulation: settings.ResultPopulation,
		RunID:            opts.runID,
		Logger:           logger,
		Metrics:          metrics,
		SupportModules:   modules,
	})
	if err := p.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if ctx.Err() != nil {
			p.Shutdown()
			return
		}
		p.Stop()
	}()
	logger.Info("run started",
		"run_id", p.RunID(),
		"resumed", p.Resumed(),
		"support_modules", p.ActiveSupportModules(),
	)

	result, err := p.Run(ctx, opts.generations)
	if err != nil {
		return err
	}

	state := "completed"
	if result.Interrupted {
		state = "interrupted"
	}
	fmt.Fprintf(a.stdout, "run %s %s: %d generations, now at generation %d\n",
		result.RunID, state, result.Generations, result.FinalGeneration)
	if result.Best != nil {
		fmt.Fprintf(a.stdout, "best %s member %d score %.4f\n%s",
			settings.ResultPopulation, result.Best.ID, result.Best.Score, result.Best.Grid)
	}
	return nil
}
