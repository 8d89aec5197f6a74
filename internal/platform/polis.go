package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridforge/internal/evo"
	"gridforge/internal/model"
	"gridforge/internal/storage"
	"gridforge/internal/telemetry"
)

type Config struct {
	Store  storage.Store
	Engine *evo.Engine
	// ResultPopulation names the population whose best member is logged
	// after every generation. Empty disables the report.
	ResultPopulation string
	// RunID labels persisted diagnostics. Empty reuses the id of a restored
	// snapshot, or a fresh uuid.
	RunID          string
	Logger         *slog.Logger
	Metrics        *telemetry.Metrics
	SupportModules []SupportModule
}

// SupportModule is a side service, such as the status endpoint, whose
// lifetime follows the host.
type SupportModule interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

type RunResult struct {
	RunID           string
	Generations     int
	FinalGeneration int
	Interrupted     bool
	Best            *evo.MemberStatus
}

// Polis hosts one engine: it restores the engine from the store, drives
// generations and writes a snapshot after each of them.
type Polis struct {
	store   storage.Store
	engine  *evo.Engine
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu             sync.RWMutex
	started        bool
	resumed        bool
	runID          string
	history        []model.GenerationDiagnostics
	supportModules []SupportModule

	config Config
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Polis{
		store:   cfg.Store,
		engine:  cfg.Engine,
		logger:  logger,
		metrics: cfg.Metrics,
		config:  cfg,
	}
}

// Init opens the store, restores the last snapshot if there is one and
// starts the support modules. A snapshot that cannot be decoded or restored
// fails Init.
func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	if p.engine == nil {
		return fmt.Errorf("engine is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	snap, found, err := p.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	runID := p.config.RunID
	if found {
		start := time.Now()
		if err := p.engine.Restore(ctx, snap); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		if runID == "" {
			runID = snap.RunID
		}
		p.logger.Info("snapshot restored",
			"generation", snap.Generation,
			"populations", len(snap.Populations),
			"saved_at", snap.SavedAt,
			"elapsed", time.Since(start))
	} else {
		p.logger.Info("no snapshot found, starting from generation 0")
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	history, _, err := p.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return fmt.Errorf("load diagnostics for run %s: %w", runID, err)
	}

	started := make([]SupportModule, 0, len(p.config.SupportModules))
	seen := make(map[string]struct{}, len(p.config.SupportModules))
	for i, module := range p.config.SupportModules {
		if module == nil {
			stopSupportModules(ctx, started)
			return fmt.Errorf("support module is nil at index %d", i)
		}
		name := module.Name()
		if name == "" {
			stopSupportModules(ctx, started)
			return fmt.Errorf("support module name is required at index %d", i)
		}
		if _, dup := seen[name]; dup {
			stopSupportModules(ctx, started)
			return fmt.Errorf("duplicate support module: %s", name)
		}
		if err := module.Start(ctx); err != nil {
			stopSupportModules(ctx, started)
			return fmt.Errorf("start support module %s: %w", name, err)
		}
		seen[name] = struct{}{}
		started = append(started, module)
	}

	p.runID = runID
	p.resumed = found
	p.history = history
	p.supportModules = started
	p.started = true
	p.logger.Info("polis started", "run_id", runID, "generation", p.engine.Generation())
	return nil
}

// Run drives generations until maxGenerations have completed (forever when
// maxGenerations <= 0) or ctx is cancelled. Cancellation is observed between
// generations only; a generation in flight finishes and is saved.
func (p *Polis) Run(ctx context.Context, maxGenerations int) (RunResult, error) {
	if !p.Started() {
		return RunResult{}, fmt.Errorf("polis is not initialized")
	}
	result := RunResult{RunID: p.RunID()}
	for maxGenerations <= 0 || result.Generations < maxGenerations {
		if ctx.Err() != nil {
			result.Interrupted = true
			p.logger.Info("run interrupted", "run_id", result.RunID, "generation", p.engine.Generation())
			break
		}
		if err := p.RunGeneration(ctx); err != nil {
			result.FinalGeneration = p.engine.Generation()
			return result, err
		}
		result.Generations++
	}
	result.FinalGeneration = p.engine.Generation()
	if best, ok := p.best(); ok {
		result.Best = &best
	}
	return result, nil
}

// RunGeneration steps the engine once and persists the outcome.
func (p *Polis) RunGeneration(ctx context.Context) error {
	stepCtx := context.WithoutCancel(ctx)
	diagnostics, err := p.engine.Step(stepCtx)
	if err != nil {
		return err
	}
	if err := p.persist(stepCtx, diagnostics); err != nil {
		return err
	}
	p.reportBest()
	return nil
}

func (p *Polis) persist(ctx context.Context, diagnostics []model.GenerationDiagnostics) error {
	snap := p.engine.Snapshot()
	snap.RunID = p.RunID()
	snap.SavedAt = time.Now().UTC()

	err := p.store.SaveSnapshot(ctx, snap)
	p.metrics.SnapshotSaved(err)
	if err != nil {
		return fmt.Errorf("save snapshot at generation %d: %w", snap.Generation, err)
	}

	p.mu.Lock()
	p.history = append(p.history, diagnostics...)
	history := slices.Clone(p.history)
	p.mu.Unlock()
	if err := p.store.SaveGenerationDiagnostics(ctx, snap.RunID, history); err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}
	p.logger.Debug("snapshot saved", "generation", snap.Generation, "run_id", snap.RunID)
	return nil
}

func (p *Polis) best() (evo.MemberStatus, bool) {
	if p.config.ResultPopulation == "" {
		return evo.MemberStatus{}, false
	}
	return p.engine.Best(p.config.ResultPopulation)
}

func (p *Polis) reportBest() {
	best, ok := p.best()
	if !ok {
		return
	}
	p.logger.Info("best member",
		"population", p.config.ResultPopulation,
		"generation", p.engine.Generation(),
		"id", best.ID,
		"score", best.Score,
		"metrics", best.Metrics,
		"grid", "\n"+best.Grid.String())
}

func (p *Polis) Stop() {
	_ = p.StopWithReason(StopReasonNormal)
}

func (p *Polis) Shutdown() {
	_ = p.StopWithReason(StopReasonShutdown)
}

func (p *Polis) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for i := len(p.supportModules) - 1; i >= 0; i-- {
		module := p.supportModules[i]
		var err error
		if withReason, ok := module.(reasonAwareSupportModule); ok {
			err = withReason.StopWithReason(context.Background(), reason)
		} else {
			err = module.Stop(context.Background())
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("stop support module %s: %w", module.Name(), err))
		}
	}

	p.started = false
	p.supportModules = nil
	return errors.Join(errs...)
}

func (p *Polis) RunID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.runID
}

// Resumed reports whether Init restored a snapshot.
func (p *Polis) Resumed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resumed
}

// History returns the diagnostics recorded for the current run id,
// including those loaded from the store.
func (p *Polis) History() []model.GenerationDiagnostics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.history)
}

func (p *Polis) ActiveSupportModules() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.supportModules))
	for _, module := range p.supportModules {
		names = append(names, module.Name())
	}
	return names
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

type reasonAwareSupportModule interface {
	SupportModule
	StopWithReason(ctx context.Context, reason StopReason) error
}

func isValidStopReason(reason StopReason) bool {
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
		return true
	default:
		return false
	}
}

func stopSupportModules(ctx context.Context, modules []SupportModule) {
	for i := len(modules) - 1; i >= 0; i-- {
		_ = modules[i].Stop(ctx)
	}
}
