package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"gridforge/internal/config"
	"gridforge/internal/grid"
	"gridforge/internal/model"
	"gridforge/internal/oracle"
	"gridforge/internal/scoring"
	"gridforge/internal/telemetry"
	"gridforge/internal/weighted"
)

var tracer = otel.Tracer("gridforge.evo")

// EvaluationError reports a failed oracle call for one candidate.
type EvaluationError struct {
	Population string
	Candidate  int
	Origin     string
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s candidate %d (%s): %v", e.Population, e.Candidate, e.Origin, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRand replaces the seeded random source. The engine is its only user.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine owns every population and runs generations over them in
// configured order. Step and Restore are serialized; Status and Snapshot
// may be called concurrently with them.
type Engine struct {
	cfg         *config.Config
	oracle      oracle.Oracle
	rng         *rand.Rand
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	seedWeights weighted.Table[grid.Token]
	order       []string

	stepMu sync.Mutex

	mu          sync.RWMutex
	generation  int
	nextID      int64
	populations map[string]*Population
}

func NewEngine(cfg *config.Config, o oracle.Oracle, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if o == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	seedWeights, err := weighted.FromMap(cfg.Catalog.Weights)
	if err != nil {
		return nil, config.Errorf("catalog.weights", "%v", err)
	}
	if seedWeights.Len() == 0 {
		return nil, config.Errorf("catalog.weights", "at least one token is required")
	}

	e := &Engine{
		cfg:         cfg,
		oracle:      oracle.WithTimeout(o, cfg.Engine.EvaluationTimeout),
		logger:      slog.Default(),
		seedWeights: seedWeights,
		order:       cfg.Names(),
		nextID:      1,
		populations: make(map[string]*Population, len(cfg.Populations)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		seed := cfg.Engine.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		e.rng = rand.New(rand.NewSource(seed))
	}
	for _, name := range e.order {
		e.populations[name] = NewPopulation(name)
	}
	return e, nil
}

// Generation returns the number of completed generations.
func (e *Engine) Generation() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Step runs one generation over every population in order. An error aborts
// the generation and is returned; the engine is rolled back to its state
// before the call, so Step may be retried.
func (e *Engine) Step(ctx context.Context) ([]model.GenerationDiagnostics, error) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	start := time.Now()
	generation := e.Generation()
	saved := e.saveState()
	ctx, span := tracer.Start(ctx, "evo.Engine.Step",
		trace.WithAttributes(attribute.Int("evo.generation", generation)),
	)
	defer span.End()

	reports := make([]model.GenerationDiagnostics, 0, len(e.order))
	for _, name := range e.order {
		report, err := e.stepPopulation(ctx, name)
		if err != nil {
			e.rollback(saved)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("generation %d: population %s: %w", generation, name, err)
		}
		reports = append(reports, report)
	}

	e.mu.Lock()
	e.generation++
	completed := e.generation
	e.mu.Unlock()

	elapsed := time.Since(start)
	e.metrics.GenerationDone(completed, elapsed)
	span.SetStatus(codes.Ok, "")
	e.logger.Info("generation complete",
		"generation", generation,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return reports, nil
}

// stepState is what a failed Step puts back. Members are never modified
// once merged, so families copy their member slices only.
type stepState struct {
	nextID      int64
	populations map[string]*Population
}

func (e *Engine) saveState() stepState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := stepState{
		nextID:      e.nextID,
		populations: make(map[string]*Population, len(e.populations)),
	}
	for name, p := range e.populations {
		cp := &Population{Name: p.Name, Phase: p.Phase, PhaseGeneration: p.PhaseGeneration}
		cp.Families = make([]*Family, len(p.Families))
		for i, f := range p.Families {
			cp.Families[i] = &Family{Members: slices.Clone(f.Members), LastImproved: f.LastImproved}
		}
		st.populations[name] = cp
	}
	return st
}

func (e *Engine) rollback(st stepState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID = st.nextID
	e.populations = st.populations
}

func (e *Engine) stepPopulation(ctx context.Context, name string) (model.GenerationDiagnostics, error) {
	start := time.Now()
	popCfg, ok := e.cfg.Population(name)
	if !ok {
		return model.GenerationDiagnostics{}, config.Errorf("populations", "unknown population %q", name)
	}
	pop := e.populations[name]
	logger := e.logger.With("population", name, "generation", e.generation)

	e.mu.Lock()
	if pop.advancePhase(popCfg.Phases) {
		logger.Info("phase advanced", "phase", pop.Phase)
	}
	phase := &popCfg.Phases[pop.Phase]
	mut, err := NewMutator(e.cfg, phase, e.rng)
	if err != nil {
		e.mu.Unlock()
		return model.GenerationDiagnostics{}, err
	}
	cands, err := e.candidates(pop, phase, mut)
	e.mu.Unlock()
	if err != nil {
		return model.GenerationDiagnostics{}, err
	}

	counts := make(map[string]int)
	for _, c := range cands {
		counts[c.origin]++
	}
	for origin, n := range counts {
		e.metrics.AddCandidates(name, origin, n)
	}
	logger.Debug("candidates generated", "total", len(cands), "by_origin", counts)

	ctx, span := tracer.Start(ctx, "evo.Engine.evaluate",
		trace.WithAttributes(
			attribute.String("evo.population", name),
			attribute.Int("evo.candidates", len(cands)),
		),
	)
	results, failed, err := e.evaluate(ctx, name, phase, cands)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if err != nil {
		return model.GenerationDiagnostics{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.merge(pop, phase, cands, results)
	removed := pop.Resort(phase.Algorithm.Families, phase.StalePruning, e.generation, false)
	pop.PhaseGeneration++

	report := model.GenerationDiagnostics{
		Generation:  e.generation,
		Population:  name,
		Phase:       pop.Phase,
		Candidates:  len(cands),
		Failed:      failed,
		Families:    pop.Len(),
		Pruned:      len(removed),
		Promoted:    counts[originPromotion],
		ElapsedMsec: time.Since(start).Milliseconds(),
	}
	best := pop.Best()
	if best != nil {
		report.BestScore = best.Score
		report.BestMember = best.ID
	}
	e.metrics.AddPruned(name, len(removed))
	e.metrics.AddPromoted(name, report.Promoted)
	e.metrics.SetPopulation(name, pop.Phase, pop.Len(), report.BestScore, best != nil)
	if len(removed) > 0 {
		logger.Debug("families pruned", "count", len(removed))
	}
	logger.Info("population step complete",
		"phase", pop.Phase,
		"candidates", len(cands),
		"failed", failed,
		"families", pop.Len(),
		"best_score", report.BestScore,
	)
	return report, nil
}

type evaluation struct {
	metrics scoring.Metrics
	score   float64
	ok      bool
}

// evaluate runs the oracle over every candidate with at most
// cfg.Concurrency() calls in flight. Results are routed back by index. The
// first failure cancels the batch unless failed evaluations are skipped.
func (e *Engine) evaluate(ctx context.Context, population string, phase *config.Phase, cands []candidate) ([]evaluation, int, error) {
	results := make([]evaluation, len(cands))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency())
	for i, c := range cands {
		g.Go(func() error {
			start := time.Now()
			metrics, err := e.oracle.Simulate(gctx, c.grid)
			e.metrics.ObserveEvaluation(population, time.Since(start), err)
			if err != nil {
				evalErr := &EvaluationError{Population: population, Candidate: i, Origin: c.origin, Err: err}
				if e.cfg.Engine.SkipFailedEvaluations && gctx.Err() == nil {
					failed.Add(1)
					e.logger.Warn("evaluation failed, candidate skipped", "population", population, "error", evalErr)
					return nil
				}
				return evalErr
			}
			score, augmented := scoring.Score(metrics, c.grid, e.cfg.Catalog.Costs, e.cfg.Catalog.ConsumableCosts, phase.Scoring)
			results[i] = evaluation{metrics: augmented, score: score, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return results, int(failed.Load()), nil
}

// merge turns evaluated candidates into members. Ids are assigned in
// candidate order. Callers hold e.mu.
func (e *Engine) merge(pop *Population, phase *config.Phase, cands []candidate, results []evaluation) {
	for i, c := range cands {
		r := results[i]
		if !r.ok {
			continue
		}
		m := &Member{ID: e.nextID, Grid: c.grid, Metrics: r.metrics, Score: r.score}
		e.nextID++
		if c.family != nil {
			c.family.AddMember(m, phase.Algorithm.MembersPerFamily, e.generation)
			continue
		}
		f := NewFamily(e.generation)
		f.AddMember(m, 0, e.generation)
		if c.lastImproved != nil {
			f.LastImproved = *c.lastImproved
		}
		pop.Add(f)
	}
}
