package platform

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"gridforge/internal/config"
	"gridforge/internal/evo"
	"gridforge/internal/grid"
	"gridforge/internal/logging"
	"gridforge/internal/oracle"
	"gridforge/internal/scoring"
	"gridforge/internal/storage"
	"gridforge/internal/telemetry"
)

const testConfigYAML = `
grid: {width: 3, height: 2}
catalog:
  weights: {A: 1, B: 1, XX: 1}
  costs: {A: 1, B: 2}
resultPopulation: main
engine: {concurrency: 2, seed: 7}
populations:
  - name: main
    phases:
      - numGenerations: 2
        scoring:
          totalCost: {factor: -1}
        algorithm:
          families: 3
          membersPerFamily: 2
          offspringPerMember: 1
          randomFamiliesPerGeneration: 1
          randomFamiliesInitialGeneration: 3
          sameFamilyHybrids: 1
          crossFamilyHybrids: 1
`

func testSettings(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func countingOracle(calls *atomic.Int64) oracle.Oracle {
	return oracle.Func(func(_ context.Context, g *grid.Grid) (scoring.Metrics, error) {
		calls.Add(1)
		return scoring.Metrics{"efficiency": float64(g.Counts()["A"])}, nil
	})
}

func newTestPolis(t *testing.T, store storage.Store, o oracle.Oracle, logger *slog.Logger, modules ...SupportModule) *Polis {
	t.Helper()
	settings := testSettings(t)
	engine, err := evo.NewEngine(settings, o, evo.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return NewPolis(Config{
		Store:            store,
		Engine:           engine,
		ResultPopulation: settings.ResultPopulation,
		Logger:           logger,
		Metrics:          telemetry.New(),
		SupportModules:   modules,
	})
}

type testSupportModule struct {
	name       string
	startCalls int
	stopCalls  int
	startErr   error
	stopReason StopReason
}

func (m *testSupportModule) Name() string { return m.name }

func (m *testSupportModule) Start(context.Context) error {
	m.startCalls++
	return m.startErr
}

func (m *testSupportModule) Stop(context.Context) error {
	m.stopCalls++
	return nil
}

func (m *testSupportModule) StopWithReason(ctx context.Context, reason StopReason) error {
	m.stopReason = reason
	return m.Stop(ctx)
}

func TestPolisRunPersistsEveryGeneration(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	var calls atomic.Int64
	p := newTestPolis(t, store, countingOracle(&calls), nil)

	if err := p.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if p.Resumed() {
		t.Fatal("empty store must not resume")
	}
	if p.RunID() == "" {
		t.Fatal("expected generated run id")
	}

	result, err := p.Run(ctx, 3)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Generations != 3 || result.FinalGeneration != 3 || result.Interrupted {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Best == nil || result.Best.Grid == nil {
		t.Fatal("expected best member of the result population")
	}
	if calls.Load() == 0 {
		t.Fatal("oracle was never called")
	}

	snap, ok, err := store.LoadSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("load snapshot: ok=%t err=%v", ok, err)
	}
	if snap.Generation != 3 || snap.RunID != p.RunID() || snap.SavedAt.IsZero() {
		t.Fatalf("unexpected snapshot header: gen=%d run=%s saved=%v", snap.Generation, snap.RunID, snap.SavedAt)
	}

	history, ok, err := store.GetGenerationDiagnostics(ctx, p.RunID())
	if err != nil || !ok {
		t.Fatalf("get diagnostics: ok=%t err=%v", ok, err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(history))
	}
	for i, d := range history {
		if d.Generation != i || d.Population != "main" {
			t.Fatalf("unexpected diagnostics[%d]: %+v", i, d)
		}
	}
}

func TestPolisResumesFromSnapshot(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	var calls atomic.Int64

	first := newTestPolis(t, store, countingOracle(&calls), nil)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init first: %v", err)
	}
	if _, err := first.Run(ctx, 2); err != nil {
		t.Fatalf("run first: %v", err)
	}
	first.Stop()
	saved, _, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}

	second := newTestPolis(t, store, countingOracle(&calls), nil)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("init second: %v", err)
	}
	if !second.Resumed() {
		t.Fatal("expected resume from snapshot")
	}
	if second.RunID() != first.RunID() {
		t.Fatalf("run id = %s, want %s", second.RunID(), first.RunID())
	}
	if len(second.History()) != 2 {
		t.Fatalf("expected 2 loaded diagnostics, got %d", len(second.History()))
	}

	restored := second.engine.Snapshot()
	if restored.Generation != 2 || restored.NextMemberID != saved.NextMemberID {
		t.Fatalf("restored gen=%d next=%d, want 2 and %d", restored.Generation, restored.NextMemberID, saved.NextMemberID)
	}

	result, err := second.Run(ctx, 1)
	if err != nil {
		t.Fatalf("run second: %v", err)
	}
	if result.FinalGeneration != 3 {
		t.Fatalf("final generation = %d, want 3", result.FinalGeneration)
	}
	history, _, err := store.GetGenerationDiagnostics(ctx, second.RunID())
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if len(history) != 3 || history[2].Generation != 2 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestPolisRunStopsWhenCancelled(t *testing.T) {
	store := storage.NewMemoryStore()
	var calls atomic.Int64
	p := newTestPolis(t, store, countingOracle(&calls), nil)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := p.Run(ctx, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Interrupted || result.Generations != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok, _ := store.LoadSnapshot(context.Background()); ok {
		t.Fatal("no snapshot expected before the first generation")
	}
}

func TestPolisRunGenerationIgnoresCancellation(t *testing.T) {
	store := storage.NewMemoryStore()
	var calls atomic.Int64
	p := newTestPolis(t, store, countingOracle(&calls), nil)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.RunGeneration(ctx); err != nil {
		t.Fatalf("run generation: %v", err)
	}
	snap, ok, err := store.LoadSnapshot(context.Background())
	if err != nil || !ok || snap.Generation != 1 {
		t.Fatalf("expected snapshot at generation 1: ok=%t err=%v", ok, err)
	}
}

func TestPolisEvaluationFailureSkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	boom := errors.New("simulator crashed")
	failing := oracle.Func(func(context.Context, *grid.Grid) (scoring.Metrics, error) {
		return nil, boom
	})
	p := newTestPolis(t, store, failing, nil)
	if err := p.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	_, err := p.Run(ctx, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	var evalErr *evo.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if _, ok, _ := store.LoadSnapshot(ctx); ok {
		t.Fatal("failed generation must not be saved")
	}
}

func TestPolisInitRejectsMalformedSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := storage.NewFileStore(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := writeFile(store.SnapshotPath(), `{"schema_version":1,"codec_version":1,"populations":`); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	var calls atomic.Int64
	p := newTestPolis(t, store, countingOracle(&calls), nil)
	err := p.Init(ctx)
	var perr *storage.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if p.Started() {
		t.Fatal("polis must not start on a malformed snapshot")
	}
}

func TestPolisLogsBestMember(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Output: &buf})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	var calls atomic.Int64
	p := newTestPolis(t, storage.NewMemoryStore(), countingOracle(&calls), logger)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := p.Run(context.Background(), 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `msg="best member"`) || !strings.Contains(out, "population=main") {
		t.Fatalf("expected best member report, got:\n%s", out)
	}
}

func TestPolisSupportModules(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	a := &testSupportModule{name: "a"}
	b := &testSupportModule{name: "b"}
	p := newTestPolis(t, storage.NewMemoryStore(), countingOracle(&calls), nil, a, b)
	if err := p.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if got := p.ActiveSupportModules(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected modules: %v", got)
	}

	if err := p.StopWithReason("bogus"); err == nil {
		t.Fatal("expected unsupported stop reason")
	}
	p.Shutdown()
	if a.stopReason != StopReasonShutdown || b.stopReason != StopReasonShutdown {
		t.Fatalf("unexpected stop reasons: %s %s", a.stopReason, b.stopReason)
	}
	if p.Started() || len(p.ActiveSupportModules()) != 0 {
		t.Fatalf("unexpected state: started=%t modules=%v", p.Started(), p.ActiveSupportModules())
	}
	if _, err := p.Run(ctx, 1); err == nil {
		t.Fatal("expected run on stopped polis to fail")
	}
}

func TestPolisSupportModuleStartFailure(t *testing.T) {
	var calls atomic.Int64
	a := &testSupportModule{name: "a"}
	b := &testSupportModule{name: "b", startErr: errors.New("port in use")}
	p := newTestPolis(t, storage.NewMemoryStore(), countingOracle(&calls), nil, a, b)
	if err := p.Init(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}
	if a.stopCalls != 1 {
		t.Fatalf("expected started module to be stopped, got %d calls", a.stopCalls)
	}
	if p.Started() {
		t.Fatal("polis must not report started")
	}
}

func TestPolisRequiresStoreAndEngine(t *testing.T) {
	if err := NewPolis(Config{}).Init(context.Background()); err == nil {
		t.Fatal("expected missing store error")
	}
	if err := NewPolis(Config{Store: storage.NewMemoryStore()}).Init(context.Background()); err == nil {
		t.Fatal("expected missing engine error")
	}
}
