//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"gridforge/internal/model"
)

func TestSQLiteStoreSnapshotAndDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "gridforge.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if _, ok, err := store.LoadSnapshot(ctx); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%t err=%v", ok, err)
	}

	input := sampleSnapshot(t)
	if err := store.SaveSnapshot(ctx, input); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	input.Generation = 20
	if err := store.SaveSnapshot(ctx, input); err != nil {
		t.Fatalf("overwrite snapshot: %v", err)
	}
	output, ok, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted snapshot")
	}
	checkSnapshotEqual(t, input, output)

	diagnostics := []model.GenerationDiagnostics{{Generation: 20, Population: "main", Candidates: 7, BestMember: 3}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loaded, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok || len(loaded) != 1 || loaded[0].BestMember != 3 {
		t.Fatalf("unexpected diagnostics: ok=%t %+v", ok, loaded)
	}
}
