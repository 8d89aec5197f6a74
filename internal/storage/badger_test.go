package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gridforge/internal/model"
)

func TestBadgerStoreSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "badger")

	store := NewBadgerStore(dir, nil)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, ok, err := store.LoadSnapshot(ctx); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%t err=%v", ok, err)
	}

	input := sampleSnapshot(t)
	if err := store.SaveSnapshot(ctx, input); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	diagnostics := []model.GenerationDiagnostics{{Generation: 12, Population: "main", Candidates: 4}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewBadgerStore(dir, nil)
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})

	output, ok, err := reopened.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted snapshot")
	}
	checkSnapshotEqual(t, input, output)

	loaded, ok, err := reopened.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok || len(loaded) != 1 || loaded[0].Candidates != 4 {
		t.Fatalf("unexpected diagnostics: ok=%t %+v", ok, loaded)
	}
}

func TestBadgerStoreInMemory(t *testing.T) {
	ctx := context.Background()
	store := NewBadgerStore("", nil)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if _, ok, err := store.GetGenerationDiagnostics(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing diagnostics, got ok=%t err=%v", ok, err)
	}
	input := sampleSnapshot(t)
	if err := store.SaveSnapshot(ctx, input); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	output, ok, err := store.LoadSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("load snapshot: ok=%t err=%v", ok, err)
	}
	checkSnapshotEqual(t, input, output)
}

func TestBadgerStoreRequiresInit(t *testing.T) {
	store := NewBadgerStore("", nil)
	_, _, err := store.LoadSnapshot(context.Background())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close uninitialized store: %v", err)
	}
}
