package storage

import (
	"context"

	"gridforge/internal/model"
)

// Store persists the engine snapshot and per-run generation diagnostics.
// LoadSnapshot reports false when nothing has been saved yet.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, snapshot model.Snapshot) error
	LoadSnapshot(ctx context.Context) (model.Snapshot, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
}
