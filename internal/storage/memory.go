package storage

import (
	"context"
	"slices"
	"sync"

	"gridforge/internal/model"
)

// MemoryStore keeps the encoded snapshot so every load goes through the
// same decode checks as the durable backends. Init may be called again on a
// live store and keeps what it holds.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	snapshot    []byte
	diagnostics map[string][]model.GenerationDiagnostics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	if s.diagnostics == nil {
		s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	}
	return nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	s.snapshot = data
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context) (model.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.Snapshot{}, false, ErrNotInitialized
	}
	if s.snapshot == nil {
		return model.Snapshot{}, false, nil
	}
	snapshot, err := DecodeSnapshot(s.snapshot)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.diagnostics[runID] = slices.Clone(diagnostics)
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(diagnostics), true, nil
}
