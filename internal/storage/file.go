package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"gridforge/internal/model"
)

const snapshotFileName = "snapshot.json"

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStore writes one JSON document per record under a directory. Every
// write goes to a temp file that is synced and renamed over the target, so a
// crash leaves either the previous or the new snapshot.
type FileStore struct {
	dir string

	mu          sync.Mutex
	initialized bool
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir == "" {
		return errors.New("file store directory is required")
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create store directory %s: %w", s.dir, err)
	}
	s.initialized = true
	return nil
}

// SnapshotPath is the file holding the latest snapshot.
func (s *FileStore) SnapshotPath() string {
	return filepath.Join(s.dir, snapshotFileName)
}

func (s *FileStore) SaveSnapshot(_ context.Context, snapshot model.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if err := writeFileAtomic(s.SnapshotPath(), data); err != nil {
		return &PersistenceError{Op: "write snapshot", Err: err}
	}
	return nil
}

func (s *FileStore) LoadSnapshot(_ context.Context) (model.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return model.Snapshot{}, false, ErrNotInitialized
	}

	data, err := os.ReadFile(s.SnapshotPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, &PersistenceError{Op: "read snapshot", Err: err}
	}
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

func (s *FileStore) diagnosticsPath(runID string) (string, error) {
	if !runIDPattern.MatchString(runID) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(s.dir, "diagnostics-"+runID+".json"), nil
}

func (s *FileStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	path, err := s.diagnosticsPath(runID)
	if err != nil {
		return err
	}
	data, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return writeFileAtomic(path, data)
}

func (s *FileStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	path, err := s.diagnosticsPath(runID)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	success = true
	return nil
}
