package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"gridforge/internal/model"
)

var snapshotKey = []byte("snapshot/latest")

func diagnosticsKey(runID string) []byte {
	return []byte("diagnostics/" + runID)
}

// BadgerStore keeps records in an embedded badger database. An empty path
// opens an in-memory database.
type BadgerStore struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *badger.DB
}

func NewBadgerStore(path string, logger *slog.Logger) *BadgerStore {
	return &BadgerStore{path: path, logger: logger}
}

func (s *BadgerStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	var opts badger.Options
	if s.path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.path, 0o750); err != nil {
			return fmt.Errorf("create badger directory %s: %w", s.path, err)
		}
		opts = badger.DefaultOptions(s.path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if s.logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: s.logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	s.db = db
	return nil
}

func (s *BadgerStore) SaveSnapshot(_ context.Context, snapshot model.Snapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, data)
	}); err != nil {
		return &PersistenceError{Op: "write snapshot", Err: err}
	}
	return nil
}

func (s *BadgerStore) LoadSnapshot(_ context.Context) (model.Snapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Snapshot{}, false, err
	}
	data, found, err := get(db, snapshotKey)
	if err != nil {
		return model.Snapshot{}, false, &PersistenceError{Op: "read snapshot", Err: err}
	}
	if !found {
		return model.Snapshot{}, false, nil
	}
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

func (s *BadgerStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	data, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(diagnosticsKey(runID), data)
	})
}

func (s *BadgerStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	data, found, err := get(db, diagnosticsKey(runID))
	if err != nil || !found {
		return nil, false, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerStore) getDB() (*badger.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func get(db *badger.DB, key []byte) ([]byte, bool, error) {
	var data []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// badgerLogger routes badger's internal logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
