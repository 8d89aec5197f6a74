package storage

import (
	"fmt"
	"log/slog"
)

// NewStore builds the backend named by kind. path is the sqlite file, the
// snapshot directory, or the badger directory; an empty badger path keeps
// the database in memory.
func NewStore(kind, path string, logger *slog.Logger) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		if path == "" {
			return nil, fmt.Errorf("file store requires a directory")
		}
		return NewFileStore(path), nil
	case "badger":
		return NewBadgerStore(path, logger), nil
	case "sqlite":
		return newSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
