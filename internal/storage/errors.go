package storage

import (
	"errors"
	"fmt"
)

var (
	ErrVersionMismatch   = errors.New("record version mismatch")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	ErrNotInitialized    = errors.New("store is not initialized")
)

// PersistenceError reports a snapshot that could not be written or read
// back. Decoding failures never fall back to an empty state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
