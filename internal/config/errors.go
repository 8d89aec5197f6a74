package config

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every *ConfigError through errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// ConfigError reports a configuration that cannot drive the engine, either
// found while loading or while a mutation operator runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalid
}

// Errorf builds a ConfigError for field.
func Errorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
