package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLoader is returned by Get when no Loader was configured in Options.
	ErrNoLoader = errors.New("cache: no Loader provided")
	// ErrClosed is returned by Get after Close.
	ErrClosed = errors.New("cache: closed")
	// ErrInvalidConfig matches every *ConfigError via errors.Is.
	ErrInvalidConfig = errors.New("cache: invalid config")
	// ErrLoaderPanic wraps a panic recovered from a Loader or Reloader.
	ErrLoaderPanic = errors.New("cache: loader panicked")
)

// ConfigError reports an Options field that New rejected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cache: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// LoadError is returned to every caller that waited on a failed blocking load.
// It does not poison the key: the next Get runs the Loader again.
type LoadError struct {
	Key any
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cache: load %v: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
