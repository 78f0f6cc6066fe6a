// Package swrcache implements a stampede-resistant, stale-while-revalidate
// read-through cache engine on top of an abstract byte-oriented backend.
package swrcache

import (
	"errors"
	"fmt"
)

// Sentinel errors, classified by behavior rather than by name. Callers
// should use errors.Is/errors.As rather than comparing error strings.
var (
	// ErrNilBackend is returned when a nil Backend is supplied to the engine.
	ErrNilBackend = errors.New("swrcache: backend cannot be nil")

	// ErrNilLogger is returned when a nil Logger is supplied.
	ErrNilLogger = errors.New("swrcache: logger cannot be nil")

	// ErrNilCompute is returned when GetOrCreate is called with a nil compute function.
	ErrNilCompute = errors.New("swrcache: compute function cannot be nil")

	// ErrEmptyKey is returned when GetOrCreate is called with an empty or whitespace-only key.
	ErrEmptyKey = errors.New("swrcache: cache key cannot be empty")

	// ErrMiss is returned by a Backend's Get when the key does not exist.
	ErrMiss = errors.New("swrcache: key not found in backend")

	// ErrCircuitOpen is returned by CircuitBreaker.GetOrCreate while the circuit is open.
	ErrCircuitOpen = errors.New("swrcache: circuit breaker is open")
)

// CorruptionError wraps a decode failure on a cache hit. It is self-healing:
// the engine removes the offending key and proceeds down the miss path.
type CorruptionError struct {
	Key string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("swrcache: corrupted payload for key %q: %v", e.Key, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// ComputeError wraps a panic or error raised by a caller-supplied compute
// function. The foreground path surfaces it to the caller; background
// refreshes swallow it after logging.
type ComputeError struct {
	Key string
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("swrcache: compute failed for key %q: %v", e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// BackendError wraps a transient failure from the Backend (Get/Set/Remove).
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("swrcache: backend %s failed for key %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
