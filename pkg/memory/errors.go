package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that an id or timeline anchor does not resolve
	// to a stored observation.
	ErrNotFound = errors.New("observation not found")

	// ErrInvalidFilter reports a malformed filter, rejected before any I/O.
	ErrInvalidFilter = errors.New("invalid filter")
)

// EmbeddingError wraps a failure of the embedding provider. Fatal to the
// single store or search call that hit it; nothing is persisted.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed during %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// VectorIndexError wraps a failure of the vector index. Fatal during store,
// degraded to FTS-only during search.
type VectorIndexError struct {
	Op  string
	Err error
}

func (e *VectorIndexError) Error() string {
	return fmt.Sprintf("vector index failed during %s: %v", e.Op, e.Err)
}

func (e *VectorIndexError) Unwrap() error { return e.Err }

// RepositoryError wraps a repository failure. Always fatal; this layer
// does not retry.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository failed during %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }
