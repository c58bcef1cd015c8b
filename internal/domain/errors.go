package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProjectNotFound is returned when a named project is not registered.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectExists is returned when registering a name that is taken.
	ErrProjectExists = errors.New("project already exists")

	// ErrInvalidConfig marks configuration rejected before any work begins.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrIndexCorrupt marks index-structural failures that require a full
	// rebuild from source.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrEmbeddingBackend classifies failures of the embedding backend
	// (timeouts, malformed responses). Batch-scoped and retryable.
	ErrEmbeddingBackend = errors.New("embedding backend failed")

	// ErrExtensionConflict is returned when two extractors claim the same
	// file extension.
	ErrExtensionConflict = errors.New("extension already claimed")

	// ErrIndexLocked means another indexing run holds the project lock.
	ErrIndexLocked = errors.New("index is locked by another run")

	// ErrFileTooLarge marks files skipped for exceeding the configured
	// size limit. Reported by the pipeline, never fatal.
	ErrFileTooLarge = errors.New("file exceeds max size")
)

// ExtractionError wraps a per-file extraction failure. It is recoverable:
// the pipeline logs it, skips the file, and continues the run.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
