package port

import "codectx/internal/domain"

// SearchResult is one ranked hit from a vector index.
type SearchResult struct {
	Record domain.IndexRecord
	Score  float64
}

// VectorIndex holds embeddings plus chunk metadata for one project.
// The metric is fixed when the index is created; changing it requires a
// full rebuild.
type VectorIndex interface {
	// Add appends records. Duplicate record IDs and vectors of the wrong
	// dimension are rejected.
	Add(records []domain.IndexRecord) error

	// RemoveByPath deletes every record whose chunk came from the given
	// file and returns how many were removed. Called before re-inserting a
	// file's chunks so stale records never linger.
	RemoveByPath(path string) (int, error)

	// Search returns up to topK records ranked by similarity to the query
	// vector. Results are ordered by descending score; equal scores are
	// broken by ascending (file path, start line) so output is
	// deterministic.
	Search(query []float32, topK int) ([]SearchResult, error)

	// Paths returns every file path with records in the index, sorted.
	Paths() []string

	// Persist writes the index to its backing store atomically.
	Persist() error

	// Load restores the index from its backing store.
	Load() error

	Count() int

	Close() error
}
