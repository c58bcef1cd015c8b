package port

import "context"

// EmbedderBackend turns text into vectors. Implementations wrap a concrete
// model (remote API or local); selection happens once at startup.
type EmbedderBackend interface {
	// EmbedBatch embeds the given texts. The result preserves input order
	// and length 1:1. Partial success is never exposed.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelID identifies the embedding space. It partitions the cache so
	// vectors from different models never mix.
	ModelID() string
}

// EmbeddingCache is a content-addressed store of previously computed
// vectors, keyed by (model, content hash). Entries are never mutated.
type EmbeddingCache interface {
	Get(modelID, contentHash string) ([]float32, bool, error)

	Put(modelID, contentHash string, vector []float32) error

	// Clear drops every entry. Explicit operator action only; there is no
	// TTL.
	Clear() error
}
