package usecase

import (
	"context"
	"fmt"
	"strings"

	"codectx/internal/domain"
	"codectx/internal/port"
)

// QueryUseCase answers natural-language queries against a project's vector
// index: embed the query, search, threshold, rank.
type QueryUseCase struct {
	embedder  port.EmbedderBackend
	index     port.VectorIndex
	template  string
	separator string
}

func NewQueryUseCase(embedder port.EmbedderBackend, index port.VectorIndex, template, separator string) *QueryUseCase {
	return &QueryUseCase{
		embedder:  embedder,
		index:     index,
		template:  template,
		separator: separator,
	}
}

// Query returns up to topK chunks scoring at least threshold against text,
// in descending score order with deterministic tie-breaks. A threshold of
// 0 disables filtering. Parameters are validated before any work: a
// threshold above every score yields an empty result, a non-positive topK
// is a configuration error. An empty index yields an empty result, not an
// error.
func (u *QueryUseCase) Query(ctx context.Context, text string, topK int, threshold float64) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidConfig, topK)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in [0, 1], got %g", domain.ErrInvalidConfig, threshold)
	}

	vectors, err := u.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := u.index.Search(vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if threshold > 0 && h.Score < threshold {
			continue
		}
		results = append(results, domain.ScoredChunk{Chunk: h.Record.Chunk, Score: h.Score})
	}
	return results, nil
}

// Format renders results through the configured template. Recognized
// placeholders: {file}, {type}, {name}, {score}, {full_text}, {separator}.
func (u *QueryUseCase) Format(results []domain.ScoredChunk) []string {
	out := make([]string, len(results))
	for i, r := range results {
		replacer := strings.NewReplacer(
			"{file}", r.Chunk.FilePath,
			"{type}", string(r.Chunk.Type),
			"{name}", r.Chunk.Name,
			"{score}", fmt.Sprintf("%.4f", r.Score),
			"{full_text}", r.Chunk.Text,
			"{separator}", u.separator,
		)
		out[i] = replacer.Replace(u.template)
	}
	return out
}
