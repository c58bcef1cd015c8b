package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"codectx/internal/port"
)

// CachingEmbedder wraps a backend with the persistent embedding cache.
// A batch is partitioned into cache hits and misses; only misses reach the
// backend, in sub-batches of at most batchSize submitted across up to
// maxWorkers concurrent requests, and results are written back before
// output is reassembled in input order.
type CachingEmbedder struct {
	backend    port.EmbedderBackend
	cache      port.EmbeddingCache // nil when caching is disabled
	batchSize  int
	maxWorkers int
	retry      RetryConfig
}

func NewCachingEmbedder(backend port.EmbedderBackend, cache port.EmbeddingCache, batchSize, maxWorkers int, retry RetryConfig) *CachingEmbedder {
	if batchSize <= 0 {
		batchSize = 32
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &CachingEmbedder{
		backend:    backend,
		cache:      cache,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
		retry:      retry,
	}
}

func (e *CachingEmbedder) Dimension() int {
	return e.backend.Dimension()
}

func (e *CachingEmbedder) ModelID() string {
	return e.backend.ModelID()
}

// HashText returns the cache key hash for a text. It matches the chunk
// content hash, so a chunk's embedding is found again as long as its text
// is unchanged, regardless of edits elsewhere in the file.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type pendingText struct {
	index int
	hash  string
	text  string
}

// EmbedBatch embeds texts, consulting and filling the cache. Output
// preserves input order and length 1:1. A sub-batch that still fails after
// retries fails the whole call; partial success is never exposed.
func (e *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	modelID := e.backend.ModelID()

	var misses []pendingText
	for i, text := range texts {
		hash := HashText(text)
		if e.cache != nil {
			vec, ok, err := e.cache.Get(modelID, hash)
			if err != nil {
				log.Printf("embedding cache read failed: %v", err)
			} else if ok {
				out[i] = vec
				continue
			}
		}
		misses = append(misses, pendingText{index: i, hash: hash, text: text})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)

	for start := 0; start < len(misses); start += e.batchSize {
		end := start + e.batchSize
		if end > len(misses) {
			end = len(misses)
		}
		sub := misses[start:end]

		g.Go(func() error {
			subTexts := make([]string, len(sub))
			for j, p := range sub {
				subTexts[j] = p.text
			}

			vectors, err := retryWithBackoff(gctx, e.retry, func() ([][]float32, error) {
				return e.backend.EmbedBatch(gctx, subTexts)
			})
			if err != nil {
				return fmt.Errorf("embedding batch of %d texts: %w", len(sub), err)
			}
			if len(vectors) != len(sub) {
				return fmt.Errorf("backend returned %d vectors for %d texts", len(vectors), len(sub))
			}

			// Sub-batches cover disjoint output indexes, so writers never
			// collide.
			for j, p := range sub {
				out[p.index] = vectors[j]
				if e.cache != nil {
					if err := e.cache.Put(modelID, p.hash, vectors[j]); err != nil {
						log.Printf("embedding cache write failed: %v", err)
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
