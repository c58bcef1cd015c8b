package embedding

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codectx/internal/adapter/embedcache"
)

func newTestCache(t *testing.T) *embedcache.BoltCache {
	t.Helper()
	c, err := embedcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMockBackendDeterministic(t *testing.T) {
	m := NewMockBackend(32)

	a, err := m.EmbedBatch(context.Background(), []string{"hello", "hello", "world"})
	require.NoError(t, err)
	require.Len(t, a, 3)

	assert.Equal(t, a[0], a[1], "same text embeds to the same vector")
	assert.NotEqual(t, a[0], a[2])
	assert.Len(t, a[0], 32)
}

func TestCachingEmbedderCacheHit(t *testing.T) {
	backend := NewMockBackend(16)
	cache := newTestCache(t)
	emb := NewCachingEmbedder(backend, cache, 32, 1, DefaultRetryConfig())

	texts := []string{"alpha", "beta"}

	first, err := emb.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Equal(t, int64(1), backend.Calls())

	second, err := emb.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), backend.Calls(), "a fully cached batch must not reach the backend")
}

func TestCachingEmbedderPartialHit(t *testing.T) {
	backend := NewMockBackend(16)
	cache := newTestCache(t)
	emb := NewCachingEmbedder(backend, cache, 32, 1, DefaultRetryConfig())

	_, err := emb.EmbedBatch(context.Background(), []string{"alpha"})
	require.NoError(t, err)

	out, err := emb.EmbedBatch(context.Background(), []string{"beta", "alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Only the two misses hit the backend, in one request.
	assert.Equal(t, int64(2), backend.Calls())

	// Output order matches input order regardless of hit/miss layout.
	direct, err := NewMockBackend(16).EmbedBatch(context.Background(), []string{"beta", "alpha", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, direct, out)
}

func TestCachingEmbedderSubBatches(t *testing.T) {
	backend := NewMockBackend(8)
	emb := NewCachingEmbedder(backend, nil, 2, 1, DefaultRetryConfig())

	texts := []string{"a", "b", "c", "d", "e"}
	out, err := emb.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, 5)

	// 5 misses at batch size 2 means three backend requests.
	assert.Equal(t, int64(3), backend.Calls())
}

func TestCachingEmbedderConcurrentWorkers(t *testing.T) {
	backend := NewMockBackend(8)
	emb := NewCachingEmbedder(backend, nil, 2, 4, DefaultRetryConfig())

	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	out, err := emb.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, 10)

	assert.Equal(t, int64(5), backend.Calls())

	// Concurrency must not disturb input-order output.
	direct, err := NewMockBackend(8).EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, direct, out)
}

func TestCachingEmbedderNilCache(t *testing.T) {
	backend := NewMockBackend(8)
	emb := NewCachingEmbedder(backend, nil, 32, 1, DefaultRetryConfig())

	out, err := emb.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, err = emb.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.Calls(), "without a cache every batch reaches the backend")
}

func TestCachingEmbedderEmptyInput(t *testing.T) {
	emb := NewCachingEmbedder(NewMockBackend(8), nil, 32, 1, DefaultRetryConfig())
	out, err := emb.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestHashTextStable(t *testing.T) {
	assert.Equal(t, HashText("abc"), HashText("abc"))
	assert.NotEqual(t, HashText("abc"), HashText("abd"))
	assert.Len(t, HashText(""), 64)
}
