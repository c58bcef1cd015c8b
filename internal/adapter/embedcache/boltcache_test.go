package embedcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCache(t *testing.T) *BoltCache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheRoundtrip(t *testing.T) {
	c := openCache(t)

	vec := []float32{0.1, -0.5, 2.25}
	require.NoError(t, c.Put("modelA", "hash1", vec))

	got, ok, err := c.Get("modelA", "hash1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestCacheMiss(t *testing.T) {
	c := openCache(t)

	got, ok, err := c.Get("modelA", "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCachePartitionedByModel(t *testing.T) {
	c := openCache(t)

	require.NoError(t, c.Put("modelA", "hash1", []float32{1}))

	_, ok, err := c.Get("modelB", "hash1")
	require.NoError(t, err)
	assert.False(t, ok, "entries for one model must not serve another")
}

func TestCacheReturnsCopies(t *testing.T) {
	c := openCache(t)

	require.NoError(t, c.Put("m", "h", []float32{1, 2}))

	first, _, err := c.Get("m", "h")
	require.NoError(t, err)
	first[0] = 99

	second, _, err := c.Get("m", "h")
	require.NoError(t, err)
	assert.Equal(t, float32(1), second[0], "callers must not be able to corrupt cached vectors")
}

func TestCacheClear(t *testing.T) {
	c := openCache(t)

	require.NoError(t, c.Put("m", "h1", []float32{1}))
	require.NoError(t, c.Put("m", "h2", []float32{2}))

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, c.Clear())

	n, err = c.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, ok, err := c.Get("m", "h1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Put("m", "h", []float32{3, 4}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	got, ok, err := c.Get("m", "h")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, got)
}
