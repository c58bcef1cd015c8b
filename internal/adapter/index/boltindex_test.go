package index

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codectx/internal/domain"
)

func openIndex(t *testing.T, metric string, dim int) *BoltIndex {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), metric, dim)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func record(id, path string, startLine int, vec []float32) domain.IndexRecord {
	return domain.IndexRecord{
		ID: id,
		Chunk: domain.Chunk{
			FilePath:  path,
			Type:      domain.ChunkFunction,
			Name:      id,
			Text:      "func " + id + "() {}",
			StartLine: startLine,
			EndLine:   startLine + 2,
		},
		Vector: vec,
	}
}

func TestOpenRejectsUnknownMetric(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "i.db"), "dot", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestAddAndCount(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	require.NoError(t, idx.Add([]domain.IndexRecord{
		record("a", "x.go", 1, []float32{1, 0}),
		record("b", "x.go", 10, []float32{0, 1}),
	}))
	assert.Equal(t, 2, idx.Count())
}

func TestAddRejectsDuplicateID(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	require.NoError(t, idx.Add([]domain.IndexRecord{record("a", "x.go", 1, []float32{1, 0})}))

	err := idx.Add([]domain.IndexRecord{record("a", "y.go", 1, []float32{0, 1})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
	assert.Equal(t, 1, idx.Count(), "failed batch must not be partially applied")
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	err := idx.Add([]domain.IndexRecord{record("a", "x.go", 1, []float32{1, 0, 0})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestRemoveByPath(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	require.NoError(t, idx.Add([]domain.IndexRecord{
		record("a", "x.go", 1, []float32{1, 0}),
		record("b", "x.go", 10, []float32{0, 1}),
		record("c", "y.go", 1, []float32{1, 1}),
	}))

	n, err := idx.RemoveByPath("x.go")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, idx.Count())
	assert.Equal(t, []string{"y.go"}, idx.Paths())

	// Removing an unknown path is a no-op.
	n, err = idx.RemoveByPath("missing.go")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchOrderingAndTopK(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	require.NoError(t, idx.Add([]domain.IndexRecord{
		record("far", "a.go", 1, []float32{0, 1}),
		record("near", "a.go", 20, []float32{1, 0.1}),
		record("exact", "b.go", 1, []float32{1, 0}),
	}))

	results, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "exact", results[0].Record.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "near", results[1].Record.ID)
	assert.Equal(t, "far", results[2].Record.ID)

	// topK truncates after ranking.
	results, err = idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Record.ID)
}

func TestSearchTieBreakDeterministic(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	// Three records with identical vectors: ties break on file path, then
	// start line.
	require.NoError(t, idx.Add([]domain.IndexRecord{
		record("r3", "b.go", 5, []float32{1, 0}),
		record("r2", "a.go", 30, []float32{1, 0}),
		record("r1", "a.go", 2, []float32{1, 0}),
	}))

	for i := 0; i < 5; i++ {
		results, err := idx.Search([]float32{1, 0}, 10)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "r1", results[0].Record.ID)
		assert.Equal(t, "r2", results[1].Record.ID)
		assert.Equal(t, "r3", results[2].Record.ID)
	}
}

func TestSearchInvalidTopK(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	_, err := idx.Search([]float32{1, 0}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	results, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(path, MetricL2, 2)
	require.NoError(t, err)
	require.NoError(t, idx.Add([]domain.IndexRecord{
		record("a", "x.go", 1, []float32{1, 0}),
		record("b", "y.go", 1, []float32{0, 1}),
	}))
	require.NoError(t, idx.Persist())
	require.NoError(t, idx.Close())

	idx, err = Open(path, MetricL2, 2)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 2, idx.Count())

	results, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Record.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "func a() {}", results[0].Record.Chunk.Text)
}

func TestReopenMetricMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(path, MetricCosine, 2)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = Open(path, MetricL2, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	assert.Contains(t, err.Error(), "rebuild")
}

func TestReopenDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(path, MetricCosine, 4)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = Open(path, MetricCosine, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestManyRecordsSearchBounded(t *testing.T) {
	idx := openIndex(t, MetricCosine, 2)

	var recs []domain.IndexRecord
	for i := 0; i < 50; i++ {
		recs = append(recs, record(fmt.Sprintf("r%02d", i), fmt.Sprintf("f%02d.go", i), 1, []float32{1, float32(i) / 50}))
	}
	require.NoError(t, idx.Add(recs))

	results, err := idx.Search([]float32{1, 0}, 7)
	require.NoError(t, err)
	assert.Len(t, results, 7)
	assert.Equal(t, "r00", results[0].Record.ID)
}
