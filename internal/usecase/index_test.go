package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codectx/internal/adapter/embedcache"
	"codectx/internal/adapter/embedding"
	"codectx/internal/adapter/extractor"
	"codectx/internal/adapter/fs"
	"codectx/internal/adapter/index"
	"codectx/internal/domain"
	"codectx/internal/port"
)

type pipelineEnv struct {
	root    string
	backend *embedding.MockBackend
	index   *index.BoltIndex
	indexer *IndexUseCase
}

// newPipelineEnv wires a full pipeline against temp storage: default
// extractors, mock backend behind the persistent cache, bolt index.
func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	root := t.TempDir()
	stateDir := t.TempDir()

	backend := embedding.NewMockBackend(16)
	cache, err := embedcache.Open(filepath.Join(stateDir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	embedder := embedding.NewCachingEmbedder(backend, cache, 32, 2, embedding.DefaultRetryConfig())

	idx, err := index.Open(filepath.Join(stateDir, "index.db"), index.MetricCosine, 16)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	extractors, err := extractor.NewDefaultRegistry(1024 * 1024)
	require.NoError(t, err)

	walker := fs.NewWalker([]string{".git"}, []string{"*.min.js"})

	return &pipelineEnv{
		root:    root,
		backend: backend,
		index:   idx,
		indexer: NewIndexUseCase(walker, extractors, embedder, idx, filepath.Join(stateDir, "run.lock"), 2),
	}
}

func (e *pipelineEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const authPy = `def login(username, password):
    """Check credentials against the store."""
    return store.check(username, password)


def logout(session):
    session.clear()
`

const utilGo = `package util

// Double doubles.
func Double(x int) int {
	return x * 2
}
`

func TestIndexFullRun(t *testing.T) {
	env := newPipelineEnv(t)
	env.write(t, "auth.py", authPy)
	env.write(t, "pkg/util.go", utilGo)
	env.write(t, "data.bin", "not indexable")

	res, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root, DetectDeletions: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatePersisted, res.State)
	assert.Equal(t, 3, res.FilesScanned)
	assert.Equal(t, 2, res.FilesIndexed)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Zero(t, res.FilesFailed)
	assert.Empty(t, res.Errors)

	// auth.py: login + logout; util.go: Double.
	assert.Equal(t, 3, res.ChunksIndexed)
	assert.Equal(t, 3, env.index.Count())
}

func TestIndexRerunIsIdempotent(t *testing.T) {
	env := newPipelineEnv(t)
	env.write(t, "auth.py", authPy)

	_, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root}, nil)
	require.NoError(t, err)
	countAfterFirst := env.index.Count()
	callsAfterFirst := env.backend.Calls()

	res, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatePersisted, res.State)
	assert.Equal(t, countAfterFirst, env.index.Count(), "re-indexing unchanged files must not grow the index")
	assert.Equal(t, callsAfterFirst, env.backend.Calls(), "unchanged chunks must be served from the embedding cache")
}

func TestIndexSingleFileLeavesRestIntact(t *testing.T) {
	env := newPipelineEnv(t)
	authPath := env.write(t, "auth.py", authPy)
	env.write(t, "pkg/util.go", utilGo)

	_, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root}, nil)
	require.NoError(t, err)
	total := env.index.Count()

	// Re-index just auth.py; util.go records must survive untouched.
	res, err := env.indexer.Index(context.Background(), IndexOptions{Root: authPath}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesIndexed)
	assert.Equal(t, total, env.index.Count())
	assert.Contains(t, env.index.Paths(), filepath.Join(env.root, "pkg", "util.go"))
}

func TestIndexDetectsDeletions(t *testing.T) {
	env := newPipelineEnv(t)
	authPath := env.write(t, "auth.py", authPy)
	env.write(t, "pkg/util.go", utilGo)

	_, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root, DetectDeletions: true}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, env.index.Count())

	require.NoError(t, os.Remove(authPath))

	res, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root, DetectDeletions: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesDeleted)
	assert.Equal(t, 1, env.index.Count())
	assert.NotContains(t, env.index.Paths(), authPath)
}

func TestIndexExtensionFilter(t *testing.T) {
	env := newPipelineEnv(t)
	env.write(t, "auth.py", authPy)
	env.write(t, "pkg/util.go", utilGo)

	res, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root, Extensions: []string{".py"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesIndexed)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Equal(t, []string{filepath.Join(env.root, "auth.py")}, env.index.Paths())
}

func TestIndexSkipsOversizedFiles(t *testing.T) {
	env := newPipelineEnv(t)
	env.write(t, "auth.py", authPy)

	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	env.write(t, "big.py", "# "+string(big))

	extractors, err := extractor.NewDefaultRegistry(1024)
	require.NoError(t, err)
	env.indexer.extractors = extractors

	res, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesIndexed)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Zero(t, res.FilesFailed, "oversized files are skipped, not failures")
}

func TestIndexLockConflict(t *testing.T) {
	env := newPipelineEnv(t)
	env.write(t, "auth.py", authPy)

	lock, err := acquireLock(env.indexer.lockPath)
	require.NoError(t, err)
	defer lock.release()

	_, err = env.indexer.Index(context.Background(), IndexOptions{Root: env.root}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexLocked)
}

func TestIndexProgressCallback(t *testing.T) {
	env := newPipelineEnv(t)
	env.write(t, "auth.py", authPy)
	env.write(t, "pkg/util.go", utilGo)

	var mu sync.Mutex
	var calls, lastTotal int
	progress := func(done, total int, path string) {
		mu.Lock()
		calls++
		lastTotal = total
		mu.Unlock()
	}

	_, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root}, progress)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, lastTotal)
}

func TestIndexCancelledContext(t *testing.T) {
	env := newPipelineEnv(t)
	env.write(t, "auth.py", authPy)
	env.write(t, "pkg/util.go", utilGo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := env.indexer.Index(ctx, IndexOptions{Root: env.root}, nil)
	require.NoError(t, err)

	// No new files are scheduled once the context is done.
	assert.Zero(t, res.FilesIndexed)
	assert.Equal(t, StatePersisted, res.State)
}

// faultyIndex rejects every Add so the writer fails on the first file.
type faultyIndex struct {
	port.VectorIndex
}

func (f *faultyIndex) Add(records []domain.IndexRecord) error {
	return errors.New("disk full")
}

func TestIndexWriterFailureDoesNotHang(t *testing.T) {
	env := newPipelineEnv(t)
	for i := 0; i < 10; i++ {
		env.write(t, fmt.Sprintf("doc%02d.md", i), fmt.Sprintf("# Doc %d\n\nBody text.\n", i))
	}

	env.indexer.index = &faultyIndex{VectorIndex: env.index}
	env.indexer.workers = 1

	type outcome struct {
		res *IndexResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := env.indexer.Index(context.Background(), IndexOptions{Root: env.root}, nil)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		require.Error(t, out.err)
		assert.ErrorContains(t, out.err, "disk full")
		assert.Equal(t, StateFailed, out.res.State)
		assert.Zero(t, out.res.FilesIndexed)
	case <-time.After(10 * time.Second):
		t.Fatal("indexing run did not finish after the writer failed")
	}
}
