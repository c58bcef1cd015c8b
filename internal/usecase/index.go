package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"codectx/internal/domain"
	"codectx/internal/port"
)

// RunState names the pipeline stages. A run moves through them in order
// and ends Persisted, or Failed on an unrecoverable error.
type RunState string

const (
	StateScanning   RunState = "scanning"
	StateExtracting RunState = "extracting"
	StateEmbedding  RunState = "embedding"
	StateUpserting  RunState = "upserting"
	StatePersisted  RunState = "persisted"
	StateFailed     RunState = "failed"
)

// IndexUseCase drives the indexing pipeline for one project: walk, extract,
// embed, upsert, persist. Extraction and embedding run across a bounded
// worker pool; index mutation is funneled through a single writer.
type IndexUseCase struct {
	walker     port.Walker
	extractors port.ExtractorSet
	embedder   port.EmbedderBackend
	index      port.VectorIndex
	lockPath   string
	workers    int
}

func NewIndexUseCase(
	walker port.Walker,
	extractors port.ExtractorSet,
	embedder port.EmbedderBackend,
	index port.VectorIndex,
	lockPath string,
	workers int,
) *IndexUseCase {
	if workers <= 0 {
		workers = 4
	}
	return &IndexUseCase{
		walker:     walker,
		extractors: extractors,
		embedder:   embedder,
		index:      index,
		lockPath:   lockPath,
		workers:    workers,
	}
}

// IndexOptions select what a run covers.
type IndexOptions struct {
	// Root is the path to (re-)index: a project root, a subtree, or a
	// single file.
	Root string

	// Extensions, when non-empty, restricts the run to those file
	// extensions (with leading dot).
	Extensions []string

	// DetectDeletions removes records for indexed paths under Root that no
	// longer exist on disk. Full project runs set this.
	DetectDeletions bool
}

// IndexResult is the end-of-run summary.
type IndexResult struct {
	State         RunState
	FilesScanned  int
	FilesIndexed  int
	FilesSkipped  int // no extractor, filtered out, or over the size limit
	FilesFailed   int
	FilesDeleted  int
	ChunksIndexed int
	Errors        []string
}

// fileChunks is the unit handed from the worker pool to the upsert writer.
type fileChunks struct {
	path    string
	records []domain.IndexRecord
}

// Index runs the pipeline. Per-file failures are contained: they are
// logged, counted, and the run continues. Only index-structural and
// persistence failures abort the run. Re-running over the same tree is
// idempotent because each file's stale records are removed before its new
// ones are inserted.
func (u *IndexUseCase) Index(ctx context.Context, opts IndexOptions, progress func(done, total int, path string)) (*IndexResult, error) {
	lock, err := acquireLock(u.lockPath)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	result := &IndexResult{State: StateScanning}

	files, err := u.walker.Walk(opts.Root)
	if err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("failed to scan %s: %w", opts.Root, err)
	}

	eligible := u.filterFiles(files, opts.Extensions, result)
	result.FilesScanned = len(files)

	result.State = StateExtracting

	results := make(chan fileChunks, u.workers)
	writerDone := make(chan error, 1)

	go func() {
		writerDone <- u.upsert(results, result)
	}()

	var done atomic.Int32
	g := &errgroup.Group{}
	g.SetLimit(u.workers)

	var failed, skippedLarge, chunksOK atomic.Int32
	var errMu sync.Mutex
	addErr := func(msg string) {
		errMu.Lock()
		result.Errors = append(result.Errors, msg)
		errMu.Unlock()
	}

	for _, file := range eligible {
		// Cancellation granularity is "stop scheduling new files";
		// in-flight work finishes.
		if ctx.Err() != nil {
			break
		}

		file := file
		g.Go(func() error {
			records, err := u.processFile(ctx, file.Path)
			n := done.Add(1)
			if progress != nil {
				progress(int(n), len(eligible), file.Path)
			}

			if err != nil {
				if errors.Is(err, domain.ErrFileTooLarge) {
					skippedLarge.Add(1)
					log.Printf("skipping %s: %v", file.Path, err)
					return nil
				}
				failed.Add(1)
				addErr(err.Error())
				log.Printf("failed to index %s: %v", file.Path, err)
				return nil
			}

			chunksOK.Add(int32(len(records)))
			results <- fileChunks{path: file.Path, records: records}
			return nil
		})
	}

	_ = g.Wait() // per-file errors are contained above
	close(results)

	result.State = StateUpserting
	if err := <-writerDone; err != nil {
		result.State = StateFailed
		return result, err
	}

	result.FilesSkipped += int(skippedLarge.Load())
	result.FilesFailed = int(failed.Load())
	result.ChunksIndexed = int(chunksOK.Load())

	if opts.DetectDeletions {
		if err := u.removeMissing(opts.Root, result); err != nil {
			result.State = StateFailed
			return result, err
		}
	}

	if err := u.index.Persist(); err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("failed to persist index: %w", err)
	}

	result.State = StatePersisted
	return result, nil
}

// filterFiles keeps files that some extractor claims and that pass the
// extension filter.
func (u *IndexUseCase) filterFiles(files []port.FileInfo, exts []string, result *IndexResult) []port.FileInfo {
	extSet := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = struct{}{}
	}

	var eligible []port.FileInfo
	for _, f := range files {
		if len(extSet) > 0 {
			if _, ok := extSet[strings.ToLower(filepath.Ext(f.Path))]; !ok {
				result.FilesSkipped++
				continue
			}
		}
		if !u.extractors.Supported(f.Path) {
			result.FilesSkipped++
			continue
		}
		eligible = append(eligible, f)
	}
	return eligible
}

// processFile extracts and embeds one file, producing fresh index records.
func (u *IndexUseCase) processFile(ctx context.Context, path string) ([]domain.IndexRecord, error) {
	chunks, err := u.extractors.Extract(path)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := u.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", path, err)
	}

	records := make([]domain.IndexRecord, len(chunks))
	for i := range chunks {
		records[i] = domain.IndexRecord{
			ID:     uuid.NewString(),
			Chunk:  chunks[i],
			Vector: vectors[i],
		}
	}
	return records, nil
}

// upsert is the single index writer: per file it removes stale records
// first, then inserts the new set, so partial re-indexing is idempotent.
// After the first failure it keeps draining the channel without writing,
// so workers blocked on send always get to finish and the run can fail
// cleanly instead of hanging.
func (u *IndexUseCase) upsert(results <-chan fileChunks, result *IndexResult) error {
	var firstErr error
	for fc := range results {
		if firstErr != nil {
			continue
		}
		if _, err := u.index.RemoveByPath(fc.path); err != nil {
			firstErr = fmt.Errorf("failed to remove stale records for %s: %w", fc.path, err)
			continue
		}
		if err := u.index.Add(fc.records); err != nil {
			firstErr = fmt.Errorf("failed to add records for %s: %w", fc.path, err)
			continue
		}
		result.FilesIndexed++
	}
	return firstErr
}

// removeMissing drops records for indexed paths under root that are gone
// from disk.
func (u *IndexUseCase) removeMissing(root string, result *IndexResult) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	for _, p := range u.index.Paths() {
		if !underRoot(absRoot, p) {
			continue
		}
		if _, err := os.Stat(p); err == nil || !os.IsNotExist(err) {
			continue
		}
		if _, err := u.index.RemoveByPath(p); err != nil {
			return fmt.Errorf("failed to remove deleted file %s: %w", p, err)
		}
		result.FilesDeleted++
	}
	return nil
}

func underRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
