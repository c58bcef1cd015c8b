package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"codectx/internal/domain"
	"codectx/internal/port"
)

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")
	keyMeta       = []byte("index_meta")
)

type indexMeta struct {
	Metric    string `json:"metric"`
	Dimension int    `json:"dimension"`
}

type storedRecord struct {
	Chunk  domain.Chunk `json:"chunk"`
	Vector []float32    `json:"vector"`
}

// BoltIndex is a vector index persisted in a bolt database, with a full
// in-memory copy for search. Mutations write through inside a single bolt
// transaction, so readers observe either the pre-update or post-update
// state, never a partial one. Search is brute force; fine for
// per-project code indexes.
type BoltIndex struct {
	db        *bbolt.DB
	metric    string
	dimension int

	mu      sync.RWMutex
	records map[string]domain.IndexRecord
	byPath  map[string]map[string]struct{} // file path -> record ids
}

// Open opens (creating if needed) the index at path. The metric is fixed
// at creation: reopening an existing index with a different metric fails
// with a rebuild-required error rather than silently rescoring.
func Open(path, metric string, dimension int) (*BoltIndex, error) {
	if metric != MetricCosine && metric != MetricL2 {
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidConfig, metric)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open index db: %w", err)
	}

	idx := &BoltIndex{
		db:        db,
		metric:    metric,
		dimension: dimension,
		records:   make(map[string]domain.IndexRecord),
		byPath:    make(map[string]map[string]struct{}),
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		mb, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}

		data := mb.Get(keyMeta)
		if data == nil {
			meta := indexMeta{Metric: metric, Dimension: dimension}
			encoded, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			return mb.Put(keyMeta, encoded)
		}

		var meta indexMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("%w: unreadable index meta: %v", domain.ErrIndexCorrupt, err)
		}
		if meta.Metric != metric {
			return fmt.Errorf("%w: index was built with metric %q, configured %q; full rebuild required",
				domain.ErrIndexCorrupt, meta.Metric, metric)
		}
		if meta.Dimension != 0 && dimension != 0 && meta.Dimension != dimension {
			return fmt.Errorf("%w: index dimension %d does not match embedder dimension %d; full rebuild required",
				domain.ErrIndexCorrupt, meta.Dimension, dimension)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := idx.Load(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Load repopulates the in-memory copy from the backing store.
func (idx *BoltIndex) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	records := make(map[string]domain.IndexRecord)
	byPath := make(map[string]map[string]struct{})

	err := idx.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("%w: unreadable record %s: %v", domain.ErrIndexCorrupt, k, err)
			}
			id := string(k)
			records[id] = domain.IndexRecord{ID: id, Chunk: stored.Chunk, Vector: stored.Vector}
			addPathID(byPath, stored.Chunk.FilePath, id)
			return nil
		})
	})
	if err != nil {
		return err
	}

	idx.records = records
	idx.byPath = byPath
	return nil
}

// Add appends records, rejecting duplicate ids and wrong dimensions.
func (idx *BoltIndex) Add(records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, rec := range records {
		if _, dup := idx.records[rec.ID]; dup {
			return fmt.Errorf("duplicate record id: %s", rec.ID)
		}
		if idx.dimension != 0 && len(rec.Vector) != idx.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d",
				rec.ID, idx.dimension, len(rec.Vector))
		}
	}

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, rec := range records {
			data, err := json.Marshal(storedRecord{Chunk: rec.Chunk, Vector: rec.Vector})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store records: %w", err)
	}

	for _, rec := range records {
		idx.records[rec.ID] = rec
		addPathID(idx.byPath, rec.Chunk.FilePath, rec.ID)
	}
	return nil
}

// RemoveByPath deletes every record extracted from path and returns the
// count removed.
func (idx *BoltIndex) RemoveByPath(path string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids := idx.byPath[path]
	if len(ids) == 0 {
		return 0, nil
	}

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete records for %s: %w", path, err)
	}

	for id := range ids {
		delete(idx.records, id)
	}
	delete(idx.byPath, path)
	return len(ids), nil
}

// Paths returns every file path currently present in the index. The
// pipeline's deletion-detection pass diffs this against the files on disk.
func (idx *BoltIndex) Paths() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	paths := make([]string, 0, len(idx.byPath))
	for p := range idx.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Search ranks all records against the query vector and returns the topK
// best. Ordering is deterministic: descending score, then ascending file
// path, then ascending start line.
func (idx *BoltIndex) Search(query []float32, topK int) ([]port.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidConfig, topK)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dimension != 0 && len(query) != idx.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", idx.dimension, len(query))
	}
	if len(idx.records) == 0 {
		return nil, nil
	}

	results := make([]port.SearchResult, 0, len(idx.records))
	for _, rec := range idx.records {
		results = append(results, port.SearchResult{
			Record: rec,
			Score:  score(idx.metric, query, rec.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ci, cj := results[i].Record.Chunk, results[j].Record.Chunk
		if ci.FilePath != cj.FilePath {
			return ci.FilePath < cj.FilePath
		}
		return ci.StartLine < cj.StartLine
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Persist flushes the backing store. Record writes already happen inside
// bolt transactions; this fsyncs and refreshes the meta record.
func (idx *BoltIndex) Persist() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		meta := indexMeta{Metric: idx.metric, Dimension: idx.dimension}
		encoded, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyMeta, encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to persist index meta: %w", err)
	}
	return idx.db.Sync()
}

// Count returns the number of indexed records.
func (idx *BoltIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Metric returns the index's fixed similarity metric.
func (idx *BoltIndex) Metric() string {
	return idx.metric
}

func (idx *BoltIndex) Close() error {
	return idx.db.Close()
}

func addPathID(byPath map[string]map[string]struct{}, path, id string) {
	ids := byPath[path]
	if ids == nil {
		ids = make(map[string]struct{})
		byPath[path] = ids
	}
	ids[id] = struct{}{}
}
