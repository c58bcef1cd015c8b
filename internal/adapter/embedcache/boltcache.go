package embedcache

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.etcd.io/bbolt"
)

var bucketEmbeddings = []byte("embeddings")

const defaultLRUSize = 10000

// BoltCache is a persistent embedding cache keyed by (model, content hash).
// An LRU layer in front keeps hot hashes off disk. Entries are immutable:
// the same key always maps to the same vector, so concurrent writes are
// last-writer-wins and idempotent.
type BoltCache struct {
	db  *bbolt.DB
	hot *lru.Cache[string, []float32]
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	hot, err := lru.New[string, []float32](defaultLRUSize)
	if err != nil {
		return nil, err
	}

	return &BoltCache{db: db, hot: hot}, nil
}

func cacheKey(modelID, contentHash string) string {
	return modelID + ":" + contentHash
}

// Get returns the cached vector for (modelID, contentHash), if present.
func (c *BoltCache) Get(modelID, contentHash string) ([]float32, bool, error) {
	key := cacheKey(modelID, contentHash)

	if vec, ok := c.hot.Get(key); ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, true, nil
	}

	var vec []float32
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(key))
		if data == nil {
			return nil
		}
		vec = decodeVector(data)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if vec == nil {
		return nil, false, nil
	}

	c.hot.Add(key, vec)
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true, nil
}

// Put stores a vector under (modelID, contentHash).
func (c *BoltCache) Put(modelID, contentHash string, vector []float32) error {
	key := cacheKey(modelID, contentHash)

	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(key), encodeVector(vector))
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	c.hot.Add(key, stored)
	return nil
}

// Clear drops every entry. There is no TTL; this is the only eviction.
func (c *BoltCache) Clear() error {
	c.hot.Purge()
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketEmbeddings); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketEmbeddings)
		return err
	})
}

// Count returns the number of persisted entries.
func (c *BoltCache) Count() (int, error) {
	n := 0
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEmbeddings).Stats().KeyN
		return nil
	})
	return n, err
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
