package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChunkType classifies a chunk by the syntactic unit it was extracted from.
// The set is open: extractors may introduce their own types.
type ChunkType string

const (
	ChunkFunction       ChunkType = "function"
	ChunkMethod         ChunkType = "method"
	ChunkClass          ChunkType = "class"
	ChunkStruct         ChunkType = "struct"
	ChunkInterface      ChunkType = "interface"
	ChunkModuleDoc      ChunkType = "module_doc"
	ChunkHeadingSection ChunkType = "heading_section"
	ChunkDocument       ChunkType = "document"
	ChunkOther          ChunkType = "other"
)

// Chunk is the atomic retrieval unit: a named, typed, bounded fragment of a
// source file. Text carries the fragment body plus surrounding context
// (signature, doc comment) and is what gets embedded and displayed.
type Chunk struct {
	FilePath    string    `json:"file_path"`
	Type        ChunkType `json:"type"`
	Name        string    `json:"name"`
	Text        string    `json:"text"`
	StartLine   int       `json:"start_line"`
	EndLine     int       `json:"end_line"`
	ContentHash string    `json:"content_hash"`
}

// ComputeHash fills ContentHash from Text. The hash is the chunk's identity
// for embedding-cache lookups, so it must depend on Text alone.
func (c *Chunk) ComputeHash() {
	sum := sha256.Sum256([]byte(c.Text))
	c.ContentHash = hex.EncodeToString(sum[:])
}

// IndexRecord pairs a chunk with its embedding inside a vector index.
type IndexRecord struct {
	ID     string
	Chunk  Chunk
	Vector []float32
}

// ScoredChunk is a query result: a chunk plus its similarity score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Project binds a name to a codebase root, an optional config file, and the
// index identity under which its vectors and cache are stored.
type Project struct {
	Name       string `json:"name"`
	RootDir    string `json:"root_dir"`
	ConfigPath string `json:"config_path,omitempty"`
	IndexName  string `json:"index_name"`
}
