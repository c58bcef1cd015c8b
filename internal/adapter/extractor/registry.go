package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codectx/internal/domain"
	"codectx/internal/port"
)

// Registry dispatches files to extractors by extension. An extension may be
// claimed by at most one extractor; registration fails loudly on conflict.
type Registry struct {
	maxFileSize int64
	byExt       map[string]port.Extractor
}

var _ port.ExtractorSet = (*Registry)(nil)

// NewRegistry creates an empty registry with the given file size limit.
func NewRegistry(maxFileSize int64) *Registry {
	return &Registry{
		maxFileSize: maxFileSize,
		byExt:       make(map[string]port.Extractor),
	}
}

// NewDefaultRegistry returns a registry with the built-in extractors.
func NewDefaultRegistry(maxFileSize int64) (*Registry, error) {
	r := NewRegistry(maxFileSize)
	for _, e := range []port.Extractor{
		NewGoExtractor(),
		NewPythonExtractor(),
		NewWebScriptExtractor(),
		NewMarkdownExtractor(),
	} {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an extractor for every extension it claims.
func (r *Registry) Register(e port.Extractor) error {
	for _, ext := range e.Extensions() {
		ext = strings.ToLower(ext)
		if _, taken := r.byExt[ext]; taken {
			return fmt.Errorf("%w: %s", domain.ErrExtensionConflict, ext)
		}
		r.byExt[ext] = e
	}
	return nil
}

// ForPath returns the extractor claiming the file's extension, if any.
func (r *Registry) ForPath(path string) (port.Extractor, bool) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return e, ok
}

// Supported reports whether any extractor claims the file's extension.
func (r *Registry) Supported(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// Extract runs the matching extractor on the file. Files over the size
// limit return domain.ErrFileTooLarge. When the extractor finds no finer
// structure the whole file becomes a single document chunk, so every
// indexable file yields at least one chunk. All returned chunks carry the
// file path and a computed content hash.
func (r *Registry) Extract(path string) ([]domain.Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}
	if info.Size() > r.maxFileSize {
		return nil, fmt.Errorf("%w: %s (%d bytes)", domain.ErrFileTooLarge, path, info.Size())
	}

	e, ok := r.ForPath(path)
	if !ok {
		return nil, &domain.ExtractionError{Path: path, Err: fmt.Errorf("no extractor for extension %q", filepath.Ext(path))}
	}

	chunks, err := e.Extract(path)
	if err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}

	if len(chunks) == 0 {
		whole, err := wholeFileChunk(path)
		if err != nil {
			return nil, &domain.ExtractionError{Path: path, Err: err}
		}
		chunks = []domain.Chunk{whole}
	}

	for i := range chunks {
		chunks[i].FilePath = path
		if chunks[i].ContentHash == "" {
			chunks[i].ComputeHash()
		}
	}
	return chunks, nil
}

// wholeFileChunk wraps an entire file into one document chunk.
func wholeFileChunk(path string) (domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Chunk{}, err
	}
	text := string(data)
	return domain.Chunk{
		FilePath:  path,
		Type:      domain.ChunkDocument,
		Name:      filepath.Base(path),
		Text:      text,
		StartLine: 1,
		EndLine:   countLines(text),
	}, nil
}

// countLines returns the 1-indexed line count of text. Empty text is one
// line so spans stay valid.
func countLines(text string) int {
	n := strings.Count(text, "\n") + 1
	if strings.HasSuffix(text, "\n") {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}
