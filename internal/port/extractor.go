package port

import "codectx/internal/domain"

// ExtractorSet dispatches files to the extractor claiming their
// extension, applying set-wide policy: size limits, whole-file fallback,
// path and hash stamping.
type ExtractorSet interface {
	// Extract parses the file into chunks, at least one per indexable
	// file. Oversized files fail with domain.ErrFileTooLarge.
	Extract(path string) ([]domain.Chunk, error)

	// Supported reports whether any extractor claims the file.
	Supported(path string) bool
}

// Extractor parses one family of file types into retrievable chunks.
type Extractor interface {
	// Extract parses the file and returns its chunks in source order.
	Extract(path string) ([]domain.Chunk, error)

	// Extensions returns the file extensions this extractor claims,
	// lowercase with leading dot. An extension may be claimed by at most
	// one registered extractor.
	Extensions() []string
}
