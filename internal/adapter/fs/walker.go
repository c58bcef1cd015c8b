package fs

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"codectx/internal/port"
)

// Walker lists files under a root, skipping excluded directories and file
// patterns. Directory patterns match directory names anywhere in the tree;
// file patterns match base names.
type Walker struct {
	excludeDirs  []string
	excludeFiles []string
}

func NewWalker(excludeDirs, excludeFiles []string) *Walker {
	return &Walker{
		excludeDirs:  excludeDirs,
		excludeFiles: excludeFiles,
	}
}

// Walk returns the eligible files under root. A root that is itself a file
// yields just that file, so single-file re-indexing walks the same path.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if w.excludedFile(filepath.Base(root)) {
			return nil, nil
		}
		return []port.FileInfo{{Path: root, Size: info.Size()}}, nil
	}

	var files []port.FileInfo
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != root && w.excludedDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if w.excludedFile(info.Name()) {
			return nil
		}

		files = append(files, port.FileInfo{Path: path, Size: info.Size()})
		return nil
	})

	return files, err
}

func (w *Walker) excludedDir(name string) bool {
	return matchAny(w.excludeDirs, name)
}

func (w *Walker) excludedFile(name string) bool {
	return matchAny(w.excludeFiles, name)
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}
