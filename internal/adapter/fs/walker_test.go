package fs

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func relPaths(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out[i] = rel
	}
	sort.Strings(out)
	return out
}

func TestWalkExcludesDirsAndFiles(t *testing.T) {
	root := buildTree(t, map[string]string{
		"main.go":                "package main",
		"lib/util.go":            "package lib",
		"lib/util_test.go":       "package lib",
		".git/config":            "x",
		"node_modules/pkg/a.js":  "x",
		"vendor/dep/b.go":        "x",
		"dist/app.min.js":        "x",
		"deep/node_modules/c.js": "x",
		"go.sum":                 "x",
	})

	w := NewWalker(
		[]string{".git", "node_modules", "vendor", "dist"},
		[]string{"*.min.js", "*.sum"},
	)

	files, err := w.Walk(root)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
		assert.Positive(t, f.Size)
	}

	assert.Equal(t, []string{
		filepath.Join("lib", "util.go"),
		filepath.Join("lib", "util_test.go"),
		"main.go",
	}, relPaths(t, root, paths))
}

func TestWalkSingleFileRoot(t *testing.T) {
	root := buildTree(t, map[string]string{"auth.py": "def login(): pass"})

	w := NewWalker(nil, nil)
	files, err := w.Walk(filepath.Join(root, "auth.py"))
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "auth.py", filepath.Base(files[0].Path))
}

func TestWalkSingleFileRootExcluded(t *testing.T) {
	root := buildTree(t, map[string]string{"bundle.min.js": "x"})

	w := NewWalker(nil, []string{"*.min.js"})
	files, err := w.Walk(filepath.Join(root, "bundle.min.js"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestWalkMissingRoot(t *testing.T) {
	w := NewWalker(nil, nil)
	_, err := w.Walk(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
