package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"codectx/internal/usecase"
)

var indexExtensions []string

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a codebase for retrieval",
	Long: `Index the current project's codebase, or only the given subtree or
file. Re-indexing a path replaces its previous chunks; a full project run
also removes chunks for files that no longer exist.

Examples:
  codectx index                     # Index the whole project
  codectx index src/auth            # Re-index one subtree
  codectx index --ext .go --ext .md # Restrict by extension`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringSliceVar(&indexExtensions, "ext", nil, "file extensions to index (e.g. .go)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	session, err := application.Open(projectFlag)
	if err != nil {
		return err
	}
	defer session.Close()

	root := session.Project.RootDir
	full := true
	if len(args) > 0 {
		root, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		full = root == session.Project.RootDir
	}
	if len(indexExtensions) > 0 {
		full = false
	}

	indexer, err := application.Indexer(session)
	if err != nil {
		return err
	}

	fmt.Printf("Indexing %s (project %s)...\n", root, session.Project.Name)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	progress := func(done, total int, path string) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	result, err := indexer.Index(cmd.Context(), usecase.IndexOptions{
		Root:            root,
		Extensions:      normalizeExtensions(indexExtensions),
		DetectDeletions: full,
	}, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files scanned:  %d\n", result.FilesScanned)
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files skipped:  %d\n", result.FilesSkipped)
	fmt.Printf("  Files failed:   %d\n", result.FilesFailed)
	if result.FilesDeleted > 0 {
		fmt.Printf("  Files deleted:  %d (removed from index)\n", result.FilesDeleted)
	}
	fmt.Printf("  Chunks indexed: %d\n", result.ChunksIndexed)
	fmt.Printf("  Index records:  %d\n", session.Index.Count())

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, strings.ToLower(e))
	}
	return out
}
