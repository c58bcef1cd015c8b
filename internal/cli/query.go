package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	queryTopK      int
	queryThreshold float64
	queryOutput    string
	queryTerminal  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Query the indexed codebase",
	Long: `Retrieve ranked, formatted source fragments for a natural-language
query. Results are written to an output file; pass --terminal to print
them in full as well.

Examples:
  codectx query "How is authentication implemented?"
  codectx query "database migrations" --top-k 10 --threshold 0.5 --terminal`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().Float64VarP(&queryThreshold, "threshold", "t", -1, "minimum similarity score (default from config)")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "context.txt", "output file for formatted results")
	queryCmd.Flags().BoolVarP(&queryTerminal, "terminal", "T", false, "also print full results to the terminal")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	queryText := args[0]

	session, err := application.Open(projectFlag)
	if err != nil {
		return err
	}
	defer session.Close()

	topK := session.Cfg.Retriever.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}
	threshold := session.Cfg.Retriever.Threshold
	if queryThreshold >= 0 {
		threshold = queryThreshold
	}

	querier := application.Querier(session)
	results, err := querier.Query(cmd.Context(), queryText, topK, threshold)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	formatted := querier.Format(results)

	content := fmt.Sprintf("Results for query: %s\n\n", queryText)
	for i, snippet := range formatted {
		content += fmt.Sprintf("Result %d:\n%s\n\n", i+1, snippet)
	}
	if err := os.WriteFile(queryOutput, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Results for query: %s\n", queryText)
	fmt.Printf("Found %d results. Saved to %s\n", len(results), queryOutput)

	if queryTerminal {
		fmt.Println("\nFull results:")
		for i, snippet := range formatted {
			fmt.Printf("Result %d:\n%s\n", i+1, snippet)
		}
	}
	return nil
}
