package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"codectx/config"
	"codectx/internal/app"
)

var (
	cfgFile     string
	projectFlag string
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "codectx",
	Short: "Semantic code context retrieval for AI agents and developers",
	Long: `codectx indexes a codebase into semantically meaningful chunks,
embeds them, and answers natural-language queries with ranked source
fragments.

Example usage:
  codectx project set myapp /path/to/repo   # Register and select a project
  codectx index                             # Index the current project
  codectx query "How is auth implemented?"  # Retrieve relevant chunks`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys may live in a .env next to the working directory.
		_ = godotenv.Load()

		var cfg *config.Config
		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(".")
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		application, err = app.New(cfg)
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./codectx.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "project name (default is the current project)")
}
