package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectConfigFile string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage registered projects",
}

var projectSetCmd = &cobra.Command{
	Use:   "set <name> [directory]",
	Short: "Register a project or switch to an existing one",
	Long: `Register a new project (name plus directory) or switch the current
project to an already-registered name.

Examples:
  codectx project set myapp /path/to/repo
  codectx project set myapp`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 1 {
			dir = args[1]
		}

		p, err := application.Registry.Set(args[0], dir, projectConfigFile)
		if err != nil {
			return err
		}

		fmt.Printf("Current project set to '%s' (%s)\n", p.Name, p.RootDir)
		return nil
	},
}

var projectCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := application.Registry.CurrentName()
		if name == "" {
			fmt.Println("No current project set.")
			return nil
		}

		p, err := application.Registry.Get(name)
		if err != nil {
			return err
		}

		fmt.Printf("Current project: %s\n", p.Name)
		fmt.Printf("  Directory:  %s\n", p.RootDir)
		if p.ConfigPath != "" {
			fmt.Printf("  Config:     %s\n", p.ConfigPath)
		}
		fmt.Printf("  Index name: %s\n", p.IndexName)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		projects := application.Registry.List()
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		current := application.Registry.CurrentName()
		fmt.Println("Projects:")
		for _, p := range projects {
			marker := ""
			if p.Name == current {
				marker = " (current)"
			}
			fmt.Printf("  %s%s: %s\n", p.Name, marker, p.RootDir)
		}
		return nil
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Registry.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Project '%s' removed.\n", args[0])
		return nil
	},
}

func init() {
	projectSetCmd.Flags().StringVarP(&projectConfigFile, "config-file", "c", "", "project-specific config file")

	projectCmd.AddCommand(projectSetCmd)
	projectCmd.AddCommand(projectCurrentCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}
