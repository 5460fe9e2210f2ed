// Package cmd provides the forgectl host tool: inspection and dry-run
// commands over the context catalog and the memory store. The engine itself
// is a library; this tool is the reference host wiring.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// projectRoot is the workspace the commands operate on.
	projectRoot string
)

var rootCmd = &cobra.Command{
	Use:   "forgectl",
	Short: "Forge context and memory engine tooling",
	Long: `forgectl inspects the context catalog, dry-runs context resolution
against a task signal, and lists persisted memory for a scope.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "project", "p", ".", "project root directory")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
