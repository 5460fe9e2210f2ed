package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgehq/forge/core/catalog"
	"github.com/forgehq/forge/core/config"
	"github.com/forgehq/forge/core/storage"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the context catalog",
	RunE:  runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func loadEngineConfig() (*config.Config, error) {
	return config.Load(projectRoot, storage.ResolveDirs())
}

func buildCatalog(cfg *config.Config) (*catalog.Index, error) {
	return catalog.BuildIndex(cfg.Context.Dir, catalog.BuildOptions{
		ExcludePatterns: cfg.Context.ExcludePatterns,
	})
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	index, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d documents in %d domains\n\n", index.Len(), len(index.Domains()))
	for _, domain := range index.Domains() {
		fmt.Fprintf(out, "%s:\n", domain)
		for _, doc := range index.ListByDomain(domain) {
			fmt.Fprintf(out, "  %-40s %-10s %6d tokens  tags=%v\n",
				doc.ID, doc.Strategy, doc.EstimatedTokens, doc.Tags)
		}
		fmt.Fprintln(out)
	}
	return nil
}
