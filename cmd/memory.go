package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgehq/forge/core/memory"
)

var (
	memoryOwner    string
	memoryProject  string
	memoryCategory string
	memoryStale    bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect the persisted memory store",
	RunE:  runMemory,
}

func init() {
	memoryCmd.Flags().StringVar(&memoryOwner, "owner", "", "owner ID of the scope")
	memoryCmd.Flags().StringVar(&memoryProject, "project-id", "", "project ID of the scope")
	memoryCmd.Flags().StringVar(&memoryCategory, "category", "", "scope category")
	memoryCmd.Flags().BoolVar(&memoryStale, "stale", false, "list only entries past the freshness horizon")
	rootCmd.AddCommand(memoryCmd)
}

func runMemory(cmd *cobra.Command, args []string) error {
	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.StoreOptions()
	if err != nil {
		return err
	}
	store, err := memory.Open(cfg.Memory.Path, opts)
	if err != nil {
		return err
	}
	defer store.Close()

	scope := memory.Scope{
		OwnerID:   memoryOwner,
		ProjectID: memoryProject,
		Category:  memoryCategory,
	}
	if !scope.Valid() {
		return fmt.Errorf("memory: --owner, --project-id, and --category are all required")
	}

	ctx := cmd.Context()
	var entries []memory.Entry
	if memoryStale {
		entries, err = store.Stale(ctx, scope, cfg.FreshnessHorizon())
	} else {
		entries, err = store.Read(ctx, scope)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d entries\n", scope, len(entries))
	for _, entry := range entries {
		fmt.Fprintf(out, "  %-30s %s  %s\n",
			entry.Key, entry.UpdatedAt.Format(time.RFC3339), entry.Value)
	}
	return nil
}
