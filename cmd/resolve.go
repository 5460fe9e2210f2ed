package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgehq/forge/core/budget"
	"github.com/forgehq/forge/core/catalog"
	"github.com/forgehq/forge/core/detect"
	"github.com/forgehq/forge/core/resolver"
)

var (
	resolveOwner     string
	resolveTopics    []string
	resolveRequested []string
	resolveNoScan    bool
	resolveDomains   []string
	resolveDetected  []string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Dry-run context resolution for the current workspace",
	Long: `resolve scans the project for framework markers, builds the task
signal, and prints the load plan the engine would hand to an agent, along
with everything skipped for budget reasons.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveOwner, "owner", "default", "agent or skill whose budget applies")
	resolveCmd.Flags().StringSliceVar(&resolveTopics, "topic", nil, "free-text topic request (repeatable)")
	resolveCmd.Flags().StringSliceVar(&resolveRequested, "doc", nil, "explicit document ID to load (repeatable)")
	resolveCmd.Flags().BoolVar(&resolveNoScan, "no-scan", false, "skip the workspace scan")
	resolveCmd.Flags().StringSliceVar(&resolveDomains, "domain", nil, "additional task domain (repeatable)")
	resolveCmd.Flags().StringSliceVar(&resolveDetected, "signal", nil, "additional detected fact (repeatable)")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	index, err := buildCatalog(cfg)
	if err != nil {
		return err
	}
	searcher, err := catalog.NewTopicSearcher(index)
	if err != nil {
		return err
	}
	defer searcher.Close()

	signal := resolver.TaskSignal{
		Domains:   resolveDomains,
		Detected:  resolveDetected,
		Topics:    resolveTopics,
		Requested: resolveRequested,
	}
	if !resolveNoScan {
		scanned, err := detect.Scan(projectRoot, detect.DefaultRules())
		if err != nil {
			return err
		}
		signal.Domains = append(scanned.Domains, signal.Domains...)
		signal.Detected = append(scanned.Detected, signal.Detected...)
	}

	tracker := budget.NewTracker(cfg.BudgetFor(resolveOwner))
	plan, err := resolver.New(index, searcher).Resolve(signal, tracker)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "signal: domains=%v detected=%v topics=%v\n",
		signal.Domains, signal.Detected, signal.Topics)
	fmt.Fprintf(out, "budget: %d/%d tokens, %d/%d files\n\n",
		tracker.SpentTokens(), tracker.MaxTokens(), tracker.SpentFiles(), tracker.MaxFiles())

	fmt.Fprintf(out, "plan (%d entries, %d tokens):\n", len(plan.Entries), plan.TotalTokens())
	for _, entry := range plan.Entries {
		location := entry.DocumentID
		if len(entry.Sections) > 0 {
			location += "#" + strings.Join(entry.Sections, ",")
		}
		fmt.Fprintf(out, "  %-50s %-10s %6d tokens", location, entry.Reason, entry.CostTokens)
		if entry.Signal != "" {
			fmt.Fprintf(out, "  (%s)", entry.Signal)
		}
		fmt.Fprintln(out)
	}

	if len(plan.Skipped) > 0 {
		fmt.Fprintf(out, "\nskipped (%d):\n", len(plan.Skipped))
		for _, skipped := range plan.Skipped {
			fmt.Fprintf(out, "  %-50s %s\n", skipped.DocumentID, skipped.Reason)
		}
	}
	return nil
}
