package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagPruneJSON   bool
	flagPruneDryRun bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove records of agents that are gone",
	Long: `Run one reconciliation pass and delete the records whose agents are
definitively dead: pane gone, foreground pid or command changed hands,
tab missing, or record stale beyond stale_after on focused-only
backends.

Records are kept whenever the backend cannot answer (server down,
binary missing, pane unfocused). Use --dry-run to see what would be
deleted without touching the store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		engine := newEngine(cfg, openStore(cfg), nil)
		engine.DryRun = flagPruneDryRun

		result, err := engine.Run(cmd.Context())
		if err != nil {
			return err
		}

		if flagPruneJSON {
			report := struct {
				Kept     int      `json:"kept"`
				Pruned   []string `json:"pruned"`
				Failures []string `json:"failures,omitempty"`
				DryRun   bool     `json:"dry_run,omitempty"`
			}{
				Kept:   len(result.Alive),
				Pruned: []string{},
				DryRun: flagPruneDryRun,
			}
			for _, k := range result.Pruned {
				report.Pruned = append(report.Pruned, k.String())
			}
			for _, f := range result.Failures {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", f.Key, f.Err))
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		verb := "pruned"
		if flagPruneDryRun {
			verb = "would prune"
		}
		for _, k := range result.Pruned {
			fmt.Printf("%s %s\n", verb, k)
		}
		fmt.Printf("kept %d, %s %d, unverified %d\n",
			len(result.Alive), verb, len(result.Pruned), len(result.Failures))
		return nil
	},
}

func init() {
	pruneCmd.Flags().BoolVar(&flagPruneJSON, "json", false, "output a JSON report instead of text")
	pruneCmd.Flags().BoolVar(&flagPruneDryRun, "dry-run", false, "validate and report without deleting anything")
	rootCmd.AddCommand(pruneCmd)
}
