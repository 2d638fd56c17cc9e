package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/timvw/muxtrack/internal/agent"
	"github.com/timvw/muxtrack/internal/config"
	"github.com/timvw/muxtrack/internal/model"
)

var (
	flagListJSON bool
	flagListAll  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked agents",
	Long: `Run one reconciliation pass and list the agents that survive it.

Records whose backend could not answer are kept and marked unverified
("?"). Use --all to dump the raw store contents without reconciling,
and --json for machine-readable output. Sessions matching
exclude_sessions are hidden from the listing; their records stay in
the store untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		store := openStore(cfg)

		var agents []model.AgentState
		unverified := map[string]bool{}

		if flagListAll {
			agents, err = store.LoadAll()
			if err != nil {
				return err
			}
		} else {
			result, err := newEngine(cfg, store, nil).Run(cmd.Context())
			if err != nil {
				return err
			}
			agents = result.Alive
			for _, f := range result.Failures {
				unverified[f.Key.String()] = true
			}
		}

		visible := agents[:0]
		for _, st := range agents {
			if config.MatchesExcludeList(st.Key.Session, cfg.ExcludeSessions) {
				continue
			}
			visible = append(visible, st)
		}
		sort.Slice(visible, func(i, j int) bool {
			return visible[i].Key.String() < visible[j].Key.String()
		})

		if flagListJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(visible)
		}

		if len(visible) == 0 {
			fmt.Println("no tracked agents")
			return nil
		}

		keyWidth := 20
		for _, st := range visible {
			if l := len(st.Key.String()); l > keyWidth {
				keyWidth = l
			}
		}

		fmt.Printf("%-9s %-9s %-*s %-5s %s\n", "STATUS", "AGENT", keyWidth, "KEY", "AGE", "WORKDIR")
		for _, st := range visible {
			status := string(st.Status)
			if status == "" {
				status = "-"
			}
			if unverified[st.Key.String()] {
				status += "?"
			}
			kind := string(agent.KindFromCommand(st.Command))
			fmt.Printf("%-9s %-9s %-*s %-5s %s\n", status, kind, keyWidth, st.Key, recordAge(st), st.WorkDir)
		}
		return nil
	},
}

// recordAge renders how long the record's status has held, preferring the
// status timestamp over the last write.
func recordAge(st model.AgentState) string {
	ts := st.UpdatedTS
	if !st.StatusTS.IsZero() {
		ts = st.StatusTS
	}
	d := time.Since(ts)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func init() {
	listCmd.Flags().BoolVar(&flagListJSON, "json", false, "output a JSON array instead of a table")
	listCmd.Flags().BoolVar(&flagListAll, "all", false, "dump raw store contents without reconciling")
	rootCmd.AddCommand(listCmd)
}
