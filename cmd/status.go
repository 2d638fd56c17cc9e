package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/timvw/muxtrack/internal/model"
)

var (
	flagStatusSession string
	flagStatusWindow  string
	flagStatusPane    string
	flagStatusWorkdir string
	flagStatusTitle   string
)

var statusCmd = &cobra.Command{
	Use:   "status <idle|working|done>",
	Short: "Report this agent's status (hook entry point)",
	Long: `Record the calling agent's status in the state store.

Wire this into the agent's lifecycle hooks so every status change lands
here, e.g. "muxtrack status working" when a task starts and
"muxtrack status idle" when it finishes. The pane is resolved from the
multiplexer environment of the calling process; flags override each
component for hooks that run outside the pane they describe.

Each report fully replaces the pane's record. Reporting the same status
twice keeps the original status timestamp, so "how long has this agent
been idle" answers since when, not since the last hook fired.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := model.ParseStatus(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		backend, err := getBackend(cfg)
		if err != nil {
			return err
		}

		paneID := flagStatusPane
		if paneID == "" {
			paneID = backend.OwnPaneID()
		}
		if paneID == "" {
			return fmt.Errorf("cannot resolve the current pane: not inside %s (use --pane)", backend.Name())
		}

		// Live metadata is best effort: a pane the backend cannot observe
		// right now still gets a record, with the unobservable fields left
		// at their unknown values.
		live, err := backend.LivePaneInfo(cmd.Context(), paneID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: live pane query failed: %v\n", err)
		}
		if live == nil {
			live = &model.LivePaneInfo{}
		}

		key := model.PaneKey{
			Mux:     backend.Name(),
			Session: firstNonEmpty(flagStatusSession, live.Session),
			Window:  firstNonEmpty(flagStatusWindow, live.Window),
			Pane:    paneID,
		}

		workdir := firstNonEmpty(flagStatusWorkdir, live.WorkDir)
		if workdir == "" {
			workdir, _ = os.Getwd()
		}

		st := model.AgentState{
			Key:       key,
			WorkDir:   workdir,
			Status:    status,
			StatusTS:  time.Now().UTC(),
			PaneTitle: firstNonEmpty(flagStatusTitle, live.Title),
			PanePID:   live.PID,
			Command:   live.Command,
			// Cache the location names for backends that can only validate
			// at tab granularity later. Fall back to what the caller told
			// us when the live query could not supply them.
			WindowName:  firstNonEmpty(live.Window, key.Window),
			SessionName: firstNonEmpty(live.Session, key.Session),
		}

		store := openStore(cfg)
		if prev, err := store.Get(key); err == nil && prev != nil && prev.Status == status && !prev.StatusTS.IsZero() {
			st.StatusTS = prev.StatusTS
		}
		if err := store.Upsert(st); err != nil {
			return fmt.Errorf("store: %w", err)
		}

		if flagVerbose {
			fmt.Fprintf(os.Stderr, "recorded %s as %s\n", key, status)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&flagStatusSession, "session", "", "override the session component of the pane key")
	statusCmd.Flags().StringVar(&flagStatusWindow, "window", "", "override the window/tab component of the pane key")
	statusCmd.Flags().StringVar(&flagStatusPane, "pane", "", "override the pane id (default: the calling process's pane)")
	statusCmd.Flags().StringVar(&flagStatusWorkdir, "workdir", "", "override the recorded working directory")
	statusCmd.Flags().StringVar(&flagStatusTitle, "title", "", "override the recorded pane title")
	rootCmd.AddCommand(statusCmd)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
