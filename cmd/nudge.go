package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/timvw/muxtrack/internal/mux"
)

var nudgeCmd = &cobra.Command{
	Use:   "nudge <pane-key-or-id> <text>",
	Short: "Send text or a key to an agent's pane",
	Long: `Deliver input to a pane as if typed there.

Plain text is submitted as a line; key names (Enter, Escape, C-c, Up,
Down, Tab, ...) are sent as keystrokes on backends that distinguish
them. Only backends that can address arbitrary panes support this;
focused-only backends reject it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		backend, paneID, err := resolveTarget(cfg, args[0])
		if err != nil {
			return err
		}

		sender, ok := backend.(mux.Sender)
		if !ok {
			return fmt.Errorf("%s cannot send input to a pane", backend.Name())
		}

		if err := sender.SendText(cmd.Context(), paneID, args[1]); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		if flagVerbose {
			fmt.Fprintf(os.Stderr, "sent %q to %s\n", args[1], paneID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nudgeCmd)
}
