package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
)

var (
	flagCaptureLines int
	flagCaptureRaw   bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <pane-key-or-id>",
	Short: "Print a snapshot of a pane's content",
	Long: `Capture the content of a terminal multiplexer pane and print it.

The argument is either a full pane key (tmux:work:0.%5) or a bare pane id
for the current multiplexer (%5, 42). Escape sequences are stripped
unless --raw is given.

A pane the backend cannot observe right now (gone, unfocused on a
focused-only backend, or this process's own pane) prints nothing and
exits 1. That is absence, not an error: the pane may become observable
again on its own.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		backend, paneID, err := resolveTarget(cfg, args[0])
		if err != nil {
			return err
		}

		lines := flagCaptureLines
		if lines == 0 {
			lines = cfg.CaptureLines
		}

		content, ok := backend.CapturePane(cmd.Context(), paneID, lines)
		if !ok {
			fmt.Fprintln(os.Stderr, "pane not available")
			os.Exit(1)
		}

		if !flagCaptureRaw {
			content = ansi.Strip(content)
		}
		fmt.Fprint(os.Stdout, content)
		return nil
	},
}

func init() {
	captureCmd.Flags().IntVar(&flagCaptureLines, "lines", 0, "keep only the last N lines (0 = config capture_lines, -1 = everything)")
	captureCmd.Flags().BoolVar(&flagCaptureRaw, "raw", false, "keep escape sequences in the output")
	rootCmd.AddCommand(captureCmd)
}
