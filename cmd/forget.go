package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/timvw/muxtrack/internal/model"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <key>",
	Short: "Delete one agent record",
	Long: `Delete a record from the state store without touching the pane.

The agent process itself is left alone; if its status hook fires again,
the record simply reappears. The key is the display form printed by
list: mux:session:window.pane.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := model.ParseKey(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		store := openStore(cfg)

		st, err := store.Get(key)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if st == nil {
			fmt.Fprintf(os.Stderr, "no record for %s\n", key)
			return nil
		}

		if err := store.Delete(key); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		fmt.Printf("forgot %s\n", key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}
