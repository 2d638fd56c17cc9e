package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/timvw/muxtrack/internal/config"
	"github.com/timvw/muxtrack/internal/model"
	"github.com/timvw/muxtrack/internal/mux"
	telem "github.com/timvw/muxtrack/internal/otel"
	"github.com/timvw/muxtrack/internal/reconcile"
	"github.com/timvw/muxtrack/internal/state"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagMux      string
	flagStateDir string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "muxtrack",
	Short: "Track AI coding agents across terminal multiplexer panes",
	Long: `muxtrack keeps a persistent record of which AI coding agents run in
which terminal multiplexer panes, across tmux, wezterm, and zellij.

Agents report their own status through hooks (muxtrack status). Each
report is one record keyed by pane; reconciliation checks every record
against the live multiplexer and prunes agents that are definitively
gone. When the multiplexer cannot answer (server down, pane unfocused,
binary missing) records are kept, never guessed away.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", "", "terminal multiplexer: tmux, wezterm, zellij (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "agent record directory (default: $XDG_STATE_HOME/muxtrack/agents)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "report individual store and backend operations on stderr")
}

// loadConfig resolves configuration: defaults -> config file -> env vars,
// then global flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagMux != "" {
		cfg.Mux = flagMux
	}
	if flagStateDir != "" {
		cfg.StateDir = flagStateDir
	}
	return cfg, nil
}

func muxOptions(cfg *config.Config) mux.Options {
	return mux.Options{
		CommandTimeout: cfg.CommandTimeoutDuration,
		StaleAfter:     cfg.StaleAfterDuration,
	}
}

// getBackend returns the configured or auto-detected multiplexer backend.
func getBackend(cfg *config.Config) (mux.Backend, error) {
	if cfg.Mux != "" {
		return mux.FromName(cfg.Mux, muxOptions(cfg))
	}
	return mux.Detect(muxOptions(cfg))
}

// openStore opens the agent record store at the configured directory.
func openStore(cfg *config.Config) *state.Store {
	dir := cfg.StateDir
	if dir == "" {
		dir = state.DefaultDir()
	}
	return state.NewStore(dir)
}

// newEngine builds a reconciliation engine over every backend, so records
// survive regardless of which multiplexer the current process runs inside.
func newEngine(cfg *config.Config, store *state.Store, metrics *telem.Metrics) *reconcile.Engine {
	return &reconcile.Engine{
		Store:    store,
		Backends: mux.All(muxOptions(cfg)),
		Parallel: cfg.Parallel,
		Verbose:  flagVerbose,
		Metrics:  metrics,
	}
}

// resolveTarget turns a command argument into a backend plus pane id. A full
// pane key (mux:session:window.pane) selects the backend it names; a bare
// pane id goes to the current (or --mux forced) multiplexer.
func resolveTarget(cfg *config.Config, arg string) (mux.Backend, string, error) {
	if key, err := model.ParseKey(arg); err == nil {
		backend, err := mux.FromName(key.Mux, muxOptions(cfg))
		if err != nil {
			return nil, "", err
		}
		return backend, key.Pane, nil
	}
	backend, err := getBackend(cfg)
	if err != nil {
		return nil, "", err
	}
	return backend, arg, nil
}
