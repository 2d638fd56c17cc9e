package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timvw/muxtrack/internal/dash"
	"github.com/timvw/muxtrack/internal/mux"
	telem "github.com/timvw/muxtrack/internal/otel"
	"github.com/timvw/muxtrack/internal/reconcile"
)

var (
	flagDashTheme   string
	flagDashNoEmbed bool
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Interactive dashboard of tracked agents",
	Long: `Launch an interactive terminal UI over the agent store.

The table reconciles on the refresh cadence; the preview pane below it
captures the selected agent's pane on its own cadence. Keys: j/k move,
Enter jumps the multiplexer to the pane, n sends input, x forgets the
record, r forces a reconcile, q quits.

If started outside any multiplexer, the dashboard re-launches itself
inside a new tmux session so that jumping to panes works. Use
--no-embed to disable this.

Configuration is loaded from .muxtrack.yaml or environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDash()
	},
}

func init() {
	dashCmd.Flags().StringVar(&flagDashTheme, "theme", "", "color theme: dark, light (default: config theme)")
	dashCmd.Flags().BoolVar(&flagDashNoEmbed, "no-embed", false,
		"do not auto-embed in a tmux session when outside any multiplexer")
	rootCmd.AddCommand(dashCmd)
}

func runDash() error {
	if !flagDashNoEmbed {
		autoEmbedInTmux()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // cancels in-flight reconcile and capture calls when the TUI exits

	// Load configuration: defaults -> config file -> env vars.
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "config: loaded %s\n", cfg.ConfigFile)
	}

	// Wire build version into OTEL service metadata
	telem.Version = Version

	// Initialize OTEL (no-op if no endpoint configured)
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
	}
	if tel != nil {
		defer tel.Shutdown(ctx)
	}

	var metrics *telem.Metrics
	if tel != nil {
		metrics = tel.Metrics
	}

	store := openStore(cfg)

	// One backend per multiplexer: records are validated by whichever
	// backend their key names, regardless of where the dashboard runs.
	backends := mux.All(muxOptions(cfg))

	engine := &reconcile.Engine{
		Store:    store,
		Backends: backends,
		Parallel: cfg.Parallel,
		Metrics:  metrics,
	}

	theme := flagDashTheme
	if theme == "" {
		theme = cfg.Theme
	}

	d := &dash.Dash{
		Engine:          engine,
		Store:           store,
		Backends:        backends,
		Refresh:         cfg.RefreshDuration,
		CaptureRefresh:  cfg.CaptureRefreshDuration,
		CaptureLines:    cfg.CaptureLines,
		ExcludeSessions: cfg.ExcludeSessions,
		Theme:           dash.ThemeByName(theme),
		Metrics:         metrics,
	}
	return d.Run(ctx)
}

// autoEmbedInTmux re-launches the current process inside a tmux session when
// not already running under any multiplexer. Jumping to a pane (switch-client)
// requires an active tmux client. On success, the current process is replaced
// (syscall.Exec) and this function never returns. On failure, it prints a
// warning and returns so the dashboard can run with degraded navigation.
func autoEmbedInTmux() {
	if os.Getenv("TMUX") != "" || os.Getenv("ZELLIJ") != "" || os.Getenv("WEZTERM_PANE") != "" {
		return // already inside a multiplexer
	}

	tmuxPath, err := exec.LookPath("tmux")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tmux not found in PATH, jumping to panes will not work\n")
		return
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not resolve executable path: %v\n", err)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = "/"
	}

	// Pick a session name, avoiding conflicts with existing sessions.
	sessionName := "muxtrack-dash"
	hasSession := exec.Command(tmuxPath, "has-session", "-t", sessionName)
	if hasSession.Run() == nil {
		// Session exists; let tmux auto-name instead
		sessionName = ""
	}

	// Build: tmux new-session [-s name] -c <wd> <exe> <args...>
	tmuxArgs := []string{"tmux", "new-session"}
	if sessionName != "" {
		tmuxArgs = append(tmuxArgs, "-s", sessionName)
	}
	tmuxArgs = append(tmuxArgs, "-c", wd, exe)
	tmuxArgs = append(tmuxArgs, os.Args[1:]...)

	if sessionName != "" {
		fmt.Fprintf(os.Stderr, "not inside a multiplexer, starting in tmux session %q\n", sessionName)
	} else {
		fmt.Fprintf(os.Stderr, "not inside a multiplexer, starting in a new tmux session\n")
	}

	// Replace this process with tmux. On success, this never returns.
	if err := syscall.Exec(tmuxPath, tmuxArgs, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not start inside tmux: %v\n", err)
		fmt.Fprintf(os.Stderr, "jumping to panes (Enter) will not work\n")
		fmt.Fprintf(os.Stderr, "use --no-embed to suppress this warning\n")
	}
}
