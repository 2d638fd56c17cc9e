package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
	"github.com/timvw/muxtrack/internal/config"
	"github.com/timvw/muxtrack/internal/mux"
	telem "github.com/timvw/muxtrack/internal/otel"
	"github.com/timvw/muxtrack/internal/triage"
)

var (
	flagWhyJSON      bool
	flagWhyLines     int
	flagWhyProvider  string
	flagWhyModel     string
	flagWhyBaseURL   string
	flagWhyAPIKey    string
	flagWhyMaxTokens int64
)

var whyCmd = &cobra.Command{
	Use:   "why [pane-key-or-id]",
	Short: "Ask an LLM what the agent in a pane is doing",
	Long: `Capture a pane and ask an LLM what the agent there is doing and
whether it is stuck waiting for a human.

Without an argument the current pane is assessed. The result is
advisory: it is printed and discarded, never written to the state
store. Requires an API key (MUXTRACK_API_KEY, ANTHROPIC_API_KEY, or
OPENAI_API_KEY depending on provider).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		applyWhyFlags(cfg)

		var backend mux.Backend
		var paneID string
		if len(args) == 1 {
			backend, paneID, err = resolveTarget(cfg, args[0])
			if err != nil {
				return err
			}
		} else {
			backend, err = getBackend(cfg)
			if err != nil {
				return err
			}
			paneID = backend.OwnPaneID()
			if paneID == "" {
				return fmt.Errorf("cannot resolve the current pane: not inside %s", backend.Name())
			}
		}

		ctx := cmd.Context()

		telem.Version = Version
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

		lines := flagWhyLines
		if lines == 0 {
			lines = cfg.CaptureLines
		}
		content, ok := backend.CapturePane(ctx, paneID, lines)
		if !ok {
			fmt.Fprintln(os.Stderr, "pane not available")
			os.Exit(1)
		}

		assessor, err := newAssessor(cfg)
		if err != nil {
			return err
		}

		assessment, err := assessor.Assess(ctx, ansi.Strip(content))
		if err != nil {
			return fmt.Errorf("assessment failed: %w", err)
		}

		if tel != nil {
			tel.Metrics.RecordTokens(ctx, assessor.Provider(), assessor.Model(),
				assessment.Usage.InputTokens, assessment.Usage.OutputTokens)
		}
		if flagVerbose {
			fmt.Fprintf(os.Stderr, "model: %s/%s, tokens: %d in, %d out\n",
				assessor.Provider(), assessor.Model(),
				assessment.Usage.InputTokens, assessment.Usage.OutputTokens)
		}

		if flagWhyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(assessment)
		}

		stuck := "no"
		if assessment.Stuck {
			stuck = "yes"
		}
		fmt.Printf("state:      %s\n", assessment.State)
		fmt.Printf("stuck:      %s\n", stuck)
		fmt.Printf("summary:    %s\n", assessment.Summary)
		if assessment.Suggestion != "" {
			fmt.Printf("suggestion: %s\n", assessment.Suggestion)
		}
		return nil
	},
}

func applyWhyFlags(cfg *config.Config) {
	if flagWhyProvider != "" {
		cfg.Provider = flagWhyProvider
	}
	if flagWhyModel != "" {
		cfg.Model = flagWhyModel
	}
	if flagWhyBaseURL != "" {
		cfg.BaseURL = flagWhyBaseURL
	}
	if flagWhyAPIKey != "" {
		cfg.APIKey = flagWhyAPIKey
	}
	if flagWhyMaxTokens > 0 {
		cfg.MaxTokens = flagWhyMaxTokens
	}
}

// newAssessor builds the configured LLM assessor with per-provider model
// defaults.
func newAssessor(cfg *config.Config) (triage.Assessor, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("no API key found. Set MUXTRACK_API_KEY or ANTHROPIC_API_KEY")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		return triage.NewAnthropicAssessor(triage.AnthropicConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     model,
			MaxTokens: cfg.MaxTokens,
		}), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("no API key found. Set MUXTRACK_API_KEY or OPENAI_API_KEY")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return triage.NewOpenAIAssessor(triage.OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     model,
			MaxTokens: cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: anthropic, openai)", cfg.Provider)
	}
}

func init() {
	whyCmd.Flags().BoolVar(&flagWhyJSON, "json", false, "output the raw assessment as JSON")
	whyCmd.Flags().IntVar(&flagWhyLines, "lines", 0, "send only the last N pane lines (0 = config capture_lines)")
	whyCmd.Flags().StringVar(&flagWhyProvider, "provider", "", "LLM provider: anthropic, openai")
	whyCmd.Flags().StringVar(&flagWhyModel, "model", "", "LLM model name (default: claude-sonnet-4-5 for anthropic, gpt-4o-mini for openai)")
	whyCmd.Flags().StringVar(&flagWhyBaseURL, "base-url", "", "override the LLM API base URL")
	whyCmd.Flags().StringVar(&flagWhyAPIKey, "api-key", "", "override the LLM API key")
	whyCmd.Flags().Int64Var(&flagWhyMaxTokens, "max-tokens", 0, "max completion tokens (default: 4096; increase for reasoning models)")
	rootCmd.AddCommand(whyCmd)
}
