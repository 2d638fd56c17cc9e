// Package config loads muxtrack configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (MUXTRACK_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .muxtrack.yaml in current directory
//  2. ~/.config/muxtrack/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all muxtrack configuration.
type Config struct {
	// Multiplexer settings
	Mux            string `yaml:"mux"`             // force a backend: "tmux", "wezterm", "zellij" (empty = autodetect)
	StateDir       string `yaml:"state_dir"`       // agent record directory (empty = XDG default)
	CommandTimeout string `yaml:"command_timeout"` // Go duration string, bounds each multiplexer CLI call
	StaleAfter     string `yaml:"stale_after"`     // Go duration string, focused-only liveness horizon; "0"/"off" disables

	// Reconcile settings
	Parallel int `yaml:"parallel"`

	// Dashboard settings
	Refresh         string   `yaml:"refresh"`         // reconcile cadence, e.g. "5s"
	CaptureRefresh  string   `yaml:"capture_refresh"` // preview cadence, e.g. "2s"
	CaptureLines    int      `yaml:"capture_lines"`   // trailing lines kept per preview
	ExcludeSessions []string `yaml:"exclude_sessions"`
	Theme           string   `yaml:"theme"` // "dark" or "light"

	// LLM settings (why command)
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int64  `yaml:"max_tokens"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed durations (not from YAML, set after loading)
	CommandTimeoutDuration time.Duration `yaml:"-"`
	StaleAfterDuration     time.Duration `yaml:"-"`
	RefreshDuration        time.Duration `yaml:"-"`
	CaptureRefreshDuration time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		CommandTimeout: "3s",
		StaleAfter:     "1h",
		Parallel:       10,
		Refresh:        "5s",
		CaptureRefresh: "2s",
		CaptureLines:   200,
		Theme:          "dark",
		Provider:       "anthropic",
		MaxTokens:      4096,
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	// Try to load config file
	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	// Environment variables override everything
	mergeEnv(cfg)

	// Parse durations
	var err error
	cfg.CommandTimeoutDuration, err = parseDurationOrDisable(cfg.CommandTimeout, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid command timeout %q: %w", cfg.CommandTimeout, err)
	}
	cfg.StaleAfterDuration, err = parseDurationOrDisable(cfg.StaleAfter, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid staleness horizon %q: %w", cfg.StaleAfter, err)
	}
	cfg.RefreshDuration, err = parseDurationOrDisable(cfg.Refresh, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh interval %q: %w", cfg.Refresh, err)
	}
	cfg.CaptureRefreshDuration, err = parseDurationOrDisable(cfg.CaptureRefresh, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid capture refresh interval %q: %w", cfg.CaptureRefresh, err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".muxtrack.yaml"); err == nil {
		return ".muxtrack.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "muxtrack", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Mux != "" {
		cfg.Mux = file.Mux
	}
	if file.StateDir != "" {
		cfg.StateDir = file.StateDir
	}
	if file.CommandTimeout != "" {
		cfg.CommandTimeout = file.CommandTimeout
	}
	if file.StaleAfter != "" {
		cfg.StaleAfter = file.StaleAfter
	}
	if file.Parallel > 0 {
		cfg.Parallel = file.Parallel
	}
	if file.Refresh != "" {
		cfg.Refresh = file.Refresh
	}
	if file.CaptureRefresh != "" {
		cfg.CaptureRefresh = file.CaptureRefresh
	}
	if file.CaptureLines > 0 {
		cfg.CaptureLines = file.CaptureLines
	}
	if len(file.ExcludeSessions) > 0 {
		cfg.ExcludeSessions = file.ExcludeSessions
	}
	if file.Theme != "" {
		cfg.Theme = file.Theme
	}
	if file.Provider != "" {
		cfg.Provider = file.Provider
	}
	if file.Model != "" {
		cfg.Model = file.Model
	}
	if file.BaseURL != "" {
		cfg.BaseURL = file.BaseURL
	}
	if file.APIKey != "" {
		cfg.APIKey = file.APIKey
	}
	if file.MaxTokens > 0 {
		cfg.MaxTokens = file.MaxTokens
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("MUXTRACK_MUX"); v != "" {
		cfg.Mux = v
	}
	if v := os.Getenv("MUXTRACK_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("MUXTRACK_COMMAND_TIMEOUT"); v != "" {
		cfg.CommandTimeout = v
	}
	if v := os.Getenv("MUXTRACK_STALE_AFTER"); v != "" {
		cfg.StaleAfter = v
	}
	if v := os.Getenv("MUXTRACK_REFRESH"); v != "" {
		cfg.Refresh = v
	}
	if v := os.Getenv("MUXTRACK_CAPTURE_REFRESH"); v != "" {
		cfg.CaptureRefresh = v
	}
	if v := os.Getenv("MUXTRACK_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("MUXTRACK_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("MUXTRACK_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MUXTRACK_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("MUXTRACK_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}

	// API key fallbacks
	if cfg.APIKey == "" {
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}
	if cfg.APIKey == "" {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}
}

// MatchesExcludeList reports whether session matches one of the configured
// exclusions. A pattern ending in '*' matches any session with that prefix;
// anything else must match exactly.
func MatchesExcludeList(session string, exclude []string) bool {
	for _, pattern := range exclude {
		if strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(session, strings.TrimSuffix(pattern, "*")) {
				return true
			}
			continue
		}
		if session == pattern {
			return true
		}
	}
	return false
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
