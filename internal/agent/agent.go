// Package agent classifies foreground commands into known AI coding agents.
//
// The stored command for a pane is whatever the multiplexer reports as the
// foreground process name (e.g. "claude", "codex", sometimes a wrapper
// script). Matching is deliberately loose: a lowercase substring check per
// agent, tried in order, so "claude-code" and "cursor-agent" resolve the
// same as their plain binaries.
package agent

import "strings"

// Kind identifies a known AI coding agent.
type Kind string

const (
	KindClaude   Kind = "claude"
	KindOpenCode Kind = "opencode"
	KindCodex    Kind = "codex"
	KindGemini   Kind = "gemini"
	KindAider    Kind = "aider"
	KindCursor   Kind = "cursor"
	KindUnknown  Kind = "unknown"
)

// kindMarkers is checked in order; the first substring hit wins.
// "opencode" precedes "codex" so neither shadows the other by accident
// when wrappers concatenate names.
var kindMarkers = []struct {
	marker string
	kind   Kind
}{
	{"claude", KindClaude},
	{"opencode", KindOpenCode},
	{"codex", KindCodex},
	{"gemini", KindGemini},
	{"aider", KindAider},
	{"cursor", KindCursor},
}

// KindFromCommand maps a foreground command name to the agent it most
// likely is. Returns KindUnknown for empty or unrecognized commands, and
// never matches muxtrack's own processes.
func KindFromCommand(command string) Kind {
	lower := strings.ToLower(command)
	if lower == "" || strings.Contains(lower, "muxtrack") {
		return KindUnknown
	}
	for _, m := range kindMarkers {
		if strings.Contains(lower, m.marker) {
			return m.kind
		}
	}
	return KindUnknown
}
