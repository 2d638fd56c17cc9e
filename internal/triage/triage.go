// Package triage asks an LLM what a tracked agent's pane is doing.
//
// Go code captures the pane, builds the prompt, and parses the response;
// the judgment about whether the agent is stuck belongs to the model. The
// result is advisory only and never feeds back into the state store.
package triage

import (
	"context"
	"strings"
)

// Assessment is the model's reading of one pane.
type Assessment struct {
	// State is one of "working", "waiting_on_user", "stuck", "done",
	// "not_an_agent".
	State string `json:"state"`
	// Summary is a one-line description of what the pane shows.
	Summary string `json:"summary"`
	// Stuck is true when the agent needs human attention to proceed.
	Stuck bool `json:"stuck"`
	// Suggestion is a short operator action, empty when none applies.
	Suggestion string `json:"suggestion"`

	// Usage holds token counts from the provider response.
	Usage TokenUsage `json:"-"`
}

// TokenUsage holds token counts reported by the provider.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Assessor sends pane content to an LLM and returns an assessment.
type Assessor interface {
	// Assess sends the pane content to the model and parses its verdict.
	Assess(ctx context.Context, content string) (*Assessment, error)

	// Provider returns the provider name (e.g., "anthropic", "openai").
	Provider() string

	// Model returns the model name used for assessment.
	Model() string
}

// stripMarkdownFences removes one leading and trailing markdown code fence
// from a model response, tolerating a language tag on the opening fence.
// Fences inside the content are left alone.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	idx := strings.IndexByte(s, '\n')
	if idx < 0 {
		return ""
	}
	s = strings.TrimSpace(s[idx+1:])
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
