package triage

import (
	"encoding/json"
	"testing"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON unchanged",
			input: `{"state": "working", "stuck": false}`,
			want:  `{"state": "working", "stuck": false}`,
		},
		{
			name:  "fenced json block",
			input: "```json\n{\"state\": \"done\"}\n```",
			want:  `{"state": "done"}`,
		},
		{
			name:  "fenced without language",
			input: "```\n{\"state\": \"done\"}\n```",
			want:  `{"state": "done"}`,
		},
		{
			name:  "fenced with whitespace",
			input: "  ```json\n{\"key\": \"value\"}\n```  ",
			want:  `{"key": "value"}`,
		},
		{
			name:  "multiline JSON in fences",
			input: "```json\n{\n  \"state\": \"stuck\",\n  \"stuck\": true\n}\n```",
			want:  "{\n  \"state\": \"stuck\",\n  \"stuck\": true\n}",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only fences no content",
			input: "```json\n```",
			want:  "",
		},
		{
			name:  "backticks inside content preserved",
			input: `{"summary": "agent printed a fence"}`,
			want:  `{"summary": "agent printed a fence"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripMarkdownFences(tt.input)
			if got != tt.want {
				t.Errorf("stripMarkdownFences(%q) =\n  %q\nwant:\n  %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPromptsLoaded(t *testing.T) {
	// Verify that embedded prompts are non-empty
	if SystemPrompt == "" {
		t.Error("SystemPrompt is empty: embed directive may have failed")
	}
	if UserPromptTemplate == "" {
		t.Error("UserPromptTemplate is empty: embed directive may have failed")
	}
}

func TestAssessmentDecodesModelResponse(t *testing.T) {
	raw := stripMarkdownFences("```json\n" +
		`{"state": "waiting_on_user", "summary": "permission dialog shown", "stuck": true, "suggestion": "approve the file write"}` +
		"\n```")

	var a Assessment
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if a.State != "waiting_on_user" {
		t.Errorf("State = %q, want %q", a.State, "waiting_on_user")
	}
	if !a.Stuck {
		t.Error("Stuck = false, want true")
	}
	if a.Suggestion != "approve the file write" {
		t.Errorf("Suggestion = %q, want %q", a.Suggestion, "approve the file write")
	}
}
