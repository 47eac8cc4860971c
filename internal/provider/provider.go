// Package provider defines the model adapter boundary. The kernel never
// talks to an LLM directly; it hands a RunRequest to an Adapter and
// interprets the RunResult.
package provider

import (
	"context"
	"time"
)

// Turn is one role/content entry of a rolling conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes a tool the model may call mid-run.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCallFunc is invoked synchronously per requested tool call. The adapter
// must receive the string result before continuing the run.
type ToolCallFunc func(ctx context.Context, name string, args map[string]any) (string, error)

// RunRequest contains everything the adapter needs for one model run.
type RunRequest struct {
	Model        string
	Prompt       string
	SystemPrompt string
	APIKey       string
	Timeout      time.Duration
	MaxTurns     int
	ResumeHandle string // opaque provider handle, resumable family only
	History      []Turn // rolling history family only
	Tools        []ToolDefinition
	OnToolCall   ToolCallFunc
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RunResult is the adapter's verdict on one run. A non-zero ExitCode is a
// failure; its classification (rate limit, context overflow, other) belongs
// to the kernel, not the adapter.
type RunResult struct {
	Output        string
	ExitCode      int
	DurationMs    int64
	SessionHandle string // new resumable handle, when the family supports it
	TimedOut      bool
	Usage         *Usage
}

// Adapter is the opaque request/response boundary to the LLM provider.
type Adapter interface {
	// Run executes one model call, honoring the request timeout.
	Run(ctx context.Context, req *RunRequest) (*RunResult, error)
	// Summarize compresses text into one compact note (session compression).
	Summarize(ctx context.Context, model, text string) (string, error)
}

// ResumableFamily reports whether a model family supports provider-side
// conversation resumption via opaque handles. Families that do not get the
// rolling-history treatment instead.
func ResumableFamily(model string) bool {
	switch {
	case len(model) >= 9 && model[:9] == "anthropic":
		return true
	case len(model) >= 6 && model[:6] == "claude":
		return true
	default:
		return false
	}
}
