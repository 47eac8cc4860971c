package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLIAdapter implements Adapter by shelling out to the claude CLI.
// The CLI keeps conversation state provider-side, addressed by an opaque
// session id, which maps onto the resumable session family: the kernel hands
// back the handle and the next run passes --resume.
type ClaudeCLIAdapter struct {
	binary string
}

// NewClaudeCLIAdapter creates an adapter using the given binary, defaulting
// to "claude" on PATH.
func NewClaudeCLIAdapter(binary string) *ClaudeCLIAdapter {
	if binary == "" {
		binary = "claude"
	}
	return &ClaudeCLIAdapter{binary: binary}
}

// cliResult is the subset of the CLI's --output-format json envelope we read.
type cliResult struct {
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
	IsError   bool   `json:"is_error"`
	Usage     struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Run executes one CLI invocation. Tool definitions are ignored: the CLI
// carries its own tool surface, and room mutations arrive through the prompt
// instructions instead.
func (a *ClaudeCLIAdapter) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	start := time.Now()

	args := []string{"-p", "--output-format", "json"}
	if req.Model != "" {
		args = append(args, "--model", strings.TrimPrefix(req.Model, "claude-cli/"))
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", req.MaxTurns))
	}
	if req.ResumeHandle != "" {
		args = append(args, "--resume", req.ResumeHandle)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}

	cmd := exec.CommandContext(ctx, a.binary, args...)
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.Env = os.Environ()
	if req.APIKey != "" {
		cmd.Env = append(cmd.Env, "ANTHROPIC_API_KEY="+req.APIKey)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if ctx.Err() == context.DeadlineExceeded {
		return &RunResult{
			ExitCode:   1,
			TimedOut:   true,
			Output:     strings.TrimSpace(stderr.String() + stdout.String()),
			DurationMs: elapsed,
		}, nil
	}

	res := &RunResult{DurationMs: elapsed}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		return nil, fmt.Errorf("run %s: %w", a.binary, err)
	}

	var parsed cliResult
	if jerr := json.Unmarshal(stdout.Bytes(), &parsed); jerr == nil {
		res.Output = parsed.Result
		res.SessionHandle = parsed.SessionID
		if parsed.IsError && res.ExitCode == 0 {
			res.ExitCode = 1
		}
		if parsed.Usage.InputTokens > 0 || parsed.Usage.OutputTokens > 0 {
			res.Usage = &Usage{
				PromptTokens:     parsed.Usage.InputTokens,
				CompletionTokens: parsed.Usage.OutputTokens,
				TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
			}
		}
	} else {
		// Non-JSON output still matters: failure text carries the rate-limit
		// and overflow signatures the kernel classifies.
		res.Output = strings.TrimSpace(stdout.String() + "\n" + stderr.String())
	}
	return res, nil
}

// Summarize asks the CLI for a one-shot compression with no session reuse.
func (a *ClaudeCLIAdapter) Summarize(ctx context.Context, model, text string) (string, error) {
	res, err := a.Run(ctx, &RunRequest{
		Model: model,
		Prompt: "Summarize the conversation below into a compact note preserving decisions, open work, and key facts. Reply with the note only.\n\n" +
			text,
		MaxTurns: 1,
	})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("summarize failed: %s", res.Output)
	}
	return res.Output, nil
}
