package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter implements Adapter against an OpenAI-compatible chat API.
// It supports OpenRouter, OpenAI, and other compatible providers. The API is
// stateless, so continuity comes from the rolling history the kernel passes
// in; SessionHandle is always empty.
type HTTPAdapter struct {
	apiBase    string
	httpClient *http.Client
}

// NewHTTPAdapter creates an adapter for an OpenAI-compatible API base.
func NewHTTPAdapter(apiBase string) *HTTPAdapter {
	if apiBase == "" {
		apiBase = "https://openrouter.ai/api/v1"
	}
	return &HTTPAdapter{
		apiBase: strings.TrimSuffix(apiBase, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Run executes one model run, looping over tool calls until the model
// produces a final text answer or MaxTurns is reached.
func (a *HTTPAdapter) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	start := time.Now()

	messages := []map[string]any{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.SystemPrompt})
	}
	for _, t := range req.History {
		messages = append(messages, map[string]any{"role": t.Role, "content": t.Content})
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.Prompt})

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 25
	}

	var usage Usage
	for turn := 0; turn < maxTurns; turn++ {
		resp, err := a.chat(ctx, req, messages)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return &RunResult{
					ExitCode:   1,
					TimedOut:   true,
					Output:     err.Error(),
					DurationMs: time.Since(start).Milliseconds(),
				}, nil
			}
			return nil, err
		}
		if resp.status != http.StatusOK {
			// Provider failure text goes back verbatim so the kernel can
			// classify it (rate limit, overflow, other).
			return &RunResult{
				ExitCode:   1,
				Output:     fmt.Sprintf("API error (status %d): %s", resp.status, resp.body),
				DurationMs: time.Since(start).Milliseconds(),
				Usage:      &usage,
			}, nil
		}

		usage.PromptTokens += resp.parsed.Usage.PromptTokens
		usage.CompletionTokens += resp.parsed.Usage.CompletionTokens
		usage.TotalTokens += resp.parsed.Usage.TotalTokens

		if len(resp.parsed.Choices) == 0 {
			return &RunResult{
				ExitCode:   1,
				Output:     "no choices in response",
				DurationMs: time.Since(start).Milliseconds(),
				Usage:      &usage,
			}, nil
		}
		choice := resp.parsed.Choices[0]

		if len(choice.Message.ToolCalls) == 0 {
			return &RunResult{
				Output:     choice.Message.Content,
				DurationMs: time.Since(start).Milliseconds(),
				Usage:      &usage,
			}, nil
		}

		messages = append(messages, assistantMessage(choice.Message))
		for _, tc := range choice.Message.ToolCalls {
			result := a.callTool(ctx, req, tc)
			messages = append(messages, map[string]any{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"content":      result,
			})
		}
	}

	return &RunResult{
		ExitCode:   1,
		Output:     fmt.Sprintf("run exceeded %d tool turns without a final answer", maxTurns),
		DurationMs: time.Since(start).Milliseconds(),
		Usage:      &usage,
	}, nil
}

// Summarize compresses text into one compact note via a plain, tool-free call.
func (a *HTTPAdapter) Summarize(ctx context.Context, model, text string) (string, error) {
	req := &RunRequest{Model: model}
	messages := []map[string]any{
		{"role": "system", "content": "Summarize the conversation below into a compact note preserving decisions, open work, and key facts. Reply with the note only."},
		{"role": "user", "content": text},
	}
	resp, err := a.chat(ctx, req, messages)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.status, resp.body)
	}
	if len(resp.parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.parsed.Choices[0].Message.Content, nil
}

type chatResponse struct {
	status int
	body   string
	parsed apiResponse
}

func (a *HTTPAdapter) chat(ctx context.Context, req *RunRequest, messages []map[string]any) (*chatResponse, error) {
	body := map[string]any{
		"model":    req.Model,
		"messages": messages,
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			props := map[string]any{}
			for name, desc := range t.Parameters {
				props[name] = map[string]any{"type": "string", "description": desc}
			}
			tools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters": map[string]any{
						"type":       "object",
						"properties": props,
					},
				},
			}
		}
		body["tools"] = tools
		body["tool_choice"] = "auto"
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &chatResponse{status: resp.StatusCode, body: string(respBody)}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(respBody, &out.parsed); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
	}
	return out, nil
}

func (a *HTTPAdapter) callTool(ctx context.Context, req *RunRequest, tc apiToolCall) string {
	if req.OnToolCall == nil {
		return "error: no tool executor available"
	}
	var args map[string]any
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{"raw": tc.Function.Arguments}
		}
	}
	result, err := req.OnToolCall(ctx, tc.Function.Name, args)
	if err != nil {
		return "error: " + err.Error()
	}
	return result
}

func assistantMessage(m apiMessage) map[string]any {
	out := map[string]any{"role": "assistant", "content": m.Content}
	if len(m.ToolCalls) > 0 {
		calls := make([]map[string]any, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			calls[i] = map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Function.Name,
					"arguments": tc.Function.Arguments,
				},
			}
		}
		out["tool_calls"] = calls
	}
	return out
}

// OpenAI-compatible API response types.
type apiResponse struct {
	Choices []apiChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiChoice struct {
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
}

type apiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}
