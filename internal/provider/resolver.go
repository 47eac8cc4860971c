package provider

import (
	"context"
	"strings"
)

// RoutingAdapter dispatches each run by model family: claude-family models go
// through the resumable CLI adapter, everything else over the
// OpenAI-compatible HTTP API with rolling history. Rooms can mix families
// agent by agent.
type RoutingAdapter struct {
	http *HTTPAdapter
	cli  *ClaudeCLIAdapter
}

// NewRoutingAdapter creates the per-model-family dispatcher.
func NewRoutingAdapter(apiBase, cliBinary string) *RoutingAdapter {
	return &RoutingAdapter{
		http: NewHTTPAdapter(apiBase),
		cli:  NewClaudeCLIAdapter(cliBinary),
	}
}

func (r *RoutingAdapter) pick(model string) Adapter {
	if ResumableFamily(strings.TrimSpace(model)) {
		return r.cli
	}
	return r.http
}

func (r *RoutingAdapter) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	return r.pick(req.Model).Run(ctx, req)
}

func (r *RoutingAdapter) Summarize(ctx context.Context, model, text string) (string, error) {
	return r.pick(model).Summarize(ctx, model, text)
}
