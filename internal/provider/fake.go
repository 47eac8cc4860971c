package provider

import (
	"context"
	"sync"
)

// FakeAdapter is an in-memory Adapter for tests. Each Run pops the next
// scripted result; Summarize returns SummarizeReply.
type FakeAdapter struct {
	mu             sync.Mutex
	Results        []*RunResult
	RunErr         error
	SummarizeReply string
	SummarizeErr   error
	Requests       []*RunRequest
}

// Run records the request and returns the next scripted result. When the
// script is exhausted the last result repeats.
func (f *FakeAdapter) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.RunErr != nil {
		return nil, f.RunErr
	}
	if len(f.Results) == 0 {
		return &RunResult{Output: "ok", ExitCode: 0}, nil
	}
	res := f.Results[0]
	if len(f.Results) > 1 {
		f.Results = f.Results[1:]
	}
	return res, nil
}

// Summarize returns the scripted summary.
func (f *FakeAdapter) Summarize(ctx context.Context, model, text string) (string, error) {
	if f.SummarizeErr != nil {
		return "", f.SummarizeErr
	}
	return f.SummarizeReply, nil
}

// RequestCount returns how many runs were dispatched.
func (f *FakeAdapter) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// LastRequest returns the most recent request, or nil.
func (f *FakeAdapter) LastRequest() *RunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return nil
	}
	return f.Requests[len(f.Requests)-1]
}
