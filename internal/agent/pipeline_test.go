package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/config"
	"github.com/hiveroom/hiveroom/internal/goal"
	"github.com/hiveroom/hiveroom/internal/provider"
	"github.com/hiveroom/hiveroom/internal/quorum"
	"github.com/hiveroom/hiveroom/internal/session"
	"github.com/hiveroom/hiveroom/internal/store"
)

type fixture struct {
	pipeline *Pipeline
	store    *store.Store
	fake     *provider.FakeAdapter
	room     *store.Room
	agent    *store.Agent
}

func setup(t *testing.T, fake *provider.FakeAdapter, model string) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	room, err := st.CreateRoom(&store.Room{Name: "hive", Goal: "ship it"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	a, err := st.CreateAgent(&store.Agent{RoomID: room.ID, Name: "w", Model: model})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	activity := bus.NewActivityBus(st)
	sessions := session.NewManager(st, fake, activity, config.SessionConfig{})
	engine := quorum.NewEngine(st, activity)
	goals := goal.NewTree(st, activity)
	pipeline := NewPipeline(st, fake, sessions, engine, goals, activity,
		config.ModelConfig{CallTimeout: 5 * time.Second})

	return &fixture{pipeline: pipeline, store: st, fake: fake, room: room, agent: a}
}

func lastCycle(t *testing.T, f *fixture) store.Cycle {
	t.Helper()
	cycles, err := f.store.ListRecentCycles(f.agent.ID, 1)
	if err != nil || len(cycles) == 0 {
		t.Fatalf("no cycles: %v", err)
	}
	return cycles[0]
}

func TestRunCycleSuccess(t *testing.T) {
	fake := &provider.FakeAdapter{Results: []*provider.RunResult{{
		Output: "progress made",
		Usage:  &provider.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}}}
	f := setup(t, fake, "openai/gpt-5.2")

	outcome, err := f.pipeline.RunCycle(context.Background(), f.room, f.agent)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if outcome.Status != store.CycleStatusCompleted || outcome.RateLimit != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	c := lastCycle(t, f)
	if c.Status != store.CycleStatusCompleted || c.TotalTokens != 150 {
		t.Fatalf("unexpected cycle row: %+v", c)
	}

	// The rolling history captured the exchange.
	sess, err := f.store.GetAgentSession(f.agent.ID)
	if err != nil || sess == nil {
		t.Fatalf("expected saved session: %v", err)
	}
	if sess.Family != session.FamilyHistory || sess.Turns != 1 {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestRunCyclePassesRoomContext(t *testing.T) {
	f := setup(t, &provider.FakeAdapter{}, "openai/gpt-5.2")
	if err := f.store.UpdateAgentCheckpoint(f.agent.ID, "was refactoring the parser"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	f.agent.Checkpoint = "was refactoring the parser"

	if _, err := f.pipeline.RunCycle(context.Background(), f.room, f.agent); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	req := f.fake.LastRequest()
	if req == nil {
		t.Fatal("no request dispatched")
	}
	if req.SystemPrompt == "" || req.Prompt == "" {
		t.Fatalf("expected prompts, got %+v", req)
	}
	if !contains(req.SystemPrompt, "ship it") {
		t.Fatalf("system prompt missing room goal:\n%s", req.SystemPrompt)
	}
	if !contains(req.Prompt, "was refactoring the parser") {
		t.Fatalf("prompt missing checkpoint:\n%s", req.Prompt)
	}
	if len(req.Tools) == 0 || req.OnToolCall == nil {
		t.Fatal("expected tool surface wired")
	}
}

func TestRunCycleRateLimit(t *testing.T) {
	fake := &provider.FakeAdapter{Results: []*provider.RunResult{{
		ExitCode: 1,
		Output:   "429 too many requests, try again in 10 minutes",
	}}}
	f := setup(t, fake, "openai/gpt-5.2")

	outcome, err := f.pipeline.RunCycle(context.Background(), f.room, f.agent)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if outcome.Status != store.CycleStatusFailed {
		t.Fatalf("expected failed, got %+v", outcome)
	}
	if outcome.RateLimit == nil || outcome.RateLimit.Wait != 10*time.Minute {
		t.Fatalf("expected 10m backoff, got %+v", outcome.RateLimit)
	}
	if c := lastCycle(t, f); c.Status != store.CycleStatusFailed {
		t.Fatalf("unexpected cycle row: %+v", c)
	}
}

func TestRunCyclePlainFailure(t *testing.T) {
	fake := &provider.FakeAdapter{Results: []*provider.RunResult{{
		ExitCode: 1,
		Output:   "model returned garbage",
	}}}
	f := setup(t, fake, "openai/gpt-5.2")

	outcome, err := f.pipeline.RunCycle(context.Background(), f.room, f.agent)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if outcome.Status != store.CycleStatusFailed || outcome.RateLimit != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if c := lastCycle(t, f); !contains(c.ErrorText, "model returned garbage") {
		t.Fatalf("unexpected error text: %+v", c)
	}
}

func TestRunCycleOverflowRotatesAndRetries(t *testing.T) {
	fake := &provider.FakeAdapter{Results: []*provider.RunResult{
		{ExitCode: 1, Output: "context window exceeded"},
		{Output: "fresh start worked", SessionHandle: "h-2"},
	}}
	f := setup(t, fake, "anthropic/claude-sonnet-4-5")

	// A resumable session with a handle that will overflow.
	if err := f.store.SaveAgentSession(&store.AgentSession{
		AgentID: f.agent.ID, Family: session.FamilyResume, ResumeHandle: "h-1",
		Model: f.agent.Model, Turns: 5,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	outcome, err := f.pipeline.RunCycle(context.Background(), f.room, f.agent)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if outcome.Status != store.CycleStatusCompleted {
		t.Fatalf("expected completed after retry, got %+v", outcome)
	}

	if n := f.fake.RequestCount(); n != 2 {
		t.Fatalf("expected one retry, got %d requests", n)
	}
	if f.fake.Requests[0].ResumeHandle != "h-1" {
		t.Fatalf("first attempt should resume h-1, got %q", f.fake.Requests[0].ResumeHandle)
	}
	if f.fake.Requests[1].ResumeHandle != "" {
		t.Fatalf("retry must start fresh, got %q", f.fake.Requests[1].ResumeHandle)
	}

	sess, _ := f.store.GetAgentSession(f.agent.ID)
	if sess == nil || sess.ResumeHandle != "h-2" {
		t.Fatalf("expected new handle saved, got %+v", sess)
	}
}

func TestRunCycleRotatesHandlePastTurnCeiling(t *testing.T) {
	fake := &provider.FakeAdapter{Results: []*provider.RunResult{{
		Output: "ok", SessionHandle: "h-3",
	}}}
	f := setup(t, fake, "anthropic/claude-sonnet-4-5")

	// Default ceiling is 50 turns; a handle past it starts fresh.
	if err := f.store.SaveAgentSession(&store.AgentSession{
		AgentID: f.agent.ID, Family: session.FamilyResume, ResumeHandle: "h-old",
		Model: f.agent.Model, Turns: 60,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if _, err := f.pipeline.RunCycle(context.Background(), f.room, f.agent); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := f.fake.LastRequest().ResumeHandle; got != "" {
		t.Fatalf("expected fresh dispatch after ceiling, got handle %q", got)
	}
	sess, _ := f.store.GetAgentSession(f.agent.ID)
	if sess == nil || sess.ResumeHandle != "h-3" || sess.Turns != 1 {
		t.Fatalf("unexpected session after rotation: %+v", sess)
	}
}

func TestRunCycleSavesNewHandle(t *testing.T) {
	fake := &provider.FakeAdapter{Results: []*provider.RunResult{{
		Output: "ok", SessionHandle: "h-9",
	}}}
	f := setup(t, fake, "anthropic/claude-sonnet-4-5")

	if _, err := f.pipeline.RunCycle(context.Background(), f.room, f.agent); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	sess, _ := f.store.GetAgentSession(f.agent.ID)
	if sess == nil || sess.ResumeHandle != "h-9" || sess.Family != session.FamilyResume {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
