package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/hiveroom/hiveroom/internal/provider"
)

func testExecutor(t *testing.T) (*toolExecutor, *fixture) {
	t.Helper()
	f := setup(t, &provider.FakeAdapter{}, "test-model")
	return &toolExecutor{
		store:   f.store,
		quorum:  f.pipeline.quorum,
		goals:   f.pipeline.goals,
		bus:     f.pipeline.bus,
		roomID:  f.room.ID,
		agentID: f.agent.ID,
	}, f
}

func TestToolProposeDecision(t *testing.T) {
	exec, f := testExecutor(t)

	out, err := exec.Execute(context.Background(), "propose_decision", map[string]any{
		"text": "adopt the new schema",
		"kind": "direction",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "voting") {
		t.Fatalf("unexpected result: %q", out)
	}

	decisions, _ := f.store.ListDecisions(f.room.ID, "", 0)
	if len(decisions) != 1 || decisions[0].ProposerID != f.agent.ID {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
}

func TestToolCastVoteNormalizesCase(t *testing.T) {
	exec, f := testExecutor(t)

	out, _ := exec.Execute(context.Background(), "propose_decision", map[string]any{"text": "x"})
	decisions, _ := f.store.ListDecisions(f.room.ID, "", 0)
	if len(decisions) != 1 {
		t.Fatalf("no decision created: %q", out)
	}

	// A single yes from the only agent resolves the decision immediately.
	res, err := exec.Execute(context.Background(), "cast_vote", map[string]any{
		"decision_id": decisions[0].ID,
		"value":       "YES",
	})
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if !strings.Contains(res, "approved") {
		t.Fatalf("unexpected result: %q", res)
	}
}

func TestToolGoalLifecycle(t *testing.T) {
	exec, f := testExecutor(t)

	out, err := exec.Execute(context.Background(), "add_goal", map[string]any{"text": "write docs"})
	if err != nil {
		t.Fatalf("add goal: %v", err)
	}
	goals, _ := f.store.ListRoomGoals(f.room.ID)
	if len(goals) != 1 {
		t.Fatalf("no goal created: %q", out)
	}

	res, err := exec.Execute(context.Background(), "update_goal_progress", map[string]any{
		"goal_id":  goals[0].ID,
		"note":     "half done",
		"progress": 0.5,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(res, "50%") {
		t.Fatalf("unexpected result: %q", res)
	}
}

func TestToolSaveCheckpoint(t *testing.T) {
	exec, f := testExecutor(t)

	if _, err := exec.Execute(context.Background(), "save_checkpoint", map[string]any{
		"note": "mid-refactor, tests failing",
	}); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	a, _ := f.store.GetAgent(f.agent.ID)
	if a.Checkpoint != "mid-refactor, tests failing" {
		t.Fatalf("unexpected checkpoint: %q", a.Checkpoint)
	}
}

func TestToolPostActivity(t *testing.T) {
	exec, f := testExecutor(t)

	if _, err := exec.Execute(context.Background(), "post_activity", map[string]any{
		"detail": "found a flaky test",
	}); err != nil {
		t.Fatalf("post: %v", err)
	}
	entries, _ := f.store.ListActivity(f.room.ID, 5)
	if len(entries) != 1 || entries[0].Detail != "found a flaky test" {
		t.Fatalf("unexpected activity: %+v", entries)
	}
}

func TestToolUnknownName(t *testing.T) {
	exec, _ := testExecutor(t)
	if _, err := exec.Execute(context.Background(), "format_disk", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}
