package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/goal"
	"github.com/hiveroom/hiveroom/internal/provider"
	"github.com/hiveroom/hiveroom/internal/quorum"
	"github.com/hiveroom/hiveroom/internal/store"
)

// toolExecutor binds the kernel services to one agent's cycle so the model
// can act on the room mid-run. Each call runs synchronously and returns a
// string result to the adapter.
type toolExecutor struct {
	store   *store.Store
	quorum  *quorum.Engine
	goals   *goal.Tree
	bus     *bus.ActivityBus
	roomID  string
	agentID string
}

// Definitions returns the tool surface offered to the model.
func (t *toolExecutor) Definitions() []provider.ToolDefinition {
	return []provider.ToolDefinition{
		{
			Name:        "propose_decision",
			Description: "Propose a decision for the room to vote on.",
			Parameters: map[string]any{
				"text": "the proposal text",
				"kind": "decision kind, e.g. direction, tooling, housekeeping",
			},
		},
		{
			Name:        "cast_vote",
			Description: "Vote yes, no, or abstain on an open decision.",
			Parameters: map[string]any{
				"decision_id": "id of the decision",
				"value":       "yes | no | abstain",
				"reasoning":   "optional short reasoning",
			},
		},
		{
			Name:        "add_goal",
			Description: "Add a goal, optionally under a parent goal.",
			Parameters: map[string]any{
				"text":      "goal text",
				"parent_id": "optional parent goal id",
				"agent_id":  "optional assigned agent id",
			},
		},
		{
			Name:        "update_goal_progress",
			Description: "Record progress on a leaf goal (0.0 to 1.0).",
			Parameters: map[string]any{
				"goal_id":  "id of the goal",
				"note":     "what was done",
				"progress": "fraction complete, 0.0-1.0",
			},
		},
		{
			Name:        "save_checkpoint",
			Description: "Save a work-in-progress note for your next cycle.",
			Parameters: map[string]any{
				"note": "free-text checkpoint",
			},
		},
		{
			Name:        "post_activity",
			Description: "Post a note to the room activity log.",
			Parameters: map[string]any{
				"detail": "the note",
			},
		},
	}
}

// Execute dispatches one tool call.
func (t *toolExecutor) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	slog.Debug("Tool call", "agent", t.agentID, "tool", name)
	switch name {
	case "propose_decision":
		d, err := t.quorum.Propose(t.roomID, t.agentID, strArg(args, "text"), strArg(args, "kind"))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("decision %s created with status %s", d.ID, d.Status), nil

	case "cast_vote":
		d, err := t.quorum.Vote(strArg(args, "decision_id"), t.agentID,
			strings.ToLower(strArg(args, "value")), strArg(args, "reasoning"))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("vote recorded; decision %s is now %s", d.ID, d.Status), nil

	case "add_goal":
		g, err := t.goals.Add(t.roomID, strArg(args, "parent_id"), strArg(args, "agent_id"), strArg(args, "text"))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("goal %s created", g.ID), nil

	case "update_goal_progress":
		var contribution *float64
		if p, ok := floatArg(args, "progress"); ok {
			contribution = &p
		}
		g, err := t.goals.RecordUpdate(strArg(args, "goal_id"), t.agentID, strArg(args, "note"), contribution)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("goal %s at %.0f%% (%s)", g.ID, g.Progress*100, g.Status), nil

	case "save_checkpoint":
		if err := t.store.UpdateAgentCheckpoint(t.agentID, strArg(args, "note")); err != nil {
			return "", err
		}
		return "checkpoint saved", nil

	case "post_activity":
		t.bus.Publish(bus.Event{
			RoomID:  t.roomID,
			AgentID: t.agentID,
			Kind:    "agent_note",
			Detail:  strArg(args, "detail"),
		})
		return "posted", nil
	}
	return "", fmt.Errorf("unknown tool %q", name)
}

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
