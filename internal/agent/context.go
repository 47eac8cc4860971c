package agent

import (
	"fmt"
	"strings"

	"github.com/hiveroom/hiveroom/internal/goal"
	"github.com/hiveroom/hiveroom/internal/store"
)

// Section caps keep any single source from flooding the prompt.
const (
	activitySectionCap = 12
	decisionSectionCap = 8
	memorySectionCap   = 2000
)

// ContextBuilder assembles the observe phase of a cycle: everything the
// agent needs to know about its room before the model is dispatched.
type ContextBuilder struct {
	store *store.Store
	goals *goal.Tree
}

// NewContextBuilder creates a context builder.
func NewContextBuilder(st *store.Store, goals *goal.Tree) *ContextBuilder {
	return &ContextBuilder{store: st, goals: goals}
}

// SystemPrompt renders the stable per-agent instruction block.
func (c *ContextBuilder) SystemPrompt(room *store.Room, agent *store.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an autonomous agent in room %q.\n", agent.Name, room.Name)
	if agent.Role == "queen" {
		b.WriteString("You are the room coordinator: break the room goal into sub-goals, assign work, and propose decisions when the room must commit to a direction.\n")
	} else {
		b.WriteString("Work toward your assigned goals, report progress, and vote on open decisions.\n")
	}
	fmt.Fprintf(&b, "Room goal: %s\n", room.Goal)
	b.WriteString("Use the provided tools to record progress, propose or vote on decisions, and save a checkpoint before finishing each cycle.\n")
	return b.String()
}

// BuildPrompt renders the observed room state for one cycle.
func (c *ContextBuilder) BuildPrompt(room *store.Room, agent *store.Agent) (string, error) {
	var b strings.Builder

	if tree, err := c.goals.Render(room.ID); err != nil {
		return "", fmt.Errorf("render goals: %w", err)
	} else if tree != "" {
		b.WriteString("## Goals\n")
		b.WriteString(tree)
		b.WriteString("\n")
	}

	decisions, err := c.store.ListDecisions(room.ID, store.DecisionStatusVoting, decisionSectionCap)
	if err != nil {
		return "", fmt.Errorf("list decisions: %w", err)
	}
	if len(decisions) > 0 {
		b.WriteString("## Open decisions\n")
		for _, d := range decisions {
			votes, _ := c.store.CountVotes(d.ID)
			fmt.Fprintf(&b, "- %s [%s] proposed by %s: %s (votes: %dy/%dn/%da, deadline %s)\n",
				d.ID, d.Kind, d.ProposerID, d.Text,
				votes.Yes, votes.No, votes.Abstain,
				d.Deadline.Format("15:04"))
		}
		b.WriteString("\n")
	}

	activity, err := c.store.ListActivity(room.ID, activitySectionCap)
	if err != nil {
		return "", fmt.Errorf("list activity: %w", err)
	}
	if len(activity) > 0 {
		b.WriteString("## Recent room activity\n")
		for _, e := range activity {
			fmt.Fprintf(&b, "- [%s] %s %s\n", e.CreatedAt.Format("15:04"), e.Kind, e.Detail)
		}
		b.WriteString("\n")
	}

	memory, err := c.store.ListRoomMemory(room.ID)
	if err != nil {
		return "", fmt.Errorf("list room memory: %w", err)
	}
	if len(memory) > 0 {
		b.WriteString("## Room memory\n")
		used := 0
		for _, m := range memory {
			if used+len(m.Content) > memorySectionCap {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", m.Key, m.Content)
			used += len(m.Content)
		}
		b.WriteString("\n")
	}

	if agent.Checkpoint != "" {
		b.WriteString("## Your last checkpoint\n")
		b.WriteString(agent.Checkpoint)
		b.WriteString("\n\n")
	}

	b.WriteString("Continue your work. Act on open decisions first, then advance your goals.")
	return b.String(), nil
}
