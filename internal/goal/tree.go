// Package goal implements the hierarchical goal tree with bottom-up
// progress aggregation. Leaf goals receive progress from direct updates;
// non-leaf goals derive progress as the mean of their children and are
// never hand-set once children exist.
package goal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/store"
)

var (
	ErrGoalNotFound    = errors.New("goal not found")
	ErrInvalidProgress = errors.New("progress must be within [0,1]")
)

// Tree manages goals for all rooms.
type Tree struct {
	store *store.Store
	bus   *bus.ActivityBus
}

// NewTree creates a goal tree service.
func NewTree(st *store.Store, b *bus.ActivityBus) *Tree {
	return &Tree{store: st, bus: b}
}

// Add creates a goal, optionally under a parent and assigned to an agent.
func (t *Tree) Add(roomID, parentID, agentID, text string) (*store.Goal, error) {
	if parentID != "" {
		parent, err := t.store.GetGoal(parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrGoalNotFound
		}
	}
	g, err := t.store.CreateGoal(&store.Goal{
		RoomID:   roomID,
		ParentID: parentID,
		AgentID:  agentID,
		Text:     text,
	})
	if err != nil {
		return nil, err
	}
	// A new child resets the derived progress of every ancestor.
	if parentID != "" {
		if err := t.recomputeUp(parentID); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// RecordUpdate appends a goal observation. A non-nil contribution sets the
// leaf's progress and triggers bottom-up recomputation of every ancestor.
func (t *Tree) RecordUpdate(goalID, agentID, note string, contribution *float64) (*store.Goal, error) {
	g, err := t.store.GetGoal(goalID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGoalNotFound
	}
	// Validate before touching the append-only journal so a rejected update
	// leaves no row behind.
	if contribution != nil && (*contribution < 0 || *contribution > 1) {
		return nil, ErrInvalidProgress
	}

	if err := t.store.InsertGoalUpdate(&store.GoalUpdate{
		GoalID:       goalID,
		AgentID:      agentID,
		Note:         note,
		Contribution: contribution,
	}); err != nil {
		return nil, err
	}

	if contribution != nil {
		p := *contribution
		children, err := t.store.ListChildGoals(goalID)
		if err != nil {
			return nil, err
		}
		// Direct progress only applies to leaves; a parent's progress is
		// always derived from its children.
		if len(children) == 0 {
			status := statusForProgress(g.Status, p)
			if err := t.store.UpdateGoalProgress(goalID, p, status); err != nil {
				return nil, err
			}
			if t.bus != nil {
				t.bus.Publish(bus.Event{
					RoomID:  g.RoomID,
					AgentID: agentID,
					Kind:    bus.KindGoalProgress,
					Detail:  fmt.Sprintf("%s → %.0f%%", g.Text, p*100),
				})
			}
		}
		if g.ParentID != "" {
			if err := t.recomputeUp(g.ParentID); err != nil {
				return nil, err
			}
		}
	}

	return t.store.GetGoal(goalID)
}

// SetStatus moves a goal between lifecycle states without touching progress.
func (t *Tree) SetStatus(goalID, status string) error {
	g, err := t.store.GetGoal(goalID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGoalNotFound
	}
	return t.store.UpdateGoalStatus(goalID, status)
}

// recomputeUp recomputes the given goal and walks to the root.
func (t *Tree) recomputeUp(goalID string) error {
	for goalID != "" {
		g, err := t.store.GetGoal(goalID)
		if err != nil {
			return err
		}
		if g == nil {
			return nil
		}
		if err := t.recompute(goalID); err != nil {
			return err
		}
		goalID = g.ParentID
	}
	return nil
}

// recompute derives one goal's progress as the mean of its children.
// Leaves are left untouched.
func (t *Tree) recompute(goalID string) error {
	children, err := t.store.ListChildGoals(goalID)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}
	sum := 0.0
	for _, c := range children {
		sum += c.Progress
	}
	mean := sum / float64(len(children))

	g, err := t.store.GetGoal(goalID)
	if err != nil || g == nil {
		return err
	}
	return t.store.UpdateGoalProgress(goalID, mean, statusForProgress(g.Status, mean))
}

// statusForProgress flips a goal to completed at full progress and marks it
// in_progress once any progress lands. Abandoned goals keep their status.
func statusForProgress(current string, p float64) string {
	if current == store.GoalStatusAbandoned {
		return ""
	}
	if p >= 1.0 {
		return store.GoalStatusCompleted
	}
	if p > 0 && current == store.GoalStatusActive {
		return store.GoalStatusInProgress
	}
	return ""
}

// Render formats the room's goal tree for prompt assembly, roots first,
// children indented beneath their parents.
func (t *Tree) Render(roomID string) (string, error) {
	goals, err := t.store.ListRoomGoals(roomID)
	if err != nil {
		return "", err
	}
	if len(goals) == 0 {
		return "", nil
	}

	byParent := map[string][]store.Goal{}
	for _, g := range goals {
		byParent[g.ParentID] = append(byParent[g.ParentID], g)
	}

	var b strings.Builder
	var walk func(parentID string, depth int)
	walk = func(parentID string, depth int) {
		for _, g := range byParent[parentID] {
			b.WriteString(strings.Repeat("  ", depth))
			fmt.Fprintf(&b, "- [%s %.0f%%] %s", g.Status, g.Progress*100, g.Text)
			if g.AgentID != "" {
				fmt.Fprintf(&b, " (assigned: %s)", g.AgentID)
			}
			b.WriteString("\n")
			walk(g.ID, depth+1)
		}
	}
	walk("", 0)
	return b.String(), nil
}
