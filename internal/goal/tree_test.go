package goal

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/store"
)

func testTree(t *testing.T) (*Tree, *store.Store, *store.Room) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	room, err := st.CreateRoom(&store.Room{Name: "hive"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return NewTree(st, bus.NewActivityBus(st)), st, room
}

func progress(t *testing.T, st *store.Store, id string) float64 {
	t.Helper()
	g, err := st.GetGoal(id)
	if err != nil || g == nil {
		t.Fatalf("get goal %s: %v", id, err)
	}
	return g.Progress
}

func ptr(v float64) *float64 { return &v }

func TestAddRejectsMissingParent(t *testing.T) {
	tree, _, room := testTree(t)
	if _, err := tree.Add(room.ID, "no-such-goal", "", "child"); err != ErrGoalNotFound {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
}

func TestParentProgressIsMeanOfChildren(t *testing.T) {
	tree, st, room := testTree(t)

	parent, err := tree.Add(room.ID, "", "", "parent")
	if err != nil {
		t.Fatalf("add parent: %v", err)
	}
	a, _ := tree.Add(room.ID, parent.ID, "", "a")
	b, _ := tree.Add(room.ID, parent.ID, "", "b")

	if _, err := tree.RecordUpdate(a.ID, "", "done", ptr(1.0)); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if _, err := tree.RecordUpdate(b.ID, "", "half", ptr(0.5)); err != nil {
		t.Fatalf("update b: %v", err)
	}

	if got := progress(t, st, parent.ID); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected parent at 0.75, got %v", got)
	}
}

func TestRecomputeWalksToRoot(t *testing.T) {
	tree, st, room := testTree(t)

	root, _ := tree.Add(room.ID, "", "", "root")
	mid, _ := tree.Add(room.ID, root.ID, "", "mid")
	leaf, _ := tree.Add(room.ID, mid.ID, "", "leaf")

	if _, err := tree.RecordUpdate(leaf.ID, "", "", ptr(0.5)); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := progress(t, st, mid.ID); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected mid at 0.5, got %v", got)
	}
	if got := progress(t, st, root.ID); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected root at 0.5, got %v", got)
	}
}

func TestAddingChildResetsDerivedProgress(t *testing.T) {
	tree, st, room := testTree(t)

	parent, _ := tree.Add(room.ID, "", "", "parent")
	a, _ := tree.Add(room.ID, parent.ID, "", "a")
	tree.RecordUpdate(a.ID, "", "", ptr(1.0))

	if got := progress(t, st, parent.ID); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected parent at 1.0, got %v", got)
	}

	// A new zero-progress child halves the derived mean.
	if _, err := tree.Add(room.ID, parent.ID, "", "b"); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if got := progress(t, st, parent.ID); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected parent back at 0.5, got %v", got)
	}
}

func TestDirectProgressIgnoredOnParents(t *testing.T) {
	tree, st, room := testTree(t)

	parent, _ := tree.Add(room.ID, "", "", "parent")
	tree.Add(room.ID, parent.ID, "", "child")

	// The update is recorded, but the parent's progress stays derived.
	if _, err := tree.RecordUpdate(parent.ID, "", "hand-set attempt", ptr(0.9)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := progress(t, st, parent.ID); got != 0 {
		t.Fatalf("expected parent progress derived at 0, got %v", got)
	}

	updates, err := st.ListGoalUpdates(parent.ID, 10)
	if err != nil || len(updates) != 1 {
		t.Fatalf("expected the observation recorded, got %v %v", updates, err)
	}
}

func TestInvalidContribution(t *testing.T) {
	tree, st, room := testTree(t)
	g, _ := tree.Add(room.ID, "", "", "leaf")

	if _, err := tree.RecordUpdate(g.ID, "", "", ptr(1.5)); err != ErrInvalidProgress {
		t.Fatalf("expected ErrInvalidProgress, got %v", err)
	}
	if _, err := tree.RecordUpdate(g.ID, "", "", ptr(-0.1)); err != ErrInvalidProgress {
		t.Fatalf("expected ErrInvalidProgress, got %v", err)
	}

	// A rejected update must leave nothing in the append-only journal.
	updates, err := st.ListGoalUpdates(g.ID, 10)
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("rejected updates were persisted: %+v", updates)
	}
}

func TestFullProgressCompletesGoal(t *testing.T) {
	tree, st, room := testTree(t)
	g, _ := tree.Add(room.ID, "", "", "leaf")

	if _, err := tree.RecordUpdate(g.ID, "", "", ptr(0.3)); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := st.GetGoal(g.ID)
	if got.Status != store.GoalStatusInProgress {
		t.Fatalf("expected in_progress, got %q", got.Status)
	}

	if _, err := tree.RecordUpdate(g.ID, "", "", ptr(1.0)); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = st.GetGoal(g.ID)
	if got.Status != store.GoalStatusCompleted {
		t.Fatalf("expected completed, got %q", got.Status)
	}
}

func TestRenderIndentsChildren(t *testing.T) {
	tree, _, room := testTree(t)

	root, _ := tree.Add(room.ID, "", "", "build the service")
	tree.Add(room.ID, root.ID, "", "write the schema")

	out, err := tree.Render(room.ID)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "- [active 0%] build the service") {
		t.Fatalf("missing root line:\n%s", out)
	}
	if !strings.Contains(out, "  - [active 0%] write the schema") {
		t.Fatalf("missing indented child:\n%s", out)
	}
}
