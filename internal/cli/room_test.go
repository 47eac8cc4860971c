package cli

import (
	"path/filepath"
	"testing"

	"github.com/hiveroom/hiveroom/internal/config"
	"github.com/hiveroom/hiveroom/internal/store"
)

func testApplyStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRoomManifest() config.RoomManifest {
	return config.RoomManifest{
		Name: "research",
		Goal: "survey the landscape",
		Quorum: config.QuorumSpec{
			Threshold:       "supermajority",
			TimeoutMinutes:  45,
			AutoApproveKind: []string{"housekeeping"},
		},
		MaxAgents: 4,
		Agents: []config.AgentManifest{
			{Name: "queen", Role: "queen", Model: "anthropic/claude-sonnet-4-5"},
			{Name: "scout", Role: "worker", Model: "openai/gpt-5.2", CycleGapSec: 60},
		},
		InitialGoal: []config.GoalManifest{
			{Text: "map the problem space", Children: []config.GoalManifest{
				{Text: "list prior art", Assigned: "scout"},
			}},
		},
	}
}

func TestApplyRoomCreatesEverything(t *testing.T) {
	st := testApplyStore(t)

	room, err := applyRoom(st, sampleRoomManifest())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if room.QuorumThreshold != "supermajority" || room.AutoApprove != `["housekeeping"]` {
		t.Fatalf("unexpected room: %+v", room)
	}

	agents, _ := st.ListRoomAgents(room.ID)
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %+v", agents)
	}

	goals, _ := st.ListRoomGoals(room.ID)
	if len(goals) != 2 {
		t.Fatalf("expected 2 goals, got %+v", goals)
	}
	var child *store.Goal
	for i := range goals {
		if goals[i].ParentID != "" {
			child = &goals[i]
		}
	}
	if child == nil {
		t.Fatal("expected a nested goal")
	}
	var scout string
	for _, a := range agents {
		if a.Name == "scout" {
			scout = a.ID
		}
	}
	if child.AgentID != scout {
		t.Fatalf("expected child assigned to scout, got %+v", child)
	}
}

func TestApplyRoomIsIdempotent(t *testing.T) {
	st := testApplyStore(t)
	rm := sampleRoomManifest()

	if _, err := applyRoom(st, rm); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	room, err := applyRoom(st, rm)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	agents, _ := st.ListRoomAgents(room.ID)
	if len(agents) != 2 {
		t.Fatalf("second apply duplicated agents: %+v", agents)
	}
	goals, _ := st.ListRoomGoals(room.ID)
	if len(goals) != 2 {
		t.Fatalf("second apply duplicated goals: %+v", goals)
	}
}

func TestApplyRoomHonorsMaxAgents(t *testing.T) {
	st := testApplyStore(t)
	rm := sampleRoomManifest()
	rm.MaxAgents = 1

	if _, err := applyRoom(st, rm); err == nil {
		t.Fatal("expected room-full error")
	}
}
