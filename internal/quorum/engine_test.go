package quorum

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/store"
)

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewEngine(st, bus.NewActivityBus(st)), st
}

func makeRoom(t *testing.T, st *store.Store, threshold string, agents int) (*store.Room, []store.Agent) {
	t.Helper()
	room, err := st.CreateRoom(&store.Room{Name: "hive", QuorumThreshold: threshold, QuorumTimeout: 30})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	var out []store.Agent
	for i := 0; i < agents; i++ {
		a, err := st.CreateAgent(&store.Agent{
			RoomID: room.ID,
			Name:   string(rune('a' + i)),
			Model:  "test-model",
		})
		if err != nil {
			t.Fatalf("create agent: %v", err)
		}
		out = append(out, *a)
	}
	return room, out
}

func TestApprovedMajority(t *testing.T) {
	cases := []struct {
		yes, no, abstain int
		want             bool
	}{
		{2, 1, 0, true},
		{1, 1, 0, false}, // tie rejected
		{1, 0, 3, true},  // abstentions shrink the denominator
		{0, 0, 4, false}, // all abstain → no quorum
		{0, 1, 0, false},
		{3, 2, 1, true},
	}
	for _, c := range cases {
		got := Approved(ThresholdMajority, store.VoteCounts{Yes: c.yes, No: c.no, Abstain: c.abstain})
		if got != c.want {
			t.Fatalf("majority %d/%d/%d: expected %v, got %v", c.yes, c.no, c.abstain, c.want, got)
		}
	}
}

func TestApprovedSupermajority(t *testing.T) {
	cases := []struct {
		yes, no, abstain int
		want             bool
	}{
		{2, 1, 0, true},  // exactly two thirds
		{3, 2, 0, false}, // 60% < 2/3
		{2, 0, 2, true},
		{0, 0, 3, false},
		{1, 0, 0, true},
	}
	for _, c := range cases {
		got := Approved(ThresholdSupermajority, store.VoteCounts{Yes: c.yes, No: c.no, Abstain: c.abstain})
		if got != c.want {
			t.Fatalf("supermajority %d/%d/%d: expected %v, got %v", c.yes, c.no, c.abstain, c.want, got)
		}
	}
}

func TestApprovedUnanimous(t *testing.T) {
	cases := []struct {
		yes, no, abstain int
		want             bool
	}{
		{3, 0, 0, true},
		{3, 0, 1, true}, // abstain does not break unanimity
		{3, 1, 0, false},
		{0, 0, 2, false},
	}
	for _, c := range cases {
		got := Approved(ThresholdUnanimous, store.VoteCounts{Yes: c.yes, No: c.no, Abstain: c.abstain})
		if got != c.want {
			t.Fatalf("unanimous %d/%d/%d: expected %v, got %v", c.yes, c.no, c.abstain, c.want, got)
		}
	}
}

func TestProposeSetsDeadline(t *testing.T) {
	engine, st := testEngine(t)
	room, agents := makeRoom(t, st, ThresholdMajority, 2)

	d, err := engine.Propose(room.ID, agents[0].ID, "switch storage layer", "direction")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if d.Status != store.DecisionStatusVoting {
		t.Fatalf("expected voting, got %q", d.Status)
	}
	until := time.Until(d.Deadline)
	if until < 25*time.Minute || until > 35*time.Minute {
		t.Fatalf("deadline not near 30m: %v", until)
	}
}

func TestProposeAutoApprove(t *testing.T) {
	engine, st := testEngine(t)
	room, err := st.CreateRoom(&store.Room{Name: "hive", AutoApprove: `["housekeeping"]`})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	a, _ := st.CreateAgent(&store.Agent{RoomID: room.ID, Name: "a", Model: "m"})

	d, err := engine.Propose(room.ID, a.ID, "rotate logs", "housekeeping")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if d.Status != store.DecisionStatusApproved || d.ResolvedAt == nil {
		t.Fatalf("expected immediate approval, got %+v", d)
	}

	// Other kinds still vote.
	d2, err := engine.Propose(room.ID, a.ID, "rewrite everything", "direction")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if d2.Status != store.DecisionStatusVoting {
		t.Fatalf("expected voting, got %q", d2.Status)
	}
}

func TestVoteForcesTallyWhenAllVoted(t *testing.T) {
	engine, st := testEngine(t)
	room, agents := makeRoom(t, st, ThresholdMajority, 3)

	d, err := engine.Propose(room.ID, agents[0].ID, "x", "direction")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if _, err := engine.Vote(d.ID, agents[0].ID, VoteYes, ""); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := engine.Vote(d.ID, agents[1].ID, VoteYes, ""); err != nil {
		t.Fatalf("vote: %v", err)
	}
	mid, _ := st.GetDecision(d.ID)
	if mid.Status != store.DecisionStatusVoting {
		t.Fatalf("expected still voting at 2/3 votes, got %q", mid.Status)
	}

	final, err := engine.Vote(d.ID, agents[2].ID, VoteNo, "")
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if final.Status != store.DecisionStatusApproved {
		t.Fatalf("expected approved after full tally, got %+v", final)
	}
}

func TestVoteOnResolvedDecision(t *testing.T) {
	engine, st := testEngine(t)
	room, agents := makeRoom(t, st, ThresholdUnanimous, 2)

	d, _ := engine.Propose(room.ID, agents[0].ID, "x", "")
	engine.Vote(d.ID, agents[0].ID, VoteYes, "")
	engine.Vote(d.ID, agents[1].ID, VoteYes, "")

	if _, err := engine.Vote(d.ID, agents[0].ID, VoteNo, ""); err != ErrNotVoting {
		t.Fatalf("expected ErrNotVoting, got %v", err)
	}
}

func TestVoteInvalidValue(t *testing.T) {
	engine, st := testEngine(t)
	room, agents := makeRoom(t, st, ThresholdMajority, 2)
	d, _ := engine.Propose(room.ID, agents[0].ID, "x", "")

	if _, err := engine.Vote(d.ID, agents[0].ID, "maybe", ""); err != ErrInvalidVote {
		t.Fatalf("expected ErrInvalidVote, got %v", err)
	}
}

func TestTallyTwiceIsNoOp(t *testing.T) {
	engine, st := testEngine(t)
	room, agents := makeRoom(t, st, ThresholdMajority, 3)

	d, _ := engine.Propose(room.ID, agents[0].ID, "x", "")
	engine.Vote(d.ID, agents[0].ID, VoteYes, "")
	engine.Vote(d.ID, agents[1].ID, VoteYes, "")
	engine.Vote(d.ID, agents[2].ID, VoteNo, "")

	resolved, _ := st.GetDecision(d.ID)
	firstResult := resolved.Result

	again, err := engine.Tally(d.ID)
	if err != nil {
		t.Fatalf("second tally: %v", err)
	}
	if again.Status != store.DecisionStatusApproved || again.Result != firstResult {
		t.Fatalf("second tally changed the decision: %+v", again)
	}
}

func TestCheckExpiredResolvesWithPartialVotes(t *testing.T) {
	engine, st := testEngine(t)
	room, agents := makeRoom(t, st, ThresholdMajority, 3)

	// A decision with a deadline already in the past.
	d, err := st.CreateDecision(&store.Decision{
		RoomID:     room.ID,
		ProposerID: agents[0].ID,
		Text:       "late",
		Threshold:  ThresholdMajority,
		Deadline:   time.Now().UTC().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("create decision: %v", err)
	}
	if err := st.UpsertVote(&store.Vote{DecisionID: d.ID, AgentID: agents[0].ID, Value: VoteYes}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	n, err := engine.CheckExpired()
	if err != nil {
		t.Fatalf("check expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 resolved, got %d", n)
	}
	got, _ := st.GetDecision(d.ID)
	if got.Status != store.DecisionStatusApproved {
		t.Fatalf("expected approved with the single yes, got %+v", got)
	}
}

func TestCheckExpiredAllAbstainRejected(t *testing.T) {
	engine, st := testEngine(t)
	room, agents := makeRoom(t, st, ThresholdMajority, 2)

	d, _ := st.CreateDecision(&store.Decision{
		RoomID:     room.ID,
		ProposerID: agents[0].ID,
		Text:       "nobody cares",
		Threshold:  ThresholdMajority,
		Deadline:   time.Now().UTC().Add(-time.Minute),
	})
	st.UpsertVote(&store.Vote{DecisionID: d.ID, AgentID: agents[0].ID, Value: VoteAbstain})
	st.UpsertVote(&store.Vote{DecisionID: d.ID, AgentID: agents[1].ID, Value: VoteAbstain})

	if _, err := engine.CheckExpired(); err != nil {
		t.Fatalf("check expired: %v", err)
	}
	got, _ := st.GetDecision(d.ID)
	if got.Status != store.DecisionStatusRejected {
		t.Fatalf("expected rejected on all-abstain, got %+v", got)
	}
}
