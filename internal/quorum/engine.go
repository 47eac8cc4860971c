// Package quorum implements the room-scoped collective decision engine:
// propose, vote, tally, auto-approve, and deadline expiry.
package quorum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/store"
)

// Vote values.
const (
	VoteYes     = "yes"
	VoteNo      = "no"
	VoteAbstain = "abstain"
)

// Threshold kinds.
const (
	ThresholdMajority      = "majority"
	ThresholdSupermajority = "supermajority"
	ThresholdUnanimous     = "unanimous"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrDecisionNotFound = errors.New("decision not found")
	ErrNotVoting        = errors.New("decision is not in voting status")
	ErrInvalidVote      = errors.New("vote value must be yes, no, or abstain")
)

// Engine drives the decision ledger for all rooms.
type Engine struct {
	store *store.Store
	bus   *bus.ActivityBus
}

// NewEngine creates a quorum engine.
func NewEngine(st *store.Store, b *bus.ActivityBus) *Engine {
	return &Engine{store: st, bus: b}
}

// Propose creates a decision. Kinds in the room's auto-approve set resolve
// immediately as approved with no voting round; everything else enters
// voting with a deadline from the room's configured timeout.
func (e *Engine) Propose(roomID, proposerID, text, kind string) (*store.Decision, error) {
	room, err := e.store.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	d := &store.Decision{
		RoomID:     roomID,
		ProposerID: proposerID,
		Text:       text,
		Kind:       kind,
		Threshold:  room.QuorumThreshold,
	}

	if kind != "" && autoApproved(room.AutoApprove, kind) {
		now := time.Now().UTC()
		d.Status = store.DecisionStatusApproved
		d.ResolvedAt = &now
		d.Result = fmt.Sprintf("auto-approved: kind %q", kind)
		created, err := e.store.CreateDecision(d)
		if err != nil {
			return nil, err
		}
		e.publish(roomID, proposerID, bus.KindDecisionResolved,
			fmt.Sprintf("decision %s auto-approved", created.ID))
		return created, nil
	}

	d.Status = store.DecisionStatusVoting
	d.Deadline = time.Now().UTC().Add(time.Duration(room.QuorumTimeout) * time.Minute)
	created, err := e.store.CreateDecision(d)
	if err != nil {
		return nil, err
	}
	e.publish(roomID, proposerID, bus.KindDecisionProposed, created.Text)
	return created, nil
}

// Vote records one vote per (decision, agent), replacing any earlier vote by
// the same agent. When votes cast reach the room's agent count, the tally
// is forced immediately.
func (e *Engine) Vote(decisionID, agentID, value, reasoning string) (*store.Decision, error) {
	switch value {
	case VoteYes, VoteNo, VoteAbstain:
	default:
		return nil, ErrInvalidVote
	}

	d, err := e.store.GetDecision(decisionID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDecisionNotFound
	}
	if d.Status != store.DecisionStatusVoting {
		return nil, ErrNotVoting
	}

	if err := e.store.UpsertVote(&store.Vote{
		DecisionID: decisionID,
		AgentID:    agentID,
		Value:      value,
		Reasoning:  reasoning,
	}); err != nil {
		return nil, err
	}
	e.publish(d.RoomID, agentID, bus.KindVoteCast, fmt.Sprintf("%s on %s", value, decisionID))

	counts, err := e.store.CountVotes(decisionID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.CountRoomAgents(d.RoomID)
	if err != nil {
		return nil, err
	}
	if counts.Total() >= members {
		return e.Tally(decisionID)
	}
	return e.store.GetDecision(decisionID)
}

// Tally resolves a decision from the votes cast so far. Calling it on an
// already-resolved decision is a safe no-op returning the decision as-is,
// which makes vote-triggered and timeout-triggered tallies race-free.
func (e *Engine) Tally(decisionID string) (*store.Decision, error) {
	d, err := e.store.GetDecision(decisionID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDecisionNotFound
	}
	if d.Status != store.DecisionStatusVoting {
		return d, nil
	}

	counts, err := e.store.CountVotes(decisionID)
	if err != nil {
		return nil, err
	}

	status := store.DecisionStatusRejected
	if Approved(d.Threshold, counts) {
		status = store.DecisionStatusApproved
	}
	result := fmt.Sprintf("%s: %d yes, %d no, %d abstain (%s)",
		status, counts.Yes, counts.No, counts.Abstain, d.Threshold)

	// The conditional UPDATE is the serialization point: only one caller
	// moves the row out of voting.
	resolved, err := e.store.ResolveDecision(decisionID, status, result)
	if err != nil {
		return nil, err
	}
	if resolved {
		e.publish(d.RoomID, "", bus.KindDecisionResolved, result)
		slog.Info("Decision resolved", "decision", decisionID, "status", status,
			"yes", counts.Yes, "no", counts.No, "abstain", counts.Abstain)
	}
	return e.store.GetDecision(decisionID)
}

// CheckExpired force-tallies every voting decision whose deadline has
// passed, using whatever votes exist. Absent voters are simply not counted.
// Returns the number of decisions resolved.
func (e *Engine) CheckExpired() (int, error) {
	expired, err := e.store.ListExpiredDecisions()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range expired {
		resolved, err := e.Tally(d.ID)
		if err != nil {
			slog.Warn("Expiry tally failed", "decision", d.ID, "error", err)
			continue
		}
		if resolved.Status != store.DecisionStatusVoting {
			n++
		}
	}
	return n, nil
}

// RunExpirySweeper runs CheckExpired on a ticker until the context ends.
func (e *Engine) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.CheckExpired(); err != nil {
				slog.Warn("Expiry sweep failed", "error", err)
			}
		}
	}
}

// Approved applies the threshold rule to the counts. Abstentions never count
// toward the denominator; if every voter abstained no quorum was reached and
// the decision is rejected.
func Approved(threshold string, c store.VoteCounts) bool {
	nonAbstain := c.Yes + c.No
	if nonAbstain == 0 {
		return false
	}
	switch threshold {
	case ThresholdUnanimous:
		return c.No == 0 && c.Yes >= 1
	case ThresholdSupermajority:
		// yes >= ceil(2/3 * nonAbstain), in integer form.
		return 3*c.Yes >= 2*nonAbstain
	default: // majority; ties rejected
		return 2*c.Yes > nonAbstain
	}
}

func autoApproved(autoApproveJSON, kind string) bool {
	var kinds []string
	if err := json.Unmarshal([]byte(autoApproveJSON), &kinds); err != nil {
		return false
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (e *Engine) publish(roomID, agentID, kind, detail string) {
	if e.bus != nil {
		e.bus.Publish(bus.Event{RoomID: roomID, AgentID: agentID, Kind: kind, Detail: detail})
	}
}
