// Package session preserves conversational state for an agent across
// independent, stateless model calls. Two mutually exclusive families exist
// per agent: an opaque provider-resumable handle, or a bounded rolling
// history that gets compressed into a compact note when it grows.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/config"
	"github.com/hiveroom/hiveroom/internal/provider"
	"github.com/hiveroom/hiveroom/internal/store"
)

// Session families.
const (
	FamilyResume  = "resume"
	FamilyHistory = "history"
)

// State is the in-memory form of one agent's session.
type State struct {
	Family       string
	ResumeHandle string
	History      []provider.Turn
	Model        string
	Turns        int
}

// Manager loads, compresses, rotates, and persists agent sessions.
type Manager struct {
	store   *store.Store
	adapter provider.Adapter
	bus     *bus.ActivityBus
	cfg     config.SessionConfig
}

// NewManager creates a session manager.
func NewManager(st *store.Store, adapter provider.Adapter, b *bus.ActivityBus, cfg config.SessionConfig) *Manager {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	if cfg.TurnCeiling <= 0 {
		cfg.TurnCeiling = 50
	}
	if cfg.CompressAt <= 0 {
		cfg.CompressAt = 30
	}
	if cfg.TruncateKeep <= 0 {
		cfg.TruncateKeep = 10
	}
	return &Manager{store: st, adapter: adapter, bus: b, cfg: cfg}
}

// Load returns the session state for an agent, discarding persisted state
// outright when it is stale (untouched past MaxAge) or when the agent's
// model no longer matches the tag it was saved under. Discard means a fresh
// start, never a resume.
func (m *Manager) Load(agent *store.Agent) (*State, error) {
	fresh := &State{Family: familyFor(agent.Model), Model: agent.Model}

	sess, err := m.store.GetAgentSession(agent.ID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return fresh, nil
	}

	if time.Since(sess.UpdatedAt) > m.cfg.MaxAge {
		slog.Info("Discarding stale session", "agent", agent.ID, "age", time.Since(sess.UpdatedAt))
		_ = m.store.DeleteAgentSession(agent.ID)
		return fresh, nil
	}
	if sess.Model != agent.Model {
		slog.Info("Discarding session after model change", "agent", agent.ID, "was", sess.Model, "now", agent.Model)
		_ = m.store.DeleteAgentSession(agent.ID)
		return fresh, nil
	}

	st := &State{
		Family:       sess.Family,
		ResumeHandle: sess.ResumeHandle,
		Model:        sess.Model,
		Turns:        sess.Turns,
	}
	if sess.Family == FamilyHistory && sess.History != "" {
		if err := json.Unmarshal([]byte(sess.History), &st.History); err != nil {
			// Corrupt history is discarded, not resumed.
			_ = m.store.DeleteAgentSession(agent.ID)
			return fresh, nil
		}
	}
	return st, nil
}

// Save persists the state after a successful cycle, bumping the turn counter.
func (m *Manager) Save(agentID string, st *State) error {
	st.Turns++
	rec := &store.AgentSession{
		AgentID:      agentID,
		Family:       st.Family,
		ResumeHandle: st.ResumeHandle,
		Model:        st.Model,
		Turns:        st.Turns,
	}
	if st.Family == FamilyHistory {
		data, err := json.Marshal(st.History)
		if err != nil {
			return fmt.Errorf("marshal history: %w", err)
		}
		rec.History = string(data)
	}
	return m.store.SaveAgentSession(rec)
}

// ShouldRotate reports whether the resumable handle must be dropped: either
// the failure text carries a context-overflow signature, or the handle has
// been reused past the turn ceiling.
func (m *Manager) ShouldRotate(st *State, errText string) bool {
	if st.Family != FamilyResume || st.ResumeHandle == "" {
		return false
	}
	if st.Turns >= m.cfg.TurnCeiling {
		return true
	}
	return OverflowDetected(errText)
}

// Rotate drops the resumable handle, forcing the next dispatch to start a
// fresh provider conversation.
func (m *Manager) Rotate(roomID, agentID string, st *State) {
	st.ResumeHandle = ""
	st.Turns = 0
	_ = m.store.DeleteAgentSession(agentID)
	if m.bus != nil {
		m.bus.Publish(bus.Event{RoomID: roomID, AgentID: agentID, Kind: bus.KindSessionRotated})
	}
}

// Compress shrinks a rolling history that has reached the compression
// threshold: the adapter summarizes it into one compact note which replaces
// the history and is mirrored into durable room memory. If summarization
// fails or returns nothing, the history is hard-truncated to the most
// recent TruncateKeep turns instead.
func (m *Manager) Compress(ctx context.Context, roomID, agentID string, st *State) {
	if st.Family != FamilyHistory || len(st.History) < m.cfg.CompressAt {
		return
	}

	model := m.cfg.SummarizerModel
	if model == "" {
		model = st.Model
	}

	summary, err := m.adapter.Summarize(ctx, model, renderHistory(st.History))
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		if err != nil {
			slog.Warn("History summarization failed, truncating", "agent", agentID, "error", err)
		}
		keep := m.cfg.TruncateKeep
		if keep > len(st.History) {
			keep = len(st.History)
		}
		st.History = append([]provider.Turn(nil), st.History[len(st.History)-keep:]...)
		return
	}

	st.History = []provider.Turn{{
		Role:    "system",
		Content: "Earlier conversation, compressed: " + summary,
	}}
	_ = m.store.UpsertRoomMemory(&store.RoomMemory{
		RoomID:  roomID,
		Key:     "session-summary:" + agentID,
		Content: summary,
	})
	if m.bus != nil {
		m.bus.Publish(bus.Event{RoomID: roomID, AgentID: agentID, Kind: bus.KindSessionCompacted})
	}
}

// Append records one exchange on a rolling history. No-op for the
// resumable family, which carries its state provider-side.
func (m *Manager) Append(st *State, prompt, output string) {
	if st.Family != FamilyHistory {
		return
	}
	st.History = append(st.History,
		provider.Turn{Role: "user", Content: prompt},
		provider.Turn{Role: "assistant", Content: output},
	)
}

var overflowSignatures = []string{
	"compaction",
	"context window",
	"context overflow",
	"context length",
	"token limit",
	"maximum context",
}

// OverflowDetected reports whether failure text carries a context-overflow
// signature.
func OverflowDetected(errText string) bool {
	lower := strings.ToLower(errText)
	for _, sig := range overflowSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

func familyFor(model string) string {
	if provider.ResumableFamily(model) {
		return FamilyResume
	}
	return FamilyHistory
}

func renderHistory(turns []provider.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
