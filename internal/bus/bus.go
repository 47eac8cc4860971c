// Package bus provides the fire-and-forget activity event sink for rooms.
package bus

import (
	"sync"
	"time"

	"github.com/hiveroom/hiveroom/internal/store"
)

// Well-known activity kinds emitted by the kernel.
const (
	KindCycleStarted     = "cycle_started"
	KindCycleCompleted   = "cycle_completed"
	KindCycleFailed      = "cycle_failed"
	KindRateLimited      = "rate_limited"
	KindQuietHours       = "quiet_hours"
	KindLoopStarted      = "loop_started"
	KindLoopStopped      = "loop_stopped"
	KindDecisionProposed = "decision_proposed"
	KindDecisionResolved = "decision_resolved"
	KindVoteCast         = "vote_cast"
	KindGoalProgress     = "goal_progress"
	KindSessionRotated   = "session_rotated"
	KindSessionCompacted = "session_compacted"
)

// Event is one activity entry flowing through the bus.
type Event struct {
	RoomID    string    `json:"room_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Mirror forwards events to an external system (Kafka, Slack). Publishing
// is best-effort; mirrors must never block the kernel.
type Mirror interface {
	Publish(ev Event)
}

// ActivityBus persists events to the room activity log and fans them out to
// room-scoped subscribers. Publish never blocks and never returns an error
// to callers: the kernel treats the sink as fire-and-forget.
type ActivityBus struct {
	store   *store.Store
	mu      sync.RWMutex
	subs    map[string][]chan Event
	mirrors []Mirror
}

// NewActivityBus creates a bus backed by the given store.
func NewActivityBus(st *store.Store) *ActivityBus {
	return &ActivityBus{
		store: st,
		subs:  make(map[string][]chan Event),
	}
}

// AddMirror registers an external mirror.
func (b *ActivityBus) AddMirror(m Mirror) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirrors = append(b.mirrors, m)
}

// Publish appends the event to the room activity log and notifies
// subscribers. Slow subscribers drop events rather than blocking.
func (b *ActivityBus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if b.store != nil {
		_ = b.store.AppendActivity(&store.ActivityEntry{
			RoomID:  ev.RoomID,
			AgentID: ev.AgentID,
			Kind:    ev.Kind,
			Detail:  ev.Detail,
		})
	}

	// Sends happen under the read lock: Unsubscribe closes channels under the
	// write lock, so a send can never land on a just-closed channel. The sends
	// are non-blocking, so the lock is held only briefly.
	b.mu.RLock()
	for _, ch := range b.subs[ev.RoomID] {
		select {
		case ch <- ev:
		default:
		}
	}
	mirrors := b.mirrors
	b.mu.RUnlock()

	for _, m := range mirrors {
		m.Publish(ev)
	}
}

// Subscribe returns a buffered channel receiving events for one room.
func (b *ActivityBus) Subscribe(roomID string) chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[roomID] = append(b.subs[roomID], ch)
	return ch
}

// Unsubscribe removes a previously subscribed channel.
func (b *ActivityBus) Unsubscribe(roomID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[roomID]
	for i, c := range subs {
		if c == ch {
			b.subs[roomID] = append(subs[:i], subs[i+1:]...)
			close(c)
			return
		}
	}
}
