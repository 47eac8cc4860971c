// Package scheduler runs the per-agent continuous loop: cycle, wait, repeat.
// Each started agent owns exactly one goroutine, registered by agent id, with
// cancellable waits so pause and manual trigger take effect immediately.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hiveroom/hiveroom/internal/agent"
	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/config"
	"github.com/hiveroom/hiveroom/internal/store"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrRoomNotFound  = errors.New("room not found")
	ErrInvalidState  = errors.New("room is not active or agent is not a member")
)

type wakeReason int

const (
	wakeElapsed wakeReason = iota
	wakeTriggered
	wakePaused
)

// loopHandle carries the control signals for one running loop. Stop is a
// wait-invalidation signal, not a context cancellation: a cycle already
// dispatched to the model adapter always runs to its own completion or
// timeout, and the loop unwinds at the next wait.
type loopHandle struct {
	stop     chan struct{}
	stopOnce sync.Once
	trigger  chan struct{}
	done     chan struct{}
}

func (h *loopHandle) requestStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *loopHandle) stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// Scheduler owns every running agent loop.
type Scheduler struct {
	store    *store.Store
	pipeline *agent.Pipeline
	bus      *bus.ActivityBus
	cfg      config.LoopConfig

	mu    sync.Mutex
	loops map[string]*loopHandle
	sem   chan struct{}
}

// New creates a scheduler.
func New(st *store.Store, p *agent.Pipeline, b *bus.ActivityBus, cfg config.LoopConfig) *Scheduler {
	if cfg.CycleGap <= 0 {
		cfg.CycleGap = 2 * time.Minute
	}
	if cfg.DefaultBackoff <= 0 {
		cfg.DefaultBackoff = 5 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	return &Scheduler{
		store:    st,
		pipeline: p,
		bus:      b,
		cfg:      cfg,
		loops:    make(map[string]*loopHandle),
		sem:      make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Start launches the loop for one agent. Starting an agent whose loop is
// already running is a no-op: one goroutine per agent, never two.
func (s *Scheduler) Start(ctx context.Context, roomID, agentID string) error {
	a, err := s.store.GetAgent(agentID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrAgentNotFound
	}
	room, err := s.store.GetRoom(roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrRoomNotFound
	}
	if a.RoomID != room.ID || room.Status != store.RoomStatusActive {
		return ErrInvalidState
	}

	s.mu.Lock()
	if _, running := s.loops[agentID]; running {
		s.mu.Unlock()
		return nil
	}
	h := &loopHandle{
		stop:    make(chan struct{}),
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.loops[agentID] = h
	s.mu.Unlock()

	slog.Info("Agent loop started", "agent", agentID, "room", a.RoomID)
	s.bus.Publish(bus.Event{RoomID: a.RoomID, AgentID: agentID, Kind: bus.KindLoopStarted})
	go s.run(ctx, h, agentID)
	return nil
}

// StartRoom launches loops for every agent in a room.
func (s *Scheduler) StartRoom(ctx context.Context, roomID string) (int, error) {
	agents, err := s.store.ListRoomAgents(roomID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range agents {
		if err := s.Start(ctx, roomID, a.ID); err != nil {
			return n, fmt.Errorf("start %s: %w", a.Name, err)
		}
		n++
	}
	return n, nil
}

// Pause stops an agent's loop and waits for it to unwind. A cycle already
// dispatched to the model adapter runs to completion and persists normally;
// only the current wait is invalidated. Pausing an agent that is not running
// is a no-op.
func (s *Scheduler) Pause(agentID string) {
	s.mu.Lock()
	h, ok := s.loops[agentID]
	s.mu.Unlock()
	if !ok {
		return
	}
	h.requestStop()
	<-h.done
}

// Trigger wakes a sleeping loop so the next cycle starts immediately, with no
// residual delay. The signal is buffered: triggering mid-cycle queues exactly
// one extra wakeup. Triggering an agent with no running loop starts one; the
// fresh loop runs its first cycle right away.
func (s *Scheduler) Trigger(ctx context.Context, agentID string) error {
	s.mu.Lock()
	h, ok := s.loops[agentID]
	s.mu.Unlock()
	if !ok {
		a, err := s.store.GetAgent(agentID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAgentNotFound
		}
		return s.Start(ctx, a.RoomID, agentID)
	}
	select {
	case h.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Running reports whether an agent's loop is registered.
func (s *Scheduler) Running(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[agentID]
	return ok
}

// RunningAgents returns the ids of all registered loops, sorted.
func (s *Scheduler) RunningAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.loops))
	for id := range s.loops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll stops every loop and waits for all of them to unwind. In-flight
// cycles run to completion, same as Pause.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	handles := make([]*loopHandle, 0, len(s.loops))
	for _, h := range s.loops {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.requestStop()
	}
	for _, h := range handles {
		<-h.done
	}
}

func (s *Scheduler) remove(agentID string) {
	s.mu.Lock()
	delete(s.loops, agentID)
	s.mu.Unlock()
}

// run is the loop body. Room and agent rows are re-read every iteration so
// pauses, quiet-hour edits, and model changes take effect on the next cycle
// without a restart.
func (s *Scheduler) run(ctx context.Context, h *loopHandle, agentID string) {
	defer close(h.done)
	defer s.remove(agentID)

	for {
		a, err := s.store.GetAgent(agentID)
		if err != nil {
			slog.Error("Agent loop stopping, store unreachable", "agent", agentID, "error", err)
			return
		}
		if a == nil {
			slog.Info("Agent loop stopping, agent removed", "agent", agentID)
			return
		}
		room, err := s.store.GetRoom(a.RoomID)
		if err != nil {
			slog.Error("Agent loop stopping, store unreachable", "agent", agentID, "error", err)
			return
		}
		if room == nil || room.Status != store.RoomStatusActive {
			s.finish(a, "room inactive")
			return
		}
		if h.stopped() || ctx.Err() != nil {
			s.finish(a, "paused")
			return
		}

		if InQuietHours(room.QuietHoursFrom, room.QuietHoursUntil, time.Now()) {
			wake := NextQuietEnd(room.QuietHoursUntil, time.Now())
			s.bus.Publish(bus.Event{RoomID: room.ID, AgentID: agentID, Kind: bus.KindQuietHours,
				Detail: "sleeping until " + wake.Format("15:04")})
			switch s.sleep(ctx, h, time.Until(wake)) {
			case wakePaused:
				s.finish(a, "paused")
				return
			case wakeTriggered:
				// Manual trigger overrides quiet hours for one cycle.
			case wakeElapsed:
				continue
			}
		}

		outcome, err := s.runOne(ctx, h, room, a)
		if err != nil {
			// Fatal by the pipeline's contract: the store is unreachable.
			// Terminate this agent's loop, recorded best-effort.
			slog.Error("Agent loop stopping, cycle could not be persisted", "agent", agentID, "error", err)
			s.finish(a, "store unreachable")
			return
		}
		if h.stopped() || ctx.Err() != nil {
			s.finish(a, "paused")
			return
		}

		delay := s.gapFor(a)
		switch {
		case outcome.RateLimit != nil:
			delay = outcome.RateLimit.Wait
			if uerr := s.store.UpdateAgentState(agentID, store.AgentStateRateLimited); uerr != nil {
				slog.Warn("State update failed", "agent", agentID, "error", uerr)
			}
		default:
			if uerr := s.store.UpdateAgentState(agentID, store.AgentStateIdle); uerr != nil {
				slog.Warn("State update failed", "agent", agentID, "error", uerr)
			}
		}

		if s.sleep(ctx, h, delay) == wakePaused {
			s.finish(a, "paused")
			return
		}
	}
}

// runOne executes a single cycle under the concurrency cap. A stop request
// landing while the loop waits for a slot aborts before dispatch; once the
// cycle is running it is never interrupted.
func (s *Scheduler) runOne(ctx context.Context, h *loopHandle, room *store.Room, a *store.Agent) (*agent.Outcome, error) {
	select {
	case s.sem <- struct{}{}:
	case <-h.stop:
		return &agent.Outcome{}, nil
	case <-ctx.Done():
		return &agent.Outcome{}, nil
	}
	defer func() { <-s.sem }()
	return s.pipeline.RunCycle(ctx, room, a)
}

// gapFor returns the configured pause between an agent's cycles.
func (s *Scheduler) gapFor(a *store.Agent) time.Duration {
	if a.CycleGap > 0 {
		return time.Duration(a.CycleGap) * time.Second
	}
	return s.cfg.CycleGap
}

// sleep waits for the duration, a trigger, or a stop request, whichever
// comes first.
func (s *Scheduler) sleep(ctx context.Context, h *loopHandle, d time.Duration) wakeReason {
	if d <= 0 {
		select {
		case <-h.stop:
			return wakePaused
		case <-ctx.Done():
			return wakePaused
		default:
			return wakeElapsed
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.stop:
		return wakePaused
	case <-ctx.Done():
		return wakePaused
	case <-h.trigger:
		return wakeTriggered
	case <-timer.C:
		return wakeElapsed
	}
}

// finish parks the agent in idle and publishes the loop-stopped event.
func (s *Scheduler) finish(a *store.Agent, why string) {
	if err := s.store.UpdateAgentState(a.ID, store.AgentStateIdle); err != nil {
		slog.Warn("State update failed", "agent", a.ID, "error", err)
	}
	slog.Info("Agent loop stopped", "agent", a.ID, "reason", why)
	s.bus.Publish(bus.Event{RoomID: a.RoomID, AgentID: a.ID, Kind: bus.KindLoopStopped, Detail: why})
}
