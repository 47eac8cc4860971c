// Package agent implements the cycle pipeline: one observe-think-act-persist
// execution attempt by one agent, composed from the room's goal, decision,
// activity, and session state.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hiveroom/hiveroom/internal/backoff"
	"github.com/hiveroom/hiveroom/internal/bus"
	"github.com/hiveroom/hiveroom/internal/config"
	"github.com/hiveroom/hiveroom/internal/goal"
	"github.com/hiveroom/hiveroom/internal/provider"
	"github.com/hiveroom/hiveroom/internal/quorum"
	"github.com/hiveroom/hiveroom/internal/session"
	"github.com/hiveroom/hiveroom/internal/store"
)

// Outcome classifies one finished cycle for the scheduler.
type Outcome struct {
	CycleID   string
	Status    string                 // store.CycleStatusCompleted or Failed
	RateLimit *backoff.RateLimitInfo // non-nil when the failure was a rate limit
	ErrorText string
}

// Pipeline composes one cycle end to end.
type Pipeline struct {
	store    *store.Store
	adapter  provider.Adapter
	sessions *session.Manager
	quorum   *quorum.Engine
	goals    *goal.Tree
	bus      *bus.ActivityBus
	builder  *ContextBuilder
	model    config.ModelConfig
}

// NewPipeline creates a cycle pipeline.
func NewPipeline(st *store.Store, adapter provider.Adapter, sessions *session.Manager,
	q *quorum.Engine, goals *goal.Tree, b *bus.ActivityBus, model config.ModelConfig) *Pipeline {
	if model.CallTimeout <= 0 {
		model.CallTimeout = 20 * time.Minute
	}
	return &Pipeline{
		store:    st,
		adapter:  adapter,
		sessions: sessions,
		quorum:   q,
		goals:    goals,
		bus:      b,
		builder:  NewContextBuilder(st, goals),
		model:    model,
	}
}

// RunCycle executes one cycle for one agent. A returned error means the
// store is unreachable (fatal for this agent's loop); every other failure
// is reported through the Outcome and the loop continues.
func (p *Pipeline) RunCycle(ctx context.Context, room *store.Room, agent *store.Agent) (*Outcome, error) {
	cycle, err := p.store.CreateCycle(agent.ID, room.ID)
	if err != nil {
		return nil, fmt.Errorf("create cycle: %w", err)
	}
	p.bus.Publish(bus.Event{RoomID: room.ID, AgentID: agent.ID, Kind: bus.KindCycleStarted})

	// Observe/think: assemble context under the thinking state.
	if err := p.store.UpdateAgentState(agent.ID, store.AgentStateThinking); err != nil {
		return nil, fmt.Errorf("set state: %w", err)
	}

	// Opportunistic expiry sweep so a room never waits a full sweeper tick
	// for an overdue decision.
	if _, err := p.quorum.CheckExpired(); err != nil {
		slog.Warn("Expiry check failed", "room", room.ID, "error", err)
	}

	systemPrompt := p.builder.SystemPrompt(room, agent)
	prompt, err := p.builder.BuildPrompt(room, agent)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	sess, err := p.sessions.Load(agent)
	if err != nil {
		return nil, err
	}
	// A handle reused past the turn ceiling is rotated up front rather than
	// waiting for the provider to reject it.
	if p.sessions.ShouldRotate(sess, "") {
		p.sessions.Rotate(room.ID, agent.ID, sess)
	}
	p.sessions.Compress(ctx, room.ID, agent.ID, sess)

	// Act: dispatch to the model adapter.
	if err := p.store.UpdateAgentState(agent.ID, store.AgentStateActing); err != nil {
		return nil, fmt.Errorf("set state: %w", err)
	}

	executor := &toolExecutor{
		store:   p.store,
		quorum:  p.quorum,
		goals:   p.goals,
		bus:     p.bus,
		roomID:  room.ID,
		agentID: agent.ID,
	}

	res, runErr := p.dispatch(ctx, agent, sess, systemPrompt, prompt, executor)

	// A context-overflow failure rotates the session and retries once in
	// the same cycle with no handle.
	if failed(res, runErr) && p.sessions.ShouldRotate(sess, failureText(res, runErr)) {
		slog.Info("Rotating session after overflow", "agent", agent.ID)
		p.sessions.Rotate(room.ID, agent.ID, sess)
		res, runErr = p.dispatch(ctx, agent, sess, systemPrompt, prompt, executor)
	}

	return p.persist(room, agent, cycle, sess, prompt, res, runErr)
}

func (p *Pipeline) dispatch(ctx context.Context, agent *store.Agent, sess *session.State,
	systemPrompt, prompt string, executor *toolExecutor) (*provider.RunResult, error) {

	timeout := p.model.CallTimeout
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := &provider.RunRequest{
		Model:        agent.Model,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		APIKey:       p.model.APIKey,
		Timeout:      timeout,
		MaxTurns:     agent.MaxTurns,
		Tools:        executor.Definitions(),
		OnToolCall:   executor.Execute,
	}
	switch sess.Family {
	case session.FamilyResume:
		req.ResumeHandle = sess.ResumeHandle
	case session.FamilyHistory:
		req.History = sess.History
	}

	return p.adapter.Run(callCtx, req)
}

// persist interprets the adapter result and applies the cycle's terminal
// mutation plus session/activity bookkeeping.
func (p *Pipeline) persist(room *store.Room, agent *store.Agent, cycle *store.Cycle,
	sess *session.State, prompt string, res *provider.RunResult, runErr error) (*Outcome, error) {

	outcome := &Outcome{CycleID: cycle.ID}

	if !failed(res, runErr) {
		if res.SessionHandle != "" && sess.Family == session.FamilyResume {
			sess.ResumeHandle = res.SessionHandle
		}
		p.sessions.Append(sess, prompt, res.Output)
		if err := p.sessions.Save(agent.ID, sess); err != nil {
			return nil, err
		}

		var usage provider.Usage
		if res.Usage != nil {
			usage = *res.Usage
		}
		if err := p.store.CompleteCycle(cycle.ID, store.CycleStatusCompleted,
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, ""); err != nil {
			return nil, fmt.Errorf("complete cycle: %w", err)
		}
		p.bus.Publish(bus.Event{RoomID: room.ID, AgentID: agent.ID, Kind: bus.KindCycleCompleted,
			Detail: fmt.Sprintf("%d tokens in %dms", usage.TotalTokens, res.DurationMs)})
		outcome.Status = store.CycleStatusCompleted
		return outcome, nil
	}

	errText := failureText(res, runErr)
	outcome.Status = store.CycleStatusFailed
	outcome.ErrorText = errText

	if err := p.store.CompleteCycle(cycle.ID, store.CycleStatusFailed, 0, 0, 0, errText); err != nil {
		return nil, fmt.Errorf("complete cycle: %w", err)
	}

	if info := backoff.Detect(backoff.Result{
		Failed:   true,
		TimedOut: res != nil && res.TimedOut,
		Output:   errText,
	}); info != nil {
		outcome.RateLimit = info
		p.bus.Publish(bus.Event{RoomID: room.ID, AgentID: agent.ID, Kind: bus.KindRateLimited,
			Detail: fmt.Sprintf("backing off %s: %s", info.Wait, info.Matched)})
		return outcome, nil
	}

	p.bus.Publish(bus.Event{RoomID: room.ID, AgentID: agent.ID, Kind: bus.KindCycleFailed, Detail: errText})
	return outcome, nil
}

func failed(res *provider.RunResult, err error) bool {
	if err != nil {
		return true
	}
	return res == nil || res.ExitCode != 0 || res.TimedOut
}

func failureText(res *provider.RunResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if res == nil {
		return "adapter returned no result"
	}
	if res.TimedOut {
		return fmt.Sprintf("model call timed out after %dms", res.DurationMs)
	}
	return fmt.Sprintf("exit code %d: %s", res.ExitCode, res.Output)
}
