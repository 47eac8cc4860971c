// Package store implements the SQLite-backed persistent store for rooms,
// agents, cycles, decisions, votes, goals, sessions, and the activity log.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the single source of truth for all orchestration state.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for existing dbs (no-op if column exists).
	_, _ = db.Exec(`ALTER TABLE agents ADD COLUMN checkpoint TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE rooms ADD COLUMN max_agents INTEGER NOT NULL DEFAULT 8`)
	_, _ = db.Exec(`ALTER TABLE decisions ADD COLUMN result TEXT DEFAULT ''`)

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for one-off queries (CLI status views).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// --- Rooms ---

// CreateRoom inserts a room and returns it with a generated id.
func (s *Store) CreateRoom(r *Room) (*Room, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = RoomStatusActive
	}
	if r.QuorumThreshold == "" {
		r.QuorumThreshold = "majority"
	}
	if r.QuorumTimeout <= 0 {
		r.QuorumTimeout = 60
	}
	if r.AutoApprove == "" {
		r.AutoApprove = "[]"
	}
	if r.MaxAgents <= 0 {
		r.MaxAgents = 8
	}
	_, err := s.db.Exec(`INSERT INTO rooms
		(id, name, status, goal, quiet_hours_from, quiet_hours_until,
		 quorum_threshold, quorum_timeout_minutes, auto_approve, max_agents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Status, r.Goal, r.QuietHoursFrom, r.QuietHoursUntil,
		r.QuorumThreshold, r.QuorumTimeout, r.AutoApprove, r.MaxAgents)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return s.GetRoom(r.ID)
}

func (s *Store) scanRoom(row *sql.Row) (*Room, error) {
	var r Room
	err := row.Scan(&r.ID, &r.Name, &r.Status, &r.Goal,
		&r.QuietHoursFrom, &r.QuietHoursUntil,
		&r.QuorumThreshold, &r.QuorumTimeout, &r.AutoApprove,
		&r.MaxAgents, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const roomCols = `id, name, status, COALESCE(goal,''),
	COALESCE(quiet_hours_from,''), COALESCE(quiet_hours_until,''),
	quorum_threshold, quorum_timeout_minutes, COALESCE(auto_approve,'[]'),
	max_agents, created_at`

// GetRoom returns a room by id, or nil when absent.
func (s *Store) GetRoom(id string) (*Room, error) {
	return s.scanRoom(s.db.QueryRow(`SELECT `+roomCols+` FROM rooms WHERE id = ?`, id))
}

// GetRoomByName returns a room by its unique name, or nil when absent.
func (s *Store) GetRoomByName(name string) (*Room, error) {
	return s.scanRoom(s.db.QueryRow(`SELECT `+roomCols+` FROM rooms WHERE name = ?`, name))
}

// ListRooms returns all rooms ordered by creation.
func (s *Store) ListRooms() ([]Room, error) {
	rows, err := s.db.Query(`SELECT ` + roomCols + ` FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Status, &r.Goal,
			&r.QuietHoursFrom, &r.QuietHoursUntil,
			&r.QuorumThreshold, &r.QuorumTimeout, &r.AutoApprove,
			&r.MaxAgents, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRoomStatus sets the room status.
func (s *Store) UpdateRoomStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE rooms SET status = ? WHERE id = ?`, status, id)
	return err
}

// --- Agents ---

// CreateAgent inserts an agent and returns it with a generated id.
func (s *Store) CreateAgent(a *Agent) (*Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.State == "" {
		a.State = AgentStateIdle
	}
	if a.Role == "" {
		a.Role = "worker"
	}
	if a.CycleGap <= 0 {
		a.CycleGap = 120
	}
	if a.MaxTurns <= 0 {
		a.MaxTurns = 25
	}
	_, err := s.db.Exec(`INSERT INTO agents
		(id, room_id, name, role, state, model, cycle_gap_seconds, max_turns, checkpoint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RoomID, a.Name, a.Role, a.State, a.Model, a.CycleGap, a.MaxTurns, a.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return s.GetAgent(a.ID)
}

const agentCols = `id, room_id, name, role, state, model,
	cycle_gap_seconds, max_turns, COALESCE(checkpoint,''), updated_at`

// GetAgent returns an agent by id, or nil when absent.
func (s *Store) GetAgent(id string) (*Agent, error) {
	var a Agent
	err := s.db.QueryRow(`SELECT `+agentCols+` FROM agents WHERE id = ?`, id).
		Scan(&a.ID, &a.RoomID, &a.Name, &a.Role, &a.State, &a.Model,
			&a.CycleGap, &a.MaxTurns, &a.Checkpoint, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListRoomAgents returns the agents of one room.
func (s *Store) ListRoomAgents(roomID string) ([]Agent, error) {
	rows, err := s.db.Query(`SELECT `+agentCols+` FROM agents WHERE room_id = ? ORDER BY name`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.RoomID, &a.Name, &a.Role, &a.State, &a.Model,
			&a.CycleGap, &a.MaxTurns, &a.Checkpoint, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountRoomAgents returns the number of agents in a room.
func (s *Store) CountRoomAgents(roomID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM agents WHERE room_id = ?`, roomID).Scan(&n)
	return n, err
}

// UpdateAgentState sets the agent's behavioural state.
func (s *Store) UpdateAgentState(id, state string) error {
	_, err := s.db.Exec(`UPDATE agents SET state = ?, updated_at = datetime('now') WHERE id = ?`, state, id)
	return err
}

// UpdateAgentCheckpoint persists the agent's work-in-progress note.
func (s *Store) UpdateAgentCheckpoint(id, checkpoint string) error {
	_, err := s.db.Exec(`UPDATE agents SET checkpoint = ?, updated_at = datetime('now') WHERE id = ?`, checkpoint, id)
	return err
}

// --- Cycles ---

// CreateCycle inserts a running cycle row.
func (s *Store) CreateCycle(agentID, roomID string) (*Cycle, error) {
	c := &Cycle{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		RoomID:    roomID,
		Status:    CycleStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`INSERT INTO cycles (id, agent_id, room_id, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.AgentID, c.RoomID, c.Status, c.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create cycle: %w", err)
	}
	return c, nil
}

// CompleteCycle applies the single terminal mutation a cycle row receives.
func (s *Store) CompleteCycle(id, status string, promptTokens, completionTokens, totalTokens int, errorText string) error {
	_, err := s.db.Exec(`UPDATE cycles SET
		status = ?, finished_at = datetime('now'),
		prompt_tokens = ?, completion_tokens = ?, total_tokens = ?, error_text = ?
		WHERE id = ? AND status = 'running'`,
		status, promptTokens, completionTokens, totalTokens, errorText, id)
	return err
}

// ListRecentCycles returns the newest cycles for an agent.
func (s *Store) ListRecentCycles(agentID string, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT id, agent_id, room_id, status, started_at, finished_at,
		prompt_tokens, completion_tokens, total_tokens, COALESCE(error_text,'')
		FROM cycles WHERE agent_id = ? ORDER BY started_at DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		var c Cycle
		var finished sql.NullTime
		if err := rows.Scan(&c.ID, &c.AgentID, &c.RoomID, &c.Status, &c.StartedAt, &finished,
			&c.PromptTokens, &c.CompletionTokens, &c.TotalTokens, &c.ErrorText); err != nil {
			return nil, err
		}
		if finished.Valid {
			c.FinishedAt = &finished.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Decisions & Votes ---

// CreateDecision inserts a decision and returns it with a generated id.
func (s *Store) CreateDecision(d *Decision) (*Decision, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = DecisionStatusVoting
	}
	_, err := s.db.Exec(`INSERT INTO decisions
		(id, room_id, proposer_id, text, kind, status, threshold, deadline, resolved_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RoomID, d.ProposerID, d.Text, d.Kind, d.Status, d.Threshold,
		d.Deadline, d.ResolvedAt, d.Result)
	if err != nil {
		return nil, fmt.Errorf("create decision: %w", err)
	}
	return s.GetDecision(d.ID)
}

const decisionCols = `id, room_id, proposer_id, text, COALESCE(kind,''),
	status, threshold, deadline, resolved_at, COALESCE(result,''), created_at`

func scanDecision(scan func(dest ...any) error) (*Decision, error) {
	var d Decision
	var deadline, resolved sql.NullTime
	err := scan(&d.ID, &d.RoomID, &d.ProposerID, &d.Text, &d.Kind,
		&d.Status, &d.Threshold, &deadline, &resolved, &d.Result, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		d.Deadline = deadline.Time
	}
	if resolved.Valid {
		d.ResolvedAt = &resolved.Time
	}
	return &d, nil
}

// GetDecision returns a decision by id, or nil when absent.
func (s *Store) GetDecision(id string) (*Decision, error) {
	row := s.db.QueryRow(`SELECT `+decisionCols+` FROM decisions WHERE id = ?`, id)
	d, err := scanDecision(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// ListDecisions returns a room's decisions, optionally filtered by status.
func (s *Store) ListDecisions(roomID, status string, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + decisionCols + ` FROM decisions WHERE room_id = ?`
	args := []any{roomID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListExpiredDecisions returns voting decisions whose deadline has passed.
func (s *Store) ListExpiredDecisions() ([]Decision, error) {
	rows, err := s.db.Query(`SELECT ` + decisionCols + ` FROM decisions
		WHERE status = 'voting' AND deadline IS NOT NULL AND deadline < datetime('now')
		ORDER BY deadline ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ResolveDecision atomically moves a decision out of voting. Returns false
// when the decision was already resolved, making resolution idempotent.
func (s *Store) ResolveDecision(id, status, result string) (bool, error) {
	res, err := s.db.Exec(`UPDATE decisions SET
		status = ?, result = ?, resolved_at = datetime('now')
		WHERE id = ? AND status = 'voting'`,
		status, result, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertVote records one vote per (decision, agent), replacing any earlier one.
func (s *Store) UpsertVote(v *Vote) error {
	_, err := s.db.Exec(`INSERT INTO votes (decision_id, agent_id, value, reasoning, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(decision_id, agent_id) DO UPDATE SET
			value = excluded.value,
			reasoning = excluded.reasoning,
			updated_at = excluded.updated_at`,
		v.DecisionID, v.AgentID, v.Value, v.Reasoning)
	return err
}

// CountVotes tallies the votes cast on one decision.
func (s *Store) CountVotes(decisionID string) (VoteCounts, error) {
	var c VoteCounts
	rows, err := s.db.Query(`SELECT value, COUNT(*) FROM votes WHERE decision_id = ? GROUP BY value`, decisionID)
	if err != nil {
		return c, err
	}
	defer rows.Close()

	for rows.Next() {
		var value string
		var n int
		if err := rows.Scan(&value, &n); err != nil {
			return c, err
		}
		switch value {
		case "yes":
			c.Yes = n
		case "no":
			c.No = n
		case "abstain":
			c.Abstain = n
		}
	}
	return c, rows.Err()
}

// ListVotes returns all votes on one decision.
func (s *Store) ListVotes(decisionID string) ([]Vote, error) {
	rows, err := s.db.Query(`SELECT decision_id, agent_id, value, COALESCE(reasoning,''), updated_at
		FROM votes WHERE decision_id = ? ORDER BY updated_at`, decisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.DecisionID, &v.AgentID, &v.Value, &v.Reasoning, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- Goals ---

// CreateGoal inserts a goal and returns it with a generated id.
func (s *Store) CreateGoal(g *Goal) (*Goal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = GoalStatusActive
	}
	_, err := s.db.Exec(`INSERT INTO goals (id, room_id, parent_id, agent_id, text, status, progress)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)`,
		g.ID, g.RoomID, g.ParentID, g.AgentID, g.Text, g.Status, g.Progress)
	if err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return s.GetGoal(g.ID)
}

const goalCols = `id, room_id, COALESCE(parent_id,''), COALESCE(agent_id,''),
	text, status, progress, created_at, updated_at`

// GetGoal returns a goal by id, or nil when absent.
func (s *Store) GetGoal(id string) (*Goal, error) {
	var g Goal
	err := s.db.QueryRow(`SELECT `+goalCols+` FROM goals WHERE id = ?`, id).
		Scan(&g.ID, &g.RoomID, &g.ParentID, &g.AgentID,
			&g.Text, &g.Status, &g.Progress, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) queryGoals(query string, args ...any) ([]Goal, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.RoomID, &g.ParentID, &g.AgentID,
			&g.Text, &g.Status, &g.Progress, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListRoomGoals returns all goals of one room.
func (s *Store) ListRoomGoals(roomID string) ([]Goal, error) {
	return s.queryGoals(`SELECT `+goalCols+` FROM goals WHERE room_id = ? ORDER BY created_at`, roomID)
}

// ListChildGoals returns the direct children of one goal.
func (s *Store) ListChildGoals(parentID string) ([]Goal, error) {
	return s.queryGoals(`SELECT `+goalCols+` FROM goals WHERE parent_id = ? ORDER BY created_at`, parentID)
}

// UpdateGoalProgress sets progress (and optionally status) on one goal.
func (s *Store) UpdateGoalProgress(id string, progress float64, status string) error {
	if status == "" {
		_, err := s.db.Exec(`UPDATE goals SET progress = ?, updated_at = datetime('now') WHERE id = ?`, progress, id)
		return err
	}
	_, err := s.db.Exec(`UPDATE goals SET progress = ?, status = ?, updated_at = datetime('now') WHERE id = ?`,
		progress, status, id)
	return err
}

// UpdateGoalStatus sets the goal status only.
func (s *Store) UpdateGoalStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE goals SET status = ?, updated_at = datetime('now') WHERE id = ?`, status, id)
	return err
}

// InsertGoalUpdate appends a goal observation.
func (s *Store) InsertGoalUpdate(u *GoalUpdate) error {
	_, err := s.db.Exec(`INSERT INTO goal_updates (goal_id, agent_id, note, contribution)
		VALUES (?, ?, ?, ?)`,
		u.GoalID, u.AgentID, u.Note, u.Contribution)
	return err
}

// ListGoalUpdates returns the newest observations for one goal.
func (s *Store) ListGoalUpdates(goalID string, limit int) ([]GoalUpdate, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT id, goal_id, agent_id, COALESCE(note,''), contribution, created_at
		FROM goal_updates WHERE goal_id = ? ORDER BY created_at DESC LIMIT ?`, goalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GoalUpdate
	for rows.Next() {
		var u GoalUpdate
		var contribution sql.NullFloat64
		if err := rows.Scan(&u.ID, &u.GoalID, &u.AgentID, &u.Note, &contribution, &u.CreatedAt); err != nil {
			return nil, err
		}
		if contribution.Valid {
			v := contribution.Float64
			u.Contribution = &v
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- Agent sessions ---

// GetAgentSession returns the session row for an agent, or nil when absent.
func (s *Store) GetAgentSession(agentID string) (*AgentSession, error) {
	var sess AgentSession
	err := s.db.QueryRow(`SELECT agent_id, family, COALESCE(resume_handle,''),
		COALESCE(history,''), model, turns, updated_at
		FROM agent_sessions WHERE agent_id = ?`, agentID).
		Scan(&sess.AgentID, &sess.Family, &sess.ResumeHandle,
			&sess.History, &sess.Model, &sess.Turns, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// SaveAgentSession upserts the one session row an agent owns.
func (s *Store) SaveAgentSession(sess *AgentSession) error {
	_, err := s.db.Exec(`INSERT INTO agent_sessions
		(agent_id, family, resume_handle, history, model, turns, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(agent_id) DO UPDATE SET
			family = excluded.family,
			resume_handle = excluded.resume_handle,
			history = excluded.history,
			model = excluded.model,
			turns = excluded.turns,
			updated_at = excluded.updated_at`,
		sess.AgentID, sess.Family, sess.ResumeHandle, sess.History, sess.Model, sess.Turns)
	return err
}

// DeleteAgentSession discards an agent's session outright.
func (s *Store) DeleteAgentSession(agentID string) error {
	_, err := s.db.Exec(`DELETE FROM agent_sessions WHERE agent_id = ?`, agentID)
	return err
}

// --- Activity log ---

// AppendActivity adds one row to the append-only room activity log.
func (s *Store) AppendActivity(e *ActivityEntry) error {
	_, err := s.db.Exec(`INSERT INTO room_activity (room_id, agent_id, kind, detail)
		VALUES (?, ?, ?, ?)`,
		e.RoomID, e.AgentID, e.Kind, e.Detail)
	return err
}

// ListActivity returns the newest activity entries for one room.
func (s *Store) ListActivity(roomID string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id, room_id, COALESCE(agent_id,''), kind, COALESCE(detail,''), created_at
		FROM room_activity WHERE room_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.RoomID, &e.AgentID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Room memory ---

// UpsertRoomMemory writes a durable room-scoped note.
func (s *Store) UpsertRoomMemory(m *RoomMemory) error {
	_, err := s.db.Exec(`INSERT INTO room_memory (room_id, key, content, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(room_id, key) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at`,
		m.RoomID, m.Key, m.Content)
	return err
}

// ListRoomMemory returns all durable notes for one room.
func (s *Store) ListRoomMemory(roomID string) ([]RoomMemory, error) {
	rows, err := s.db.Query(`SELECT room_id, key, content, updated_at
		FROM room_memory WHERE room_id = ? ORDER BY key`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoomMemory
	for rows.Next() {
		var m RoomMemory
		if err := rows.Scan(&m.RoomID, &m.Key, &m.Content, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
