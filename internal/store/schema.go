package store

import (
	"time"
)

// Room is an isolated workspace containing agents, a goal, and its own
// decision/goal state.
type Room struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"` // active, paused, stopped
	Goal            string    `json:"goal"`
	QuietHoursFrom  string    `json:"quiet_hours_from"`  // "HH:MM", empty = disabled
	QuietHoursUntil string    `json:"quiet_hours_until"` // "HH:MM"
	QuorumThreshold string    `json:"quorum_threshold"`  // majority, supermajority, unanimous
	QuorumTimeout   int       `json:"quorum_timeout_minutes"`
	AutoApprove     string    `json:"auto_approve"` // JSON array of decision kinds
	MaxAgents       int       `json:"max_agents"`
	CreatedAt       time.Time `json:"created_at"`
}

const (
	RoomStatusActive  = "active"
	RoomStatusPaused  = "paused"
	RoomStatusStopped = "stopped"
)

// Agent is a long-lived autonomous actor running repeated cycles.
type Agent struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"` // "queen" or "worker"
	State      string    `json:"state"`
	Model      string    `json:"model"`
	CycleGap   int       `json:"cycle_gap_seconds"`
	MaxTurns   int       `json:"max_turns"`
	Checkpoint string    `json:"checkpoint"` // free-text work-in-progress note
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	AgentStateIdle        = "idle"
	AgentStateThinking    = "thinking"
	AgentStateActing      = "acting"
	AgentStateRateLimited = "rate_limited"
)

// Cycle is one observe-think-act-persist execution attempt by an agent.
type Cycle struct {
	ID               string     `json:"id"`
	AgentID          string     `json:"agent_id"`
	RoomID           string     `json:"room_id"`
	Status           string     `json:"status"` // running, completed, failed
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens"`
	ErrorText        string     `json:"error_text,omitempty"`
}

const (
	CycleStatusRunning   = "running"
	CycleStatusCompleted = "completed"
	CycleStatusFailed    = "failed"
)

// Decision is a room-scoped proposal subject to quorum voting.
type Decision struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"room_id"`
	ProposerID string     `json:"proposer_id"`
	Text       string     `json:"text"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"` // voting, approved, rejected
	Threshold  string     `json:"threshold"`
	Deadline   time.Time  `json:"deadline"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Result     string     `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const (
	DecisionStatusVoting   = "voting"
	DecisionStatusApproved = "approved"
	DecisionStatusRejected = "rejected"
)

// Vote is one agent's vote on one decision. Unique per (decision, agent).
type Vote struct {
	DecisionID string    `json:"decision_id"`
	AgentID    string    `json:"agent_id"`
	Value      string    `json:"value"` // yes, no, abstain
	Reasoning  string    `json:"reasoning,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VoteCounts is the tallied breakdown for one decision.
type VoteCounts struct {
	Yes     int
	No      int
	Abstain int
}

// Total returns all votes cast including abstentions.
func (v VoteCounts) Total() int { return v.Yes + v.No + v.Abstain }

// Goal is a (possibly hierarchical) unit of tracked progress within a room.
type Goal struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"` // assigned agent
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"` // [0,1]; derived for non-leaf goals
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	GoalStatusActive     = "active"
	GoalStatusInProgress = "in_progress"
	GoalStatusCompleted  = "completed"
	GoalStatusAbandoned  = "abandoned"
)

// GoalUpdate is an append-only observation tied to a goal.
type GoalUpdate struct {
	ID           int64     `json:"id"`
	GoalID       string    `json:"goal_id"`
	AgentID      string    `json:"agent_id"`
	Note         string    `json:"note"`
	Contribution *float64  `json:"contribution,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AgentSession carries conversational state across stateless model calls.
// ResumeHandle and History are mutually exclusive, selected by model family.
type AgentSession struct {
	AgentID      string    `json:"agent_id"`
	Family       string    `json:"family"` // "resume" or "history"
	ResumeHandle string    `json:"resume_handle,omitempty"`
	History      string    `json:"history,omitempty"` // JSON list of role/content turns
	Model        string    `json:"model"`
	Turns        int       `json:"turns"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActivityEntry is one row of the append-only room activity log.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomMemory is a durable room-scoped note, keyed for upsert.
type RoomMemory struct {
	RoomID    string    `json:"room_id"`
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	goal TEXT DEFAULT '',
	quiet_hours_from TEXT DEFAULT '',
	quiet_hours_until TEXT DEFAULT '',
	quorum_threshold TEXT NOT NULL DEFAULT 'majority',
	quorum_timeout_minutes INTEGER NOT NULL DEFAULT 60,
	auto_approve TEXT DEFAULT '[]',
	max_agents INTEGER NOT NULL DEFAULT 8,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'worker',
	state TEXT NOT NULL DEFAULT 'idle',
	model TEXT NOT NULL,
	cycle_gap_seconds INTEGER NOT NULL DEFAULT 120,
	max_turns INTEGER NOT NULL DEFAULT 25,
	checkpoint TEXT DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(room_id, name)
);
CREATE INDEX IF NOT EXISTS idx_agents_room ON agents(room_id);

CREATE TABLE IF NOT EXISTS cycles (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	room_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	error_text TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cycles_agent ON cycles(agent_id);
CREATE INDEX IF NOT EXISTS idx_cycles_room ON cycles(room_id);
CREATE INDEX IF NOT EXISTS idx_cycles_status ON cycles(status);

CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	proposer_id TEXT NOT NULL,
	text TEXT NOT NULL,
	kind TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'voting',
	threshold TEXT NOT NULL DEFAULT 'majority',
	deadline DATETIME,
	resolved_at DATETIME,
	result TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_decisions_room ON decisions(room_id);
CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(status);

CREATE TABLE IF NOT EXISTS votes (
	decision_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	value TEXT NOT NULL,
	reasoning TEXT DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (decision_id, agent_id)
);

CREATE TABLE IF NOT EXISTS goals (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	parent_id TEXT,
	agent_id TEXT,
	text TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	progress REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_goals_room ON goals(room_id);
CREATE INDEX IF NOT EXISTS idx_goals_parent ON goals(parent_id);

CREATE TABLE IF NOT EXISTS goal_updates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	goal_id TEXT NOT NULL,
	agent_id TEXT NOT NULL DEFAULT '',
	note TEXT DEFAULT '',
	contribution REAL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_goal_updates_goal ON goal_updates(goal_id);

CREATE TABLE IF NOT EXISTS agent_sessions (
	agent_id TEXT PRIMARY KEY,
	family TEXT NOT NULL,
	resume_handle TEXT DEFAULT '',
	history TEXT DEFAULT '',
	model TEXT NOT NULL,
	turns INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_activity (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	agent_id TEXT DEFAULT '',
	kind TEXT NOT NULL,
	detail TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_activity_room ON room_activity(room_id);
CREATE INDEX IF NOT EXISTS idx_activity_created ON room_activity(created_at);

CREATE TABLE IF NOT EXISTS room_memory (
	room_id TEXT NOT NULL,
	key TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, key)
);
`
