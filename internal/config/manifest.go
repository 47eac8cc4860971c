package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest declares rooms and their agents in a YAML file, so a whole
// workspace can be applied to the store in one command.
type Manifest struct {
	Rooms []RoomManifest `yaml:"rooms"`
}

// RoomManifest declares one room.
type RoomManifest struct {
	Name        string          `yaml:"name"`
	Goal        string          `yaml:"goal"`
	QuietHours  QuietHoursSpec  `yaml:"quietHours"`
	Quorum      QuorumSpec      `yaml:"quorum"`
	MaxAgents   int             `yaml:"maxAgents"`
	Agents      []AgentManifest `yaml:"agents"`
	InitialGoal []GoalManifest  `yaml:"goals"`
}

// QuietHoursSpec is a local time-of-day window in "HH:MM" form.
// An empty From disables quiet hours.
type QuietHoursSpec struct {
	From  string `yaml:"from"`
	Until string `yaml:"until"`
}

// QuorumSpec declares the room's decision configuration.
type QuorumSpec struct {
	Threshold       string   `yaml:"threshold"` // majority | supermajority | unanimous
	TimeoutMinutes  int      `yaml:"timeoutMinutes"`
	AutoApproveKind []string `yaml:"autoApprove"`
}

// AgentManifest declares one agent inside a room.
type AgentManifest struct {
	Name        string `yaml:"name"`
	Role        string `yaml:"role"` // "queen" or "worker"
	Model       string `yaml:"model"`
	CycleGapSec int    `yaml:"cycleGapSeconds"`
	MaxTurns    int    `yaml:"maxTurns"`
}

// GoalManifest declares an initial goal, optionally nested.
type GoalManifest struct {
	Text     string         `yaml:"text"`
	Assigned string         `yaml:"assigned"` // agent name
	Children []GoalManifest `yaml:"children"`
}

// LoadManifest reads and validates a room manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural constraints before any store writes happen.
func (m *Manifest) Validate() error {
	if len(m.Rooms) == 0 {
		return fmt.Errorf("manifest declares no rooms")
	}
	seen := map[string]bool{}
	for _, r := range m.Rooms {
		if r.Name == "" {
			return fmt.Errorf("room with empty name")
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate room name %q", r.Name)
		}
		seen[r.Name] = true
		switch r.Quorum.Threshold {
		case "", "majority", "supermajority", "unanimous":
		default:
			return fmt.Errorf("room %q: unknown quorum threshold %q", r.Name, r.Quorum.Threshold)
		}
		if (r.QuietHours.From == "") != (r.QuietHours.Until == "") {
			return fmt.Errorf("room %q: quietHours needs both from and until", r.Name)
		}
		queens := 0
		agentNames := map[string]bool{}
		for _, a := range r.Agents {
			if a.Name == "" {
				return fmt.Errorf("room %q: agent with empty name", r.Name)
			}
			if agentNames[a.Name] {
				return fmt.Errorf("room %q: duplicate agent name %q", r.Name, a.Name)
			}
			agentNames[a.Name] = true
			if a.Role == "queen" {
				queens++
			}
		}
		if queens > 1 {
			return fmt.Errorf("room %q: more than one queen", r.Name)
		}
	}
	return nil
}
