// Package config provides configuration types and loading for hiveroom.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Loop, Session, Activity, Notify.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Model    ModelConfig    `json:"model"`
	Loop     LoopConfig     `json:"loop"`
	Session  SessionConfig  `json:"session"`
	Activity ActivityConfig `json:"activity"`
	Notify   NotifyConfig   `json:"notify"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBFile  string `json:"dbFile" envconfig:"DB_FILE"`
}

// ---------------------------------------------------------------------------
// Model – LLM adapter behaviour
// ---------------------------------------------------------------------------

// ModelConfig groups model adapter settings.
type ModelConfig struct {
	Name        string        `json:"name" envconfig:"MODEL"`
	APIKey      string        `json:"apiKey" envconfig:"API_KEY"`
	APIBase     string        `json:"apiBase" envconfig:"API_BASE"`
	CLIBinary   string        `json:"cliBinary" envconfig:"CLI_BINARY"`
	CallTimeout time.Duration `json:"callTimeout" envconfig:"CALL_TIMEOUT"`
	MaxTurns    int           `json:"maxTurns" envconfig:"MAX_TURNS"`
}

// ---------------------------------------------------------------------------
// Loop – agent scheduling behaviour
// ---------------------------------------------------------------------------

// LoopConfig groups agent loop scheduler settings.
type LoopConfig struct {
	CycleGap       time.Duration `json:"cycleGap" envconfig:"CYCLE_GAP"`
	DefaultBackoff time.Duration `json:"defaultBackoff" envconfig:"DEFAULT_BACKOFF"`
	ExpirySweep    time.Duration `json:"expirySweep" envconfig:"EXPIRY_SWEEP"`
	MaxConcurrent  int           `json:"maxConcurrent" envconfig:"MAX_CONCURRENT"`
}

// ---------------------------------------------------------------------------
// Session – conversation continuity
// ---------------------------------------------------------------------------

// SessionConfig groups session continuity and compression settings.
type SessionConfig struct {
	MaxAge          time.Duration `json:"maxAge" envconfig:"SESSION_MAX_AGE"`
	TurnCeiling     int           `json:"turnCeiling" envconfig:"SESSION_TURN_CEILING"`
	CompressAt      int           `json:"compressAt" envconfig:"SESSION_COMPRESS_AT"`
	TruncateKeep    int           `json:"truncateKeep" envconfig:"SESSION_TRUNCATE_KEEP"`
	SummarizerModel string        `json:"summarizerModel" envconfig:"SESSION_SUMMARIZER_MODEL"`
}

// ---------------------------------------------------------------------------
// Activity – event sink mirrors
// ---------------------------------------------------------------------------

// ActivityConfig groups the optional Kafka activity mirror settings.
type ActivityConfig struct {
	KafkaEnabled bool   `json:"kafkaEnabled" envconfig:"ACTIVITY_KAFKA_ENABLED"`
	KafkaBrokers string `json:"kafkaBrokers" envconfig:"ACTIVITY_KAFKA_BROKERS"`
	KafkaTopic   string `json:"kafkaTopic" envconfig:"ACTIVITY_KAFKA_TOPIC"`
}

// NotifyConfig groups the optional Slack notifier settings.
type NotifyConfig struct {
	SlackEnabled bool   `json:"slackEnabled" envconfig:"NOTIFY_SLACK_ENABLED"`
	SlackToken   string `json:"slackToken" envconfig:"NOTIFY_SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"NOTIFY_SLACK_CHANNEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.hiveroom",
			DBFile:  "hiveroom.db",
		},
		Model: ModelConfig{
			Name:        "anthropic/claude-sonnet-4-5",
			CallTimeout: 20 * time.Minute,
			MaxTurns:    25,
		},
		Loop: LoopConfig{
			CycleGap:       2 * time.Minute,
			DefaultBackoff: 5 * time.Minute,
			ExpirySweep:    time.Minute,
			MaxConcurrent:  8,
		},
		Session: SessionConfig{
			MaxAge:       7 * 24 * time.Hour,
			TurnCeiling:  50,
			CompressAt:   30,
			TruncateKeep: 10,
		},
		Activity: ActivityConfig{
			KafkaTopic: "hiveroom.activity",
		},
	}
}
