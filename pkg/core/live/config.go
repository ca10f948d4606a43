package live

import (
	"fmt"
	"time"
)

// State is the session lifecycle state.
type State int

const (
	// StateInitializing is the state before Start completes.
	StateInitializing State = iota
	// StateActive is when the user may answer.
	StateActive
	// StateEnding is while the end sequence runs.
	StateEnding
	// StateEnded is after every end-of-session call succeeded.
	StateEnded
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateActive:
		return "ACTIVE"
	case StateEnding:
		return "ENDING"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Trigger identifies what started the end sequence.
type Trigger string

const (
	// TriggerUser is an explicit, confirmed user request.
	TriggerUser Trigger = "user"
	// TriggerAuto is the interviewer's end-of-conversation signal.
	TriggerAuto Trigger = "auto"
)

// Config holds the configuration of one session.
type Config struct {
	// SessionID identifies the interview. Required.
	SessionID string `json:"session_id" yaml:"session_id"`

	// GraceDelay lets trailing speech finish before the automatic end fires.
	// Default: 1.5s.
	GraceDelay time.Duration `json:"grace_delay" yaml:"grace_delay"`

	// EventBuffer is the capacity of the Events channel. Default: 100.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer"`

	// StartCamera opens the camera on Start. Default: true.
	StartCamera bool `json:"start_camera" yaml:"start_camera"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(sessionID string) Config {
	return Config{
		SessionID:   sessionID,
		GraceDelay:  1500 * time.Millisecond,
		EventBuffer: 100,
		StartCamera: true,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if c.GraceDelay < 0 {
		return fmt.Errorf("grace delay must be >= 0")
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("event buffer must be >= 0")
	}
	return nil
}
