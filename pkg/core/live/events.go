package live

import "github.com/vango-go/vai-interview/pkg/core/types"

// Event is the interface for all session events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted when the session state changes.
type StateChangedEvent struct {
	From State `json:"from"`
	To   State `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// TranscriptUpdatedEvent carries the transcript after every store change.
type TranscriptUpdatedEvent struct {
	Turns   []types.ChatTurn `json:"turns"`
	Loading bool             `json:"loading"`
	Ended   bool             `json:"ended"`
}

func (e *TranscriptUpdatedEvent) EventType() string { return "transcript.updated" }

// SpeakingChangedEvent is emitted when synthesis status changes.
type SpeakingChangedEvent struct {
	Speaking bool `json:"speaking"`
	Busy     bool `json:"busy"`
	Enabled  bool `json:"enabled"`
}

func (e *SpeakingChangedEvent) EventType() string { return "speech.changed" }

// CaptureChangedEvent is emitted when audio capture state or the live transcript changes.
type CaptureChangedEvent struct {
	IsRecordingAudio bool   `json:"is_recording_audio"`
	IsUserSpeaking   bool   `json:"is_user_speaking"`
	Transcript       string `json:"transcript,omitempty"`
}

func (e *CaptureChangedEvent) EventType() string { return "capture.changed" }

// VideoChangedEvent is emitted when camera state changes.
type VideoChangedEvent struct {
	IsRecordingVideo   bool `json:"is_recording_video"`
	HasPermissionError bool `json:"has_permission_error"`
}

func (e *VideoChangedEvent) EventType() string { return "video.changed" }

// TimerTickEvent is emitted once per counted second.
type TimerTickEvent struct {
	Seconds int `json:"seconds"`
}

func (e *TimerTickEvent) EventType() string { return "timer.tick" }

// SessionEndedEvent is emitted when the end sequence completed.
type SessionEndedEvent struct {
	SessionID      string  `json:"session_id"`
	Trigger        Trigger `json:"trigger"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
}

func (e *SessionEndedEvent) EventType() string { return "session.ended" }

// SessionClosedEvent is emitted on teardown.
type SessionClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *SessionClosedEvent) EventType() string { return "session.closed" }

// ErrorEvent is emitted alongside user-facing notifications.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorEvent) EventType() string { return "error" }
