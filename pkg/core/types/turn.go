package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser        Role = "user"
	RoleInterviewer Role = "interviewer"
)

// ParseRole normalizes a wire role. Backends that speak chat-completion
// vocabulary send "assistant" for the interviewer.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "candidate":
		return RoleUser, nil
	case "interviewer", "assistant", "ai", "bot":
		return RoleInterviewer, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// ChatTurn is one message unit in an interview transcript.
type ChatTurn struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId,omitempty"`
	Text          string `json:"text"`
	Role          Role   `json:"role"`
	IsEnd         bool   `json:"isEnd,omitempty"`
}

// UnmarshalJSON accepts role aliases.
func (t *ChatTurn) UnmarshalJSON(data []byte) error {
	type rawTurn struct {
		SessionID     string `json:"sessionId"`
		ParticipantID string `json:"participantId"`
		Text          string `json:"text"`
		Role          string `json:"role"`
		IsEnd         bool   `json:"isEnd"`
	}
	var raw rawTurn
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	role, err := ParseRole(raw.Role)
	if err != nil {
		return err
	}
	*t = ChatTurn{
		SessionID:     raw.SessionID,
		ParticipantID: raw.ParticipantID,
		Text:          raw.Text,
		Role:          role,
		IsEnd:         raw.IsEnd,
	}
	return nil
}

// IsInterviewer reports whether the turn was produced by the interviewer.
func (t ChatTurn) IsInterviewer() bool {
	return t.Role == RoleInterviewer
}

// Reply is the interviewer's answer to a submitted turn.
type Reply struct {
	Text  string `json:"text"`
	IsEnd bool   `json:"isEnd"`
}

// Turn converts the reply into an interviewer turn for sessionID.
func (r Reply) Turn(sessionID string) ChatTurn {
	return ChatTurn{
		SessionID: sessionID,
		Text:      r.Text,
		Role:      RoleInterviewer,
		IsEnd:     r.IsEnd,
	}
}
