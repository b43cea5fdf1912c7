package websocket

import (
	"encoding/json"
	"time"

	"github.com/stemsi/exstem-cbt/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSaveProgress Action = "save_progress"
	ActionLogActivity  Action = "log_activity"
	ActionCheckSession Action = "check_session"
	ActionPing         Action = "ping"
)

// RequestEnvelope carries every client message. Fields unused by an action stay empty.
type RequestEnvelope struct {
	Action       Action             `json:"action"`
	Answers      model.AnswerMap    `json:"answers,omitempty"`
	ActivityType model.ActivityType `json:"activity_type,omitempty"`
	Count        *int               `json:"count,omitempty"`
	Metadata     json.RawMessage    `json:"metadata,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventConnected     Event = "connected"
	EventSaved         Event = "saved"
	EventActivity      Event = "activity_logged"
	EventSessionStatus Event = "session_status"
	EventError         Event = "error"
	EventPong          Event = "pong"
)

// ConnectedResponse tells the client which session id this socket is bound to.
type ConnectedResponse struct {
	Event     Event  `json:"event"`
	AttemptID int64  `json:"attempt_id"`
	SessionID string `json:"session_id"`
}

type SavedResponse struct {
	Event   Event     `json:"event"`
	SavedAt time.Time `json:"saved_at"`
}

type ActivityResponse struct {
	Event          Event `json:"event"`
	ViolationCount int   `json:"violation_count"`
	AutoSubmitted  bool  `json:"auto_submitted"`
}

type SessionStatusResponse struct {
	Event            Event   `json:"event"`
	IsValid          bool    `json:"is_valid"`
	CurrentSessionID *string `json:"current_session_id"`
}

type ErrorResponse struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
