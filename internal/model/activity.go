package model

import (
	"encoding/json"
	"time"
)

// ActivityType enumerates proctoring events reported by the exam client.
type ActivityType string

const (
	ActivityTabBlur          ActivityType = "TAB_BLUR"
	ActivityDevtools         ActivityType = "ATTEMPTED_DEVTOOLS"
	ActivityScreenshot       ActivityType = "SCREENSHOT_ATTEMPT"
	ActivityRightClick       ActivityType = "RIGHT_CLICK"
	ActivityCopy             ActivityType = "COPY_ATTEMPT"
	ActivityPaste            ActivityType = "PASTE_ATTEMPT"
	ActivitySessionViolation ActivityType = "SESSION_VIOLATION"
	ActivityExitFullscreen   ActivityType = "EXIT_FULLSCREEN"
	ActivityViolationsReset  ActivityType = "VIOLATIONS_RESET"
	ActivityAutoSubmitted    ActivityType = "AUTO_SUBMITTED"
	ActivityExpirySubmitted  ActivityType = "EXPIRY_SUBMITTED"
)

// ActivityLogEntry is an append-only proctoring record.
type ActivityLogEntry struct {
	ID            int64           `json:"id"`
	AttemptID     int64           `json:"attempt_id"`
	ParticipantID int64           `json:"participant_id"`
	Type          ActivityType    `json:"activity_type"`
	Count         int             `json:"count"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ActivityCounts is the SUM(count) per type for one attempt.
type ActivityCounts map[ActivityType]int

// LogActivityRequest is the payload the exam client posts for each event.
type LogActivityRequest struct {
	AttemptID     int64           `json:"attempt_id" binding:"required,min=1"`
	ParticipantID int64           `json:"participant_id" binding:"required,min=1"`
	ActivityType  ActivityType    `json:"activity_type" binding:"required,max=50"`
	Count         *int            `json:"count" binding:"omitempty,min=1"`
	Metadata      json.RawMessage `json:"metadata" binding:"omitempty"`
}

// UpdateSessionRequest binds the attempt to the caller's browser session.
type UpdateSessionRequest struct {
	AttemptID int64  `json:"attempt_id" binding:"required,min=1"`
	SessionID string `json:"session_id" binding:"required,max=128"`
	IP        string `json:"ip" binding:"omitempty,ip"`
}

// CheckSessionRequest asks whether the caller's session still owns the attempt.
type CheckSessionRequest struct {
	AttemptID int64  `json:"attempt_id" binding:"required,min=1"`
	SessionID string `json:"session_id" binding:"required,max=128"`
}

// SessionCheck is the answer to a CheckSessionRequest.
type SessionCheck struct {
	IsValid          bool    `json:"is_valid"`
	CurrentSessionID *string `json:"current_session_id"`
}
