package model

import "time"

// RiskLevel is the read-time proctoring classification of an attempt.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ActiveAttempt is the raw row behind a monitoring entry.
type ActiveAttempt struct {
	AttemptID      int64
	ScheduleID     int64
	ScheduleName   string
	Participant    Participant
	StartedAt      time.Time
	Answers        AnswerMap
	QuestionOrder  QuestionOrder
	ViolationCount int
	SessionID      *string
	ClientIP       *string
}

// MonitorEntry is one row of the live monitoring view.
type MonitorEntry struct {
	AttemptID      int64          `json:"attempt_id"`
	ScheduleID     int64          `json:"schedule_id"`
	ScheduleName   string         `json:"schedule_name"`
	Participant    Participant    `json:"participant"`
	Answered       int            `json:"answered"`
	TotalQuestions int            `json:"total_questions"`
	Progress       float64        `json:"progress"`
	ElapsedMinutes int            `json:"elapsed_minutes"`
	ViolationCount int            `json:"violation_count"`
	ActivityCounts ActivityCounts `json:"activity_counts"`
	RiskScore      float64        `json:"risk_score"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	ClientIP       *string        `json:"client_ip,omitempty"`
}

// AttemptActivity is the proctoring timeline of one attempt with its summed
// counts and read-time risk.
type AttemptActivity struct {
	AttemptID int64              `json:"attempt_id"`
	Entries   []ActivityLogEntry `json:"entries"`
	Counts    ActivityCounts     `json:"counts"`
	RiskScore float64            `json:"risk_score"`
	RiskLevel RiskLevel          `json:"risk_level"`
}

// MonitorEvent is published on the monitor channel when an attempt changes.
type MonitorEvent struct {
	Type          string       `json:"type"`
	ScheduleID    int64        `json:"schedule_id"`
	AttemptID     int64        `json:"attempt_id"`
	ParticipantID int64        `json:"participant_id"`
	ActivityType  ActivityType `json:"activity_type,omitempty"`
	Count         int          `json:"count,omitempty"`
	Score         *int         `json:"score,omitempty"`
	MaxScore      *int         `json:"max_score,omitempty"`
	At            time.Time    `json:"at"`
}

// Monitor event types.
const (
	EventAttemptStarted   = "attempt_started"
	EventAttemptSubmitted = "attempt_submitted"
	EventAttemptForced    = "attempt_force_submitted"
	EventActivityLogged   = "activity_logged"
	EventViolationsReset  = "violations_reset"
)
