package model

import "time"

// AttemptStatus enumerates exam attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	// AttemptStatusStarted is the legacy spelling of in_progress still present in old rows.
	AttemptStatusStarted   AttemptStatus = "mulai"
	AttemptStatusSubmitted AttemptStatus = "submitted"
)

// IsActive reports whether answers may still be written.
func (s AttemptStatus) IsActive() bool {
	return s == AttemptStatusInProgress || s == AttemptStatusStarted
}

// ExamAttempt is one participant's single try at one schedule (hasil ujian peserta).
type ExamAttempt struct {
	ID             int64         `json:"id"`
	ScheduleID     int64         `json:"schedule_id"`
	ParticipantID  int64         `json:"participant_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Answers        AnswerMap     `json:"answers"`
	QuestionOrder  QuestionOrder `json:"question_order"`
	OptionMapping  OptionMapping `json:"option_mapping,omitempty"`
	AnswerKey      AnswerKey     `json:"-"`
	Score          *int          `json:"score,omitempty"`
	MaxScore       *int          `json:"max_score,omitempty"`
	Status         AttemptStatus `json:"status"`
	ViolationCount int           `json:"violation_count"`
	SessionID      *string       `json:"session_id,omitempty"`
	ClientIP       *string       `json:"client_ip,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ScoreResult is the outcome of grading an attempt.
type ScoreResult struct {
	Score      *int     `json:"score,omitempty"`
	MaxScore   *int     `json:"max_score,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	ShowScore  bool     `json:"show_score"`
}

// NewScoreResult builds a result carrying the numbers.
func NewScoreResult(score, maxScore int, show bool) ScoreResult {
	pct := 0.0
	if maxScore > 0 {
		pct = float64(score) / float64(maxScore) * 100
	}
	return ScoreResult{Score: &score, MaxScore: &maxScore, Percentage: &pct, ShowScore: show}
}

// Redacted drops the numbers unless the schedule shows scores to participants.
func (r ScoreResult) Redacted() ScoreResult {
	if r.ShowScore {
		return r
	}
	return ScoreResult{ShowScore: false}
}

// ExamPaper is what a participant receives on start or resume.
type ExamPaper struct {
	AttemptID       int64                `json:"attempt_id"`
	Schedule        ScheduleSummary      `json:"schedule"`
	Questions       []QuestionForStudent `json:"questions"`
	ExistingAnswers AnswerMap            `json:"existing_answers"`
	StartedAt       time.Time            `json:"started_at"`
	EndsAt          time.Time            `json:"ends_at"`
	RemainingSecs   int64                `json:"remaining_seconds"`
	Resumed         bool                 `json:"resumed"`
}

// ─── Requests ───────────────────────────────────────────────────────

// StartExamRequest is the payload for starting or resuming an attempt.
type StartExamRequest struct {
	ParticipantID int64 `json:"participant_id" binding:"required,min=1"`
}

// SaveProgressRequest is the autosave payload. The answer map replaces the stored one.
type SaveProgressRequest struct {
	ParticipantID int64     `json:"participant_id" binding:"required,min=1"`
	AttemptID     int64     `json:"attempt_id" binding:"required,min=1"`
	Answers       AnswerMap `json:"answers" binding:"omitempty,dive,option_label"`
	SessionID     string    `json:"session_id" binding:"omitempty,max=128"`
}

// SubmitExamRequest is the payload for a participant finishing the exam.
type SubmitExamRequest struct {
	ParticipantID int64     `json:"participant_id" binding:"required,min=1"`
	AttemptID     int64     `json:"attempt_id" binding:"required,min=1"`
	Answers       AnswerMap `json:"answers" binding:"omitempty,dive,option_label"`
	SessionID     string    `json:"session_id" binding:"omitempty,max=128"`
}

// ForceSubmitRequest is the admin payload for closing a stuck attempt.
type ForceSubmitRequest struct {
	AttemptID  int64 `json:"attempt_id" binding:"required,min=1"`
	ScheduleID int64 `json:"schedule_id" binding:"required,min=1"`
}

// RecalculateRequest is the admin payload for rescoring attempts.
type RecalculateRequest struct {
	AttemptIDs     []int64 `json:"attempt_ids" binding:"required,min=1,max=1000,dive,min=1"`
	UpdateSnapshot bool    `json:"update_snapshot"`
}

// RecalculateResult is one row of a recalculation batch.
type RecalculateResult struct {
	AttemptID int64  `json:"attempt_id"`
	Success   bool   `json:"success"`
	Score     *int   `json:"score,omitempty"`
	MaxScore  *int   `json:"max_score,omitempty"`
	Error     string `json:"error,omitempty"`
}
