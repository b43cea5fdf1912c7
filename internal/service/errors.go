package service

import (
	"errors"
	"fmt"
	"time"
)

// Exam session errors.
var (
	ErrScheduleNotFound    = errors.New("exam schedule not found")
	ErrScheduleInactive    = errors.New("exam schedule is not active")
	ErrNotRegistered       = errors.New("participant is not registered for this schedule")
	ErrAlreadyCompleted    = errors.New("participant already completed this exam")
	ErrAlreadySubmitted    = errors.New("attempt is already submitted")
	ErrAttemptNotFound     = errors.New("attempt not found or not in progress")
	ErrAttemptNotSubmitted = errors.New("attempt has not been submitted")
	ErrNoQuestions         = errors.New("question bank has no questions")
	ErrSessionMismatch     = errors.New("attempt is bound to another browser session")
	ErrParticipantNotFound = errors.New("participant not found")
)

// TooEarlyError is returned when an attempt is started before the allowed start.
type TooEarlyError struct {
	MinutesUntilStart int
	AllowedAt         time.Time
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("exam opens in %d minute(s)", e.MinutesUntilStart)
}

// TooLateError is returned when an attempt is started or resumed after the exam ended.
type TooLateError struct {
	EndedAt time.Time
}

func (e *TooLateError) Error() string {
	return "exam has ended at " + e.EndedAt.Format(time.RFC3339)
}

// TooSoonError is returned when a participant submits under the minimum work duration.
type TooSoonError struct {
	RemainingMinutes int
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("need %d more minute(s) before submitting", e.RemainingMinutes)
}
