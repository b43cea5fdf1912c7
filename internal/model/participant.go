package model

import "time"

// Participant is an exam taker (peserta). Credentials live in the auth service.
type Participant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParticipantStatusRequest enables or disables many participants at once.
type ParticipantStatusRequest struct {
	ParticipantIDs []int64 `json:"participant_ids" binding:"required,min=1,max=1000,dive,min=1"`
	Active         *bool   `json:"active" binding:"required"`
}

// ParticipantStatusResult is one row of a bulk status change.
type ParticipantStatusResult struct {
	ParticipantID   int64  `json:"participant_id"`
	Success         bool   `json:"success"`
	Changed         bool   `json:"changed"`
	ViolationsReset int    `json:"violations_reset"`
	ResetFailures   int    `json:"reset_failures,omitempty"`
	Error           string `json:"error,omitempty"`
}
