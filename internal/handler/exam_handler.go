package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/validator"
)

// ExamHandler serves the participant exam session endpoints.
type ExamHandler struct {
	sessions ExamSessions
	log      zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessions ExamSessions, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		sessions: sessions,
		log:      log.With().Str("component", "exam_handler").Logger(),
	}
}

// StartExam godoc
// POST /api/v1/exam/:schedule_id/start
// Creates the attempt on first call and resumes it afterwards.
func (h *ExamHandler) StartExam(c *gin.Context) {
	scheduleID, ok := pathID(c, "schedule_id")
	if !ok {
		return
	}

	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	participantID, ok := participantClaims(c, req.ParticipantID)
	if !ok {
		return
	}

	paper, err := h.sessions.Start(c.Request.Context(), scheduleID, participantID)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("schedule_id", scheduleID).Int64("participant_id", participantID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// GetExamState godoc
// GET /api/v1/exam/:schedule_id/state
// Returns the resume payload after a page reload without creating anything.
func (h *ExamHandler) GetExamState(c *gin.Context) {
	scheduleID, ok := pathID(c, "schedule_id")
	if !ok {
		return
	}

	participantID, ok := participantClaims(c, 0)
	if !ok {
		return
	}

	paper, err := h.sessions.State(c.Request.Context(), scheduleID, participantID)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("schedule_id", scheduleID).Int64("participant_id", participantID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// SaveProgress godoc
// POST /api/v1/exam/:schedule_id/save-progress
func (h *ExamHandler) SaveProgress(c *gin.Context) {
	scheduleID, ok := pathID(c, "schedule_id")
	if !ok {
		return
	}

	var req model.SaveProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if _, ok := participantClaims(c, req.ParticipantID); !ok {
		return
	}

	savedAt, err := h.sessions.SaveProgress(c.Request.Context(), scheduleID, req)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("attempt_id", req.AttemptID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved_at": savedAt})
}

// SubmitExam godoc
// POST /api/v1/exam/:schedule_id/submit
// Grades and closes the attempt. Score fields are omitted when the schedule hides scores.
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	scheduleID, ok := pathID(c, "schedule_id")
	if !ok {
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if _, ok := participantClaims(c, req.ParticipantID); !ok {
		return
	}

	result, err := h.sessions.Submit(c.Request.Context(), scheduleID, req)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("attempt_id", req.AttemptID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
