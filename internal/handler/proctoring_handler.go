package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/validator"
)

// ProctoringHandler receives client activity events and session heartbeats.
type ProctoringHandler struct {
	proctoring Proctoring
	log        zerolog.Logger
}

// NewProctoringHandler creates a new ProctoringHandler.
func NewProctoringHandler(proctoring Proctoring, log zerolog.Logger) *ProctoringHandler {
	return &ProctoringHandler{
		proctoring: proctoring,
		log:        log.With().Str("component", "proctoring_handler").Logger(),
	}
}

// LogActivity godoc
// POST /api/v1/proctoring/log-activity
func (h *ProctoringHandler) LogActivity(c *gin.Context) {
	var req model.LogActivityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if _, ok := participantClaims(c, req.ParticipantID); !ok {
		return
	}

	out, err := h.proctoring.LogActivity(c.Request.Context(), req)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("attempt_id", req.AttemptID).Str("activity_type", string(req.ActivityType)).Logger(), err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"violation_count": out.ViolationCount,
		"auto_submitted":  out.AutoSubmitted,
	})
}

// UpdateSession godoc
// POST /api/v1/proctoring/update-session
// Binds the attempt to the caller's tab. The latest caller wins.
func (h *ProctoringHandler) UpdateSession(c *gin.Context) {
	var req model.UpdateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	participantID, ok := participantClaims(c, 0)
	if !ok {
		return
	}

	if err := h.proctoring.UpdateSession(c.Request.Context(), participantID, req, c.ClientIP()); err != nil {
		failWithServiceError(c, h.log.With().Int64("attempt_id", req.AttemptID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"success": true})
}

// CheckSession godoc
// POST /api/v1/proctoring/check-session
func (h *ProctoringHandler) CheckSession(c *gin.Context) {
	var req model.CheckSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	participantID, ok := participantClaims(c, 0)
	if !ok {
		return
	}

	check, err := h.proctoring.CheckSession(c.Request.Context(), participantID, req)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("attempt_id", req.AttemptID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, check)
}
