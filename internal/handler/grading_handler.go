package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/validator"
)

// GradingHandler serves the admin scoring endpoints.
type GradingHandler struct {
	grading  Grading
	sessions ExamSessions
	log      zerolog.Logger
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(grading Grading, sessions ExamSessions, log zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading:  grading,
		sessions: sessions,
		log:      log.With().Str("component", "grading_handler").Logger(),
	}
}

// ForceSubmit godoc
// POST /api/v1/admin/exam/force-submit
// Closes a stuck attempt and returns the numbers regardless of show_score.
func (h *GradingHandler) ForceSubmit(c *gin.Context) {
	var req model.ForceSubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.grading.ForceSubmit(c.Request.Context(), req.AttemptID, req.ScheduleID)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("attempt_id", req.AttemptID).Int64("schedule_id", req.ScheduleID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Recalculate godoc
// POST /api/v1/admin/hasil-ujian/recalculate
func (h *GradingHandler) Recalculate(c *gin.Context) {
	var req model.RecalculateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results := h.grading.Recalculate(c.Request.Context(), req.AttemptIDs, req.UpdateSnapshot)

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	h.log.Info().
		Int("total", len(results)).
		Int("failed", failed).
		Bool("update_snapshot", req.UpdateSnapshot).
		Msg("Recalculated attempts")

	response.Success(c, http.StatusOK, gin.H{
		"total_processed": len(results),
		"results":         results,
	})
}

// RefreshCache godoc
// POST /api/v1/admin/exam/:schedule_id/refresh-cache
// Drops the cached question payload so the next start reads the bank again.
func (h *GradingHandler) RefreshCache(c *gin.Context) {
	scheduleID, ok := pathID(c, "schedule_id")
	if !ok {
		return
	}

	if err := h.sessions.InvalidatePayload(c.Request.Context(), scheduleID); err != nil {
		failWithServiceError(c, h.log.With().Int64("schedule_id", scheduleID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Cache soal berhasil diperbarui."})
}
