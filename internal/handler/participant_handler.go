package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/validator"
)

// ParticipantHandler handles participant account administration.
type ParticipantHandler struct {
	participants Participants
	log          zerolog.Logger
}

// NewParticipantHandler creates a new ParticipantHandler.
func NewParticipantHandler(participants Participants, log zerolog.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		participants: participants,
		log:          log.With().Str("component", "participant_handler").Logger(),
	}
}

// SetStatus godoc
// POST /api/v1/admin/participants/status
// Enables or disables participants. Re-enabling may reset violation counters.
func (h *ParticipantHandler) SetStatus(c *gin.Context) {
	var req model.ParticipantStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results := h.participants.SetStatus(c.Request.Context(), req.ParticipantIDs, *req.Active)

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	h.log.Info().
		Int("total", len(results)).
		Int("failed", failed).
		Bool("active", *req.Active).
		Msg("Participant status updated")

	response.Success(c, http.StatusOK, gin.H{
		"total_processed": len(results),
		"results":         results,
	})
}
