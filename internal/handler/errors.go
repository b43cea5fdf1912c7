package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/middleware"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/service"
)

// sentinelCodes maps plain service errors to their HTTP status and code.
var sentinelCodes = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrScheduleNotFound, http.StatusNotFound, response.ErrScheduleNotFound},
	{service.ErrScheduleInactive, http.StatusForbidden, response.ErrScheduleInactive},
	{service.ErrNotRegistered, http.StatusForbidden, response.ErrNotRegistered},
	{service.ErrAlreadyCompleted, http.StatusConflict, response.ErrAlreadyCompleted},
	{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrAttemptNotFound},
	{service.ErrAlreadySubmitted, http.StatusBadRequest, response.ErrAlreadySubmitted},
	{service.ErrAttemptNotSubmitted, http.StatusBadRequest, response.ErrAttemptNotGraded},
	{service.ErrNoQuestions, http.StatusNotFound, response.ErrNoQuestions},
	{service.ErrSessionMismatch, http.StatusConflict, response.ErrSessionMismatch},
	{service.ErrParticipantNotFound, http.StatusNotFound, response.ErrParticipantAbsent},
}

// classifyError resolves a service error to its HTTP status, code and details.
// The boolean is false for errors the caller did not cause.
func classifyError(err error) (int, response.ErrCode, any, bool) {
	var early *service.TooEarlyError
	if errors.As(err, &early) {
		return http.StatusForbidden, response.ErrTooEarly, gin.H{
			"minutes_until_start": early.MinutesUntilStart,
			"allowed_at":          early.AllowedAt,
		}, true
	}

	var late *service.TooLateError
	if errors.As(err, &late) {
		return http.StatusForbidden, response.ErrTooLate, gin.H{"ended_at": late.EndedAt}, true
	}

	var soon *service.TooSoonError
	if errors.As(err, &soon) {
		return http.StatusBadRequest, response.ErrTooSoon, gin.H{"remaining_minutes": soon.RemainingMinutes}, true
	}

	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.status, s.code, nil, true
		}
	}
	return http.StatusInternalServerError, response.ErrInternal, nil, false
}

// failWithServiceError writes the response for an error returned by a service.
// Unknown errors are logged and surfaced as 500 with the cause in details.
func failWithServiceError(c *gin.Context, log zerolog.Logger, err error) {
	status, code, details, known := classifyError(err)
	if known {
		if details != nil {
			response.FailWithDetails(c, status, code, details)
		} else {
			response.Fail(c, status, code)
		}
		return
	}

	log.Error().Err(err).
		Str("path", c.FullPath()).
		Str("request_id", response.RequestID(c)).
		Msg("Unhandled service error")
	response.FailWithDetails(c, status, code, err.Error())
}

// pathID parses a positive int64 path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// participantClaims returns the caller's participant id and rejects bodies
// that name someone else.
func participantClaims(c *gin.Context, bodyParticipantID int64) (int64, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, false
	}
	if bodyParticipantID != 0 && bodyParticipantID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return 0, false
	}
	return claims.UserID, true
}
