package handler

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/middleware"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/validator"
	ws "github.com/stemsi/exstem-cbt/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the participant exam stream for clients that keep a socket open.
type WSHandler struct {
	sessions   ExamSessions
	proctoring Proctoring
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions ExamSessions, proctoring Proctoring, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions:   sessions,
		proctoring: proctoring,
		log:        log.With().Str("component", "ws_handler").Logger(),
		upgrader:   buildUpgrader(allowedOrigins),
	}
}

// wsStream is the per-connection state of one exam socket.
type wsStream struct {
	conn          *websocket.Conn
	scheduleID    int64
	attemptID     int64
	participantID int64
	sessionID     string
	log           zerolog.Logger
}

// ExamStream godoc
// WS /ws/v1/exam/:schedule_id/stream?token=&attempt_id=&session_id=
// Binds the socket as the attempt's current session, then serves
// save_progress, log_activity and check_session actions.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	scheduleID, ok := pathID(c, "schedule_id")
	if !ok {
		return
	}
	attemptID, err := strconv.ParseInt(c.Query("attempt_id"), 10, 64)
	if err != nil || attemptID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sessionID := c.Query("session_id")
	if sessionID == "" || len(sessionID) > 128 {
		sessionID = uuid.NewString()
	}

	// Bind before upgrading so ownership errors still get a JSON response.
	bind := model.UpdateSessionRequest{AttemptID: attemptID, SessionID: sessionID}
	if err := h.proctoring.UpdateSession(c.Request.Context(), claims.UserID, bind, c.ClientIP()); err != nil {
		failWithServiceError(c, h.log.With().Int64("attempt_id", attemptID).Logger(), err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s := &wsStream{
		conn:          conn,
		scheduleID:    scheduleID,
		attemptID:     attemptID,
		participantID: claims.UserID,
		sessionID:     sessionID,
		log: h.log.With().
			Int64("participant_id", claims.UserID).
			Int64("attempt_id", attemptID).
			Logger(),
	}
	s.log.Info().Msg("Participant connected")

	ws.WriteTyped(conn, ws.ConnectedResponse{Event: ws.EventConnected, AttemptID: attemptID, SessionID: sessionID})

	ctx := c.Request.Context()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}
		h.dispatch(ctx, s, &msg)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, s *wsStream, msg *ws.RequestEnvelope) {
	switch msg.Action {
	case ws.ActionSaveProgress:
		req := model.SaveProgressRequest{
			ParticipantID: s.participantID,
			AttemptID:     s.attemptID,
			Answers:       msg.Answers,
			SessionID:     s.sessionID,
		}
		if fields := validator.Validate(req); fields != nil {
			writeValidationError(s, fields)
			return
		}
		savedAt, err := h.sessions.SaveProgress(ctx, s.scheduleID, req)
		if err != nil {
			h.writeServiceError(s, err)
			return
		}
		ws.WriteTyped(s.conn, ws.SavedResponse{Event: ws.EventSaved, SavedAt: savedAt})

	case ws.ActionLogActivity:
		req := model.LogActivityRequest{
			AttemptID:     s.attemptID,
			ParticipantID: s.participantID,
			ActivityType:  msg.ActivityType,
			Count:         msg.Count,
			Metadata:      msg.Metadata,
		}
		if fields := validator.Validate(req); fields != nil {
			writeValidationError(s, fields)
			return
		}
		out, err := h.proctoring.LogActivity(ctx, req)
		if err != nil {
			h.writeServiceError(s, err)
			return
		}
		ws.WriteTyped(s.conn, ws.ActivityResponse{
			Event:          ws.EventActivity,
			ViolationCount: out.ViolationCount,
			AutoSubmitted:  out.AutoSubmitted,
		})

	case ws.ActionCheckSession:
		check, err := h.proctoring.CheckSession(ctx, s.participantID, model.CheckSessionRequest{
			AttemptID: s.attemptID,
			SessionID: s.sessionID,
		})
		if err != nil {
			h.writeServiceError(s, err)
			return
		}
		ws.WriteTyped(s.conn, ws.SessionStatusResponse{
			Event:            ws.EventSessionStatus,
			IsValid:          check.IsValid,
			CurrentSessionID: check.CurrentSessionID,
		})

	case ws.ActionPing:
		ws.WriteTyped(s.conn, ws.PongResponse{Event: ws.EventPong})

	default:
		s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		ws.WriteError(s.conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
	}
}

// writeValidationError reports the first failing field in name order.
func writeValidationError(s *wsStream, fields map[string]string) {
	names := slices.Sorted(maps.Keys(fields))
	ws.WriteError(s.conn, string(response.ErrValidation), fields[names[0]])
}

func (h *WSHandler) writeServiceError(s *wsStream, err error) {
	_, code, _, known := classifyError(err)
	if !known {
		s.log.Error().Err(err).Msg("Stream action failed")
	}
	ws.WriteError(s.conn, string(code), response.GetMessage(code))
}
