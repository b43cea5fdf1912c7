package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler serves the live proctoring views.
type MonitorHandler struct {
	rdb     *redis.Client
	monitor Monitoring
	log     zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, monitor Monitoring, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:     rdb,
		monitor: monitor,
		log:     log.With().Str("component", "monitor_handler").Logger(),
	}
}

// ActiveExams godoc
// GET /api/v1/admin/monitoring/active-exams?schedule_id=
// Lists in-progress attempts with progress and risk level.
func (h *MonitorHandler) ActiveExams(c *gin.Context) {
	scheduleID, ok := scheduleFilter(c)
	if !ok {
		return
	}

	entries, err := h.monitor.ActiveExams(c.Request.Context(), scheduleID)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("schedule_id", scheduleID).Logger(), err)
		return
	}
	if entries == nil {
		entries = []model.MonitorEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": entries, "total": len(entries)})
}

// AttemptActivity godoc
// GET /api/v1/admin/monitoring/attempts/:attempt_id/activity
func (h *MonitorHandler) AttemptActivity(c *gin.Context) {
	attemptID, ok := pathID(c, "attempt_id")
	if !ok {
		return
	}

	timeline, err := h.monitor.AttemptActivity(c.Request.Context(), attemptID)
	if err != nil {
		failWithServiceError(c, h.log.With().Int64("attempt_id", attemptID).Logger(), err)
		return
	}

	response.Success(c, http.StatusOK, timeline)
}

// MonitorStream godoc
// GET /api/v1/admin/monitoring/stream?schedule_id=
// SSE feed of attempt events with a periodic active-exam refresh.
func (h *MonitorHandler) MonitorStream(c *gin.Context) {
	scheduleID, ok := scheduleFilter(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	channel := config.CacheKey.AllMonitorChannel()
	if scheduleID > 0 {
		channel = config.CacheKey.ScheduleMonitorChannel(scheduleID)
	}

	pubsub := h.rdb.Subscribe(reqCtx, channel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	streamLog := h.log.With().Int64("schedule_id", scheduleID).Logger()
	streamLog.Info().Msg("Admin attached to live monitor SSE")

	h.sendRefresh(c, reqCtx, scheduleID, "snapshot")

	for {
		select {
		case <-reqCtx.Done():
			streamLog.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Events are already JSON; forward them untouched.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendRefresh(c, reqCtx, scheduleID, "refresh")

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: {\"type\":\"ping\"}\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, scheduleID int64, kind string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	entries, err := h.monitor.ActiveExams(ctx, scheduleID)
	if err != nil {
		h.log.Warn().Err(err).Int64("schedule_id", scheduleID).Msg("Failed to fetch active exams for refresh")
		return
	}
	if entries == nil {
		entries = []model.MonitorEntry{}
	}

	c.SSEvent("message", gin.H{
		"type":     kind,
		"attempts": entries,
		"at":       time.Now().UTC(),
	})
	c.Writer.Flush()
}

// scheduleFilter reads the optional schedule_id query. Zero means every schedule.
func scheduleFilter(c *gin.Context) (int64, bool) {
	raw := c.Query("schedule_id")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
