package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/response"
)

const healthTimeout = 2 * time.Second

// SystemHandler reports liveness and runtime figures for operators.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Pings postgres and redis. Either one failing turns the response into 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"postgres": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Postgres health check failed")
		checks["postgres"] = "down"
		status = http.StatusServiceUnavailable
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		checks["redis"] = "down"
		status = http.StatusServiceUnavailable
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	response.Success(c, status, gin.H{"status": overall, "checks": checks})
}

type systemMetrics struct {
	Timestamp     int64   `json:"timestamp"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	HeapAlloc     uint64  `json:"heap_alloc"`
	NumGC         uint32  `json:"num_gc"`
	GoVersion     string  `json:"go_version"`
	DBTotalConns  int32   `json:"db_total_conns"`
	DBIdleConns   int32   `json:"db_idle_conns"`
	QueueActivity int64   `json:"queue_activity"`
}

// Metrics godoc
// GET /api/v1/admin/system/metrics
// Returns runtime figures and the activity queue backlog.
func (h *SystemHandler) Metrics(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stat := h.pool.Stat()
	m := systemMetrics{
		Timestamp:     time.Now().Unix(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     ms.HeapAlloc,
		NumGC:         ms.NumGC,
		GoVersion:     runtime.Version(),
		DBTotalConns:  stat.TotalConns(),
		DBIdleConns:   stat.IdleConns(),
	}

	queued, err := h.rdb.LLen(c.Request.Context(), config.WorkerKey.PersistActivityQueue).Result()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read activity queue length")
	}
	m.QueueActivity = queued

	response.Success(c, http.StatusOK, m)
}
