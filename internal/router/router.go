package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/handler"
	"github.com/stemsi/exstem-cbt/internal/middleware"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam        *handler.ExamHandler
	Proctoring  *handler.ProctoringHandler
	Grading     *handler.GradingHandler
	Monitor     *handler.MonitorHandler
	Participant *handler.ParticipantHandler
	WS          *handler.WSHandler
	System      *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// activityLimiter throttles the proctoring endpoints, which clients call on every focus change.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	activityLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	opts := middleware.DefaultBrotliOptions
	opts.SkipPrefixes = []string{"/ws/", "/api/v1/admin/monitoring/stream"}
	router.Use(middleware.Brotli(opts))

	router.GET("/health", handlers.System.Health)

	// ─── 1. Participant Group (student JWT) ────────────────────────────
	// Exam state changes per request and must never be served from a cache.
	studentAPI := router.Group("/api/v1")
	studentAPI.Use(middleware.RequireStudentJWT(auth), middleware.NoStore())
	{
		exam := studentAPI.Group("/exam/:schedule_id")
		exam.POST("/start", handlers.Exam.StartExam)
		exam.GET("/state", handlers.Exam.GetExamState)
		exam.POST("/save-progress", handlers.Exam.SaveProgress)
		exam.POST("/submit", handlers.Exam.SubmitExam)

		proctoring := studentAPI.Group("/proctoring")
		proctoring.Use(activityLimiter.Middleware())
		proctoring.POST("/log-activity", handlers.Proctoring.LogActivity)
		proctoring.POST("/update-session", handlers.Proctoring.UpdateSession)
		proctoring.POST("/check-session", handlers.Proctoring.CheckSession)
	}

	// ─── 2. WebSocket Group (student token in query) ───────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(auth))
	{
		ws.GET("/exam/:schedule_id/stream", handlers.WS.ExamStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth), middleware.NoStore())
	{
		grade := middleware.RequirePermission(string(model.PermissionExamsGrade))
		adminAPI.POST("/exam/force-submit", grade, handlers.Grading.ForceSubmit)
		adminAPI.POST("/exam/:schedule_id/refresh-cache", grade, handlers.Grading.RefreshCache)
		adminAPI.POST("/hasil-ujian/recalculate", grade, handlers.Grading.Recalculate)

		monitor := middleware.RequirePermission(string(model.PermissionExamsMonitor))
		adminAPI.GET("/monitoring/active-exams", monitor, handlers.Monitor.ActiveExams)
		adminAPI.GET("/monitoring/attempts/:attempt_id/activity", monitor, handlers.Monitor.AttemptActivity)
		adminAPI.GET("/monitoring/stream", monitor, handlers.Monitor.MonitorStream)
		adminAPI.GET("/system/metrics", monitor, handlers.System.Metrics)

		adminAPI.POST("/participants/status",
			middleware.RequirePermission(string(model.PermissionParticipantsWrite)),
			handlers.Participant.SetStatus,
		)
	}

	return router
}
