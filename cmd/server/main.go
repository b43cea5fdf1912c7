package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/cache"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/database"
	"github.com/stemsi/exstem-cbt/internal/handler"
	"github.com/stemsi/exstem-cbt/internal/logger"
	"github.com/stemsi/exstem-cbt/internal/middleware"
	"github.com/stemsi/exstem-cbt/internal/repository"
	"github.com/stemsi/exstem-cbt/internal/router"
	"github.com/stemsi/exstem-cbt/internal/service"
	"github.com/stemsi/exstem-cbt/internal/validator"
	"github.com/stemsi/exstem-cbt/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("submit_key_source", string(cfg.Exam.SubmitKeySource)).
		Bool("enforce_session_binding", cfg.Exam.EnforceSessionBinding).
		Msg("Starting ExStem CBT")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	scheduleRepo := repository.NewScheduleRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	activityRepo := repository.NewActivityRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	payloads := cache.NewRedisStore(rdb, cfg.Exam.PayloadCacheTTL)
	events := service.NewRedisEventPublisher(rdb, log)
	recorder := service.NewActivityRecorder(service.NewRedisActivityQueue(rdb), activityRepo, log)

	authService := service.NewAuthService(cfg)
	sessionService := service.NewExamSessionService(scheduleRepo, questionRepo, attemptRepo, recorder, payloads, events, cfg.Exam, log)
	gradingService := service.NewGradingService(scheduleRepo, questionRepo, attemptRepo, recorder, events, cfg.Exam, log)
	proctoringService := service.NewProctoringService(scheduleRepo, attemptRepo, recorder, gradingService, events, cfg.Exam, log)
	participantService := service.NewParticipantService(participantRepo, attemptRepo, scheduleRepo, events, log)
	monitorService := service.NewMonitorService(monitorRepo, activityRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:        handler.NewExamHandler(sessionService, log),
		Proctoring:  handler.NewProctoringHandler(proctoringService, log),
		Grading:     handler.NewGradingHandler(gradingService, sessionService, log),
		Monitor:     handler.NewMonitorHandler(rdb, monitorService, log),
		Participant: handler.NewParticipantHandler(participantService, log),
		WS:          handler.NewWSHandler(sessionService, proctoringService, log, cfg.AllowedOrigins),
		System:      handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	activityWorker := worker.NewActivityWorker(activityRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		activityWorker.Start(workerCtx)
	}()

	sweeper := worker.NewExpirySweeper(gradingService, cfg.Exam.ExpirySweepSchedule, cfg.Exam.ExpirySweepGrace, log)
	if err := sweeper.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule expiry sweep")
	}

	activityLimiter := middleware.NewRateLimiter(cfg.Exam.ActivityRatePerMinute, time.Minute)
	go activityLimiter.RunCleanup(workerCtx.Done())

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, activityLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers; the activity worker flushes its buffer before returning.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
