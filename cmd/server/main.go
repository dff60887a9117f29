package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aasprep/practest-backend/internal/cache"
	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/database"
	"github.com/aasprep/practest-backend/internal/handler"
	"github.com/aasprep/practest-backend/internal/logger"
	"github.com/aasprep/practest-backend/internal/repository"
	"github.com/aasprep/practest-backend/internal/router"
	"github.com/aasprep/practest-backend/internal/service"
	"github.com/aasprep/practest-backend/internal/validator"
	"github.com/aasprep/practest-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting PracTest Backend")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Repositories and caches.
	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	checkpointRepo := repository.NewCheckpointRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	answerCache := cache.NewAnswerCache(rdb)
	queue := cache.NewQueue(rdb)

	// Services.
	authService := service.NewAuthService(cfg, userRepo, rdb)
	questionService := service.NewQuestionService(questionRepo, cfg, log)
	sessionService := service.NewSessionService(
		sessionRepo, questionRepo, checkpointRepo, answerRepo,
		answerCache, queue, cfg, log,
	)

	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Question: handler.NewQuestionHandler(questionService),
		Session:  handler.NewSessionHandler(sessionService),
		WS:       handler.NewWSHandler(sessionService, cfg, log),
	}

	// Background workers.
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerWorker(answerRepo, rdb, log)
	checkpointWorker := worker.NewCheckpointWorker(checkpointRepo, rdb, log)

	go answerWorker.Start(workerCtx)
	go checkpointWorker.Start(workerCtx)

	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

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

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
