package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openimaging/archivepipe/internal/archive"
	"github.com/openimaging/archivepipe/internal/config"
	"github.com/openimaging/archivepipe/internal/database"
	"github.com/openimaging/archivepipe/internal/handler"
	"github.com/openimaging/archivepipe/internal/jobs"
	"github.com/openimaging/archivepipe/internal/middleware"
	"github.com/openimaging/archivepipe/internal/pipeline"
	"github.com/openimaging/archivepipe/internal/queue"
	"github.com/openimaging/archivepipe/internal/redis"
	"github.com/openimaging/archivepipe/internal/repository"
	"github.com/openimaging/archivepipe/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	workflowRepo := repository.NewWorkflowRepository(db.DB)
	reviewRepo := repository.NewReviewRepository(db.DB)

	dispatchQueue := queue.NewDispatchQueue(redisClient)
	probe := pipeline.NewFileActivityProbe(cfg.QuietPeriod())
	quarantine := pipeline.NewQuarantine(sessionRepo, reviewRepo, cfg.PrearchiveRoot)
	populator := archive.NewManifestPopulator()
	store := archive.NewStore(db.DB, cfg.ArchiveRoot)

	buildStage := pipeline.NewBuildStage(sessionRepo, populator, quarantine)
	archiveStage := pipeline.NewArchiveStage(
		sessionRepo, workflowRepo, store, populator, quarantine, cfg.DispatchUser,
	)

	worker := pipeline.NewWorker(dispatchQueue, sessionRepo, buildStage, archiveStage, cfg.WorkerConcurrency)
	worker.Start()
	defer worker.Stop()

	dispatchJob := jobs.NewDispatchJob(sessionRepo, dispatchQueue, probe, redisClient, cfg.DispatchInterval())
	dispatchJob.Start()
	defer dispatchJob.Stop()

	staleJob := jobs.NewStaleSweepJob(sessionRepo, cfg.StaleSweepInterval(), cfg.StaleAfter())
	staleJob.Start()
	defer staleJob.Stop()

	intakeService := service.NewIntakeService(sessionRepo)
	adminService := service.NewAdminService(db, sessionRepo, workflowRepo)

	sessionHandler := handler.NewSessionHandler(intakeService, adminService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Mount("/", sessionHandler.Routes())
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
