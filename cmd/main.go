package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/pong-arena/brackets"
	"github.com/Dosada05/pong-arena/config"
	"github.com/Dosada05/pong-arena/db"
	"github.com/Dosada05/pong-arena/handlers"
	"github.com/Dosada05/pong-arena/metrics"
	"github.com/Dosada05/pong-arena/repositories"
	api "github.com/Dosada05/pong-arena/routes"
	"github.com/Dosada05/pong-arena/services"
	"github.com/Dosada05/pong-arena/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title Pong Arena API
// @version 1.0
// @description Single-elimination tournament rooms, match invitations and player records.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("archive", cfg.ArchiveEnabled()))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx, dbConn)
	cancelMigrate()
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("database ready")

	var archiver storage.BracketArchiver = storage.NopArchiver{}
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(context.Background(), storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize R2 uploader: %w", err)
		}
		archiver = storage.NewBracketArchiver(uploader)
		logger.Info("bracket archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	defer wsHub.Stop()

	clock := clockwork.NewRealClock()

	tx := repositories.NewTransactor(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	historyRepo := repositories.NewPostgresHistoryRepository(dbConn)
	invitationRepo := repositories.NewPostgresInvitationRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)

	recorder := services.NewResultRecorder(playerRepo, historyRepo, m)
	authService := services.NewAuthService(tx, userRepo, playerRepo, []byte(cfg.JWTSecretKey), cfg.JWTTTL, clock, logger)
	playerService := services.NewPlayerService(playerRepo, historyRepo)
	matchService := services.NewMatchService(tx, matchRepo, playerRepo, recorder, clock, logger)
	invitationService := services.NewInvitationService(tx, invitationRepo, userRepo, playerRepo, matchRepo, clock, m, logger)
	tournamentService := services.NewTournamentService(
		tx,
		tournamentRepo,
		playerRepo,
		recorder,
		wsHub,
		archiver,
		clock,
		m,
		logger,
		services.TournamentServiceConfig{StaleRoomAfter: cfg.StaleRoomAfter},
	)

	scheduler, err := newScheduler(clock, logger, cfg, tournamentService)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	router := chi.NewRouter()
	api.SetupRoutes(router,
		api.Options{
			JWTSecret:          []byte(cfg.JWTSecretKey),
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:             logger,
			Metrics:            m,
			Gatherer:           registry,
		},
		api.Handlers{
			Auth:       handlers.NewAuthHandler(authService),
			Player:     handlers.NewPlayerHandler(playerService),
			Tournament: handlers.NewTournamentHandler(tournamentService),
			Invitation: handlers.NewInvitationHandler(invitationService),
			Match:      handlers.NewMatchHandler(matchService),
			WebSocket:  handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger),
			Health:     handlers.NewHealthHandler(dbConn),
		},
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}
	return nil
}

// newScheduler registers the stale waiting-room job. With STALE_ROOM_AFTER=0
// the scheduler runs empty.
func newScheduler(clock clockwork.Clock, logger *slog.Logger, cfg *config.Config, ts services.TournamentService) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithClock(clock), gocron.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if cfg.StaleRoomAfter <= 0 {
		return s, nil
	}

	_, err = s.NewJob(
		gocron.DurationJob(cfg.StaleRoomCheckInterval),
		gocron.NewTask(func(ctx context.Context) {
			if _, err := ts.EndStaleRooms(ctx); err != nil {
				logger.ErrorContext(ctx, "stale room job failed", slog.Any("error", err))
			}
		}),
		gocron.WithName("end-stale-rooms"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule stale room job: %w", err)
	}
	logger.Info("stale room job scheduled",
		slog.Duration("interval", cfg.StaleRoomCheckInterval), slog.Duration("stale_after", cfg.StaleRoomAfter))
	return s, nil
}
