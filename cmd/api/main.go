package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bybench/internal/cache"
	"bybench/internal/config"
	"bybench/internal/database"
	"bybench/internal/handlers"
	"bybench/internal/jobs"
	"bybench/internal/log"
	"bybench/internal/mail"
	"bybench/internal/realtime"
	"bybench/internal/repository"
	"bybench/internal/security"
	"bybench/internal/server"
	"bybench/internal/service"
	"bybench/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited with error")
	}
	logger.Info().Msg("server exited cleanly")
}

func run(cfg *config.AppConfig, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbPool.Close()

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	users := repository.NewUserRepository(dbPool)
	sellers := repository.NewSellerRepository(dbPool)
	conversations := repository.NewConversationRepository(dbPool)
	messages := repository.NewMessageRepository(dbPool)

	hub := realtime.NewHub(cfg.Realtime, logger)

	otp := service.NewOTPVerifier(users, newMailer(cfg, redisClient, logger), cfg.OTP, logger)
	tokens := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.JWTTTL)
	chat := service.NewChatService(users, conversations, messages, hub, logger)
	hub.SetAuthorizer(chat)
	attachments := service.NewAttachmentService(objectStore, cfg.Storage.MaxImageBytes, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Services{
		Auth:        service.NewAuthService(users, otp, tokens, logger),
		Chat:        chat,
		Attachments: attachments,
		Profiles:    service.NewProfileService(users, sellers, attachments, logger),
		Admin:       service.NewAdminService(users, sellers, logger),
		Hub:         hub,
		Checks:      healthChecks(dbPool, redisClient, objectStore),
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(users, cfg.OTP.SweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		scheduler.Stop(shutdownCtx)
		hub.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newMailer queues mail for the worker when async delivery is on and sends
// inline otherwise.
func newMailer(cfg *config.AppConfig, redisClient *redis.Client, logger zerolog.Logger) mail.Mailer {
	if cfg.Mail.Async {
		logger.Info().Str("stream", cfg.Mail.Stream).Msg("mail delivery queued to worker")
		return mail.NewStreamMailer(redisClient, cfg.Mail.Stream)
	}
	return mail.NewSMTPMailer(cfg.Mail)
}

func healthChecks(db *pgxpool.Pool, redisClient *redis.Client, objectStore *storage.ObjectStore) map[string]handlers.HealthCheck {
	return map[string]handlers.HealthCheck{
		"postgres": db.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"storage": objectStore.Ping,
	}
}
