package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/reimbursement-service/internal/api/http"
	"github.com/spec-kit/reimbursement-service/internal/api/http/handlers"
	"github.com/spec-kit/reimbursement-service/internal/auth"
	"github.com/spec-kit/reimbursement-service/internal/blob"
	"github.com/spec-kit/reimbursement-service/internal/config"
	"github.com/spec-kit/reimbursement-service/internal/observability"
	"github.com/spec-kit/reimbursement-service/internal/persistence"
	"github.com/spec-kit/reimbursement-service/internal/repository"
	"github.com/spec-kit/reimbursement-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	var (
		pg    *persistence.Postgres
		rd    *persistence.Redis
		store repository.Store
	)

	switch cfg.Store.Driver {
	case "postgres":
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle())
	case "memory":
		logger.Warn("using in-memory store; data is not durable")
		store = repository.NewMemoryStore()
	default:
		rd = persistence.NewRedis(cfg.Redis, logger)
		defer rd.Close()
		store = repository.NewRedisStore(rd.Client)
	}

	presigner := blob.NewPresigner(cfg.Blob.SigningSecret, cfg.Blob.PublicBaseURL)

	var blobs blob.Store
	switch cfg.Blob.Driver {
	case "memory":
		logger.Warn("using in-memory blob store; receipts are not durable")
		blobs = blob.NewMemoryStore(presigner)
	default:
		if rd == nil {
			rd = persistence.NewRedis(cfg.Redis, logger)
			defer rd.Close()
		}
		blobs = blob.NewRedisStore(rd.Client, cfg.Blob.Bucket, presigner)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	credentialService := service.NewCredentialService(cfg.Auth, store, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Users:        store,
		Tickets:      store,
		Blobs:        blobs,
		SignedURLTTL: cfg.Blob.SignedURLTTL(),
	}, logger)
	authMiddleware := auth.NewMiddleware(tokenManager, store)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rd, metrics),
		Users:          handlers.NewUsersHandler(credentialService, tokenManager),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Files:          handlers.NewFilesHandler(blobs, presigner),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
