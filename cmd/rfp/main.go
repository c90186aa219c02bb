package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/faisal-mohamed/rfp/internal/accounts"
	"github.com/faisal-mohamed/rfp/internal/app"
	"github.com/faisal-mohamed/rfp/internal/auth"
	"github.com/faisal-mohamed/rfp/internal/observability"
	"github.com/faisal-mohamed/rfp/internal/platform/cache"
	"github.com/faisal-mohamed/rfp/internal/platform/db"
	"github.com/faisal-mohamed/rfp/internal/rbac"
	"github.com/faisal-mohamed/rfp/internal/shared"
	"github.com/faisal-mohamed/rfp/jobs"
)

const sessionCookie = "rfp_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	jobClient := jobs.NewClient(cfg.Redis().AsynqOpt())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	authService := auth.NewService(auth.NewRepository(pool), hasher, logger)
	authHandler := auth.NewHandler(logger, authService, tokens, sessionManager, csrfManager)
	authMiddleware := auth.Middleware{
		Service:  authService,
		Tokens:   tokens,
		Sessions: sessionManager,
		Logger:   logger,
	}

	rbacMiddleware := rbac.Middleware{Logger: logger}

	accountService := accounts.NewService(accounts.Dependencies{
		Repo:    accounts.NewRepository(pool),
		Hasher:  hasher,
		Audit:   shared.NewAuditLogger(pool),
		Revoker: jobClient,
		Metrics: metrics,
		Logger:  logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthMiddleware:     authMiddleware,
		AuthHandler:        authHandler,
		AccountsHandler:    accounts.NewHandler(logger, accountService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down http server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
