package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/api"
	"github.com/lalith-99/gridbase/internal/auth"
	"github.com/lalith-99/gridbase/internal/cache"
	"github.com/lalith-99/gridbase/internal/config"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/observ"
	"github.com/lalith-99/gridbase/internal/repository"
	pgstore "github.com/lalith-99/gridbase/internal/repository/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	if err := pgstore.EnsureSharedSchema(ctx, database.Pool()); err != nil {
		return err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The tenant cache degrades to the database; startup goes on.
		logger.Warn("redis unavailable, tenant cache degraded", zap.Error(err))
	}

	sessionRouter := db.NewRouter(database.Pool(), logger)

	creds := auth.NewBcryptCredentials()
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.PreTenantTokenTTL, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("init token service: %w", err)
	}

	var tenants repository.TenantRepository = pgstore.NewTenantStore(database.Pool(), sessionRouter)
	tenants = cache.NewTenantCache(tenants, redisClient, cfg.TenantCacheTTL, logger)

	provisioner := pgstore.NewProvisionStore(database.Pool(), creds, logger)
	modules := pgstore.NewModuleStore()
	tables := pgstore.NewTableStore(logger)
	columns := pgstore.NewColumnStore()
	views := pgstore.NewViewStore()
	permissions := pgstore.NewPermissionStore()
	roles := pgstore.NewRoleStore()
	users := pgstore.NewUserStore(sessionRouter, creds, logger)
	files := pgstore.NewFileStore()
	notifications := pgstore.NewNotificationStore(sessionRouter, logger)
	audit := pgstore.NewAuditStore()
	records := pgstore.NewRecordStore(files, notifications, audit, logger)

	engine := api.NewRouter(api.Handlers{
		Auth:          api.NewAuthHandler(tenants, users, sessionRouter, creds, tokens, logger),
		Company:       api.NewCompanyHandler(tenants, provisioner, logger),
		Metadata:      api.NewMetadataHandler(modules, tables, columns, logger),
		View:          api.NewViewHandler(views, logger),
		Record:        api.NewRecordHandler(records, permissions, audit, logger),
		Permission:    api.NewPermissionHandler(permissions, roles, logger),
		User:          api.NewUserHandler(users, roles, creds, logger),
		Notification:  api.NewNotificationHandler(notifications, logger),
		File:          api.NewFileHandler(files, logger),
		TokenService:  tokens,
		SessionRouter: sessionRouter,
		DB:            database,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
