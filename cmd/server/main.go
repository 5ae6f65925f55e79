// Package main provides the entry point for the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/datajpa/internal/config"
	dbconfig "github.com/festy23/datajpa/internal/database/config"
	"github.com/festy23/datajpa/internal/database/database"
	"github.com/festy23/datajpa/internal/database/migrate"
	"github.com/festy23/datajpa/internal/health"
	"github.com/festy23/datajpa/internal/member/model"
	memberrouter "github.com/festy23/datajpa/internal/member/router"
	"github.com/festy23/datajpa/internal/member/service"
	"github.com/festy23/datajpa/internal/middleware"
	"github.com/festy23/datajpa/pkg/logger"
	"github.com/festy23/datajpa/pkg/persistence"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	sugar, err := logger.NewWithConfig(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	if err := run(cfg, sugar); err != nil {
		sugar.Errorw("server stopped with error", "error", err)
		_ = sugar.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.SugaredLogger) error {
	dbCfg := dbconfig.LoadConfigFromEnv()
	db, err := database.NewWithConfig(dbCfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warnw("failed to close database", "error", err)
		}
	}()

	if err := migrate.Run(db, dbCfg, logger, &model.Team{}, &model.Member{}); err != nil {
		return err
	}

	members, err := memberrouter.NewService(db, logger)
	if err != nil {
		return err
	}

	if cfg.Seed.Enabled {
		if err := seed(members, cfg.Seed, logger); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      newEngine(cfg, db, members, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("server starting", "address", srv.Addr, "gin_mode", cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infow("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Infow("server stopped")
	return nil
}

func newEngine(cfg config.Config, db *gorm.DB, members service.Service, logger *zap.SugaredLogger) *gin.Engine {
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.UnitOfWork(),
		middleware.Auditor(),
	)

	health.New(db, logger).RegisterRoutes(r)
	memberrouter.RegisterRoutes(r, members, logger)
	return r
}

func seed(members service.Service, cfg config.SeedConfig, logger *zap.SugaredLogger) error {
	ctx := persistence.NewContext(context.Background())

	created, err := members.Seed(ctx, cfg.Count)
	if err != nil {
		return fmt.Errorf("failed to seed members: %w", err)
	}
	logger.Infow("seed finished", "created", created)
	return nil
}
