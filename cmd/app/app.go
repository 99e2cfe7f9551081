package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vietanh2810/shopstore/internal/api"
	v1 "github.com/vietanh2810/shopstore/internal/api/handler/v1"
	"github.com/vietanh2810/shopstore/internal/config"
	"github.com/vietanh2810/shopstore/internal/db"
	"github.com/vietanh2810/shopstore/internal/logger"
	"github.com/vietanh2810/shopstore/internal/service"
)

const shutdownTimeout = 15 * time.Second

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}
	defer zap.L().Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := v1.NewEventHub()
	go hub.Run(ctx)

	shops, err := service.Open(ctx, conf.Store, openDatabase(conf.Postgres), service.WithObserver(hub))
	if err != nil {
		return fmt.Errorf("failed to initialize shop store -> %w", err)
	}

	s := api.NewServer(conf, shops, hub)
	httpServer := &http.Server{
		Addr:              ":" + s.Config.API.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zap.L().Info(fmt.Sprintf("starting server at %v", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			err = fmt.Errorf("failed to start the server -> %w", err)
		}
	case <-ctx.Done():
		zap.L().Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		zap.L().Error("failed to shut down http server", zap.Error(shutdownErr))
	}
	if closeErr := shops.Close(shutdownCtx); closeErr != nil {
		zap.L().Error("failed to close shop store", zap.Error(closeErr))
		if err == nil {
			err = fmt.Errorf("failed to close shop store -> %w", closeErr)
		}
	}

	return err
}

// openDatabase prefers DATABASE_URL over the postgres section of the config.
func openDatabase(conf *config.PostgresConfig) func() (*gorm.DB, error) {
	return func() (*gorm.DB, error) {
		if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
			withURL := *conf
			withURL.Driver = config.DriverPostgres
			withURL.DSN = dbURL
			return db.Open(&withURL)
		}
		return db.Open(conf)
	}
}
