// Command api serves the Regional Price Parity read API from a deployed store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/rpp-data-etl-service/internal/adapter/http"
	"github.com/couchcryptid/rpp-data-etl-service/internal/config"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/couchcryptid/rpp-data-etl-service/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.ServeDBPath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.ServeDBPath, "error", err)
		os.Exit(1)
	}

	api := httpadapter.NewAPI(st, cfg.SearchCacheSize, clockwork.NewRealClock(), metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, st, api, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := st.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
