/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the community points server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (best effort) and configuration (viper)
  2. Initialize SQLite store
  3. Load shop catalog (file or built-in)
  4. Wire ledger service and purchase saga
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  config.yaml in ./ or ./config, overridable via environment variables.
  See config/config.go for keys and defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults (./data/points.db, port 8080)
  ./server

  # In-memory database via environment override
  STORAGE_SQLITEPATH=":memory:" ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/commune/points-engine/api"
	"github.com/commune/points-engine/catalog"
	"github.com/commune/points-engine/config"
	"github.com/commune/points-engine/ledger"
	"github.com/commune/points-engine/shop"
	"github.com/commune/points-engine/store/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Local development convenience; absence of .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Error("failed to initialize database", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			logger.Error("failed to load catalog", slog.String("path", cfg.Catalog.Path), slog.Any("error", err))
			os.Exit(1)
		}
	}

	policy := ledger.DefaultPolicy()
	policy.CutoverHour = cfg.Points.CutoverHour

	svc := ledger.NewService(store,
		ledger.WithPolicy(policy),
		ledger.WithEvents(ledger.LogSink{Logger: logger}),
		ledger.WithLogger(logger),
	)
	saga := shop.NewSaga(svc, cat, store, logger)

	handler := api.NewHandler(svc, saga, cat, cfg.DefaultLocation())
	handler.Resetter = store
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("db", cfg.Storage.SQLitePath),
			slog.String("default_tz", cfg.Points.DefaultTimezone),
			slog.Int("cutover_hour", cfg.Points.CutoverHour),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
