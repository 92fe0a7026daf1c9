package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/relaycrm/sync-api/internal/config"
	"github.com/relaycrm/sync-api/internal/handlers"
	"github.com/relaycrm/sync-api/internal/middleware"
	"github.com/relaycrm/sync-api/internal/migration"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
	"github.com/relaycrm/sync-api/internal/routes"
	"github.com/relaycrm/sync-api/internal/sync"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config *config.Config
	db     *sql.DB
	worker *sync.Worker
	logger zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	gooseAdapter := migration.NewGooseAdapter(logger)
	goose.SetLogger(gooseAdapter)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	app := &application{
		config: cfg,
		db:     db,
		logger: logger,
	}
	app.worker = app.initWorker()

	// Run queue passes on an interval when configured; otherwise passes are
	// triggered only through the API.
	stopPolling := app.startPolling()
	defer stopPolling()

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

func (app *application) initWorker() *sync.Worker {
	return sync.NewWorker(sync.WorkerConfig{
		Jobs:        repository.NewJobRepository(app.db),
		Credentials: repository.NewCredentialRepository(app.db),
		Mappings:    repository.NewMappingRepository(app.db),
		Entities:    repository.NewEntityRepository(app.db),
		Cursors:     repository.NewCursorRepository(app.db),
		Locks:       repository.NewLockRepository(app.db),
		Audit:       repository.NewAuditRepository(app.db),
		API:         partner.NewClient(app.config.Partner),

		BatchSize:         app.config.Worker.BatchSize,
		BaseBackoff:       app.config.Worker.BaseBackoff,
		BackoffCap:        app.config.Worker.BackoffCap,
		InterJobDelay:     app.config.Worker.InterJobDelay,
		LockTTL:           app.config.Worker.LockTTL,
		TokenSkew:         app.config.Worker.TokenSkew,
		NotConnectedDelay: app.config.Worker.NotConnectedDelay,
	}, app.logger)
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	jobRepo := repository.NewJobRepository(app.db)
	auditRepo := repository.NewAuditRepository(app.db)

	authHandler := handlers.NewAuthHandler(app.config.JWTSecret, logger)
	syncHandler := handlers.NewSyncHandler(app.worker, jobRepo, logger)
	auditHandler := handlers.NewAuditHandler(auditRepo)

	return routes.NewRouter(authHandler, syncHandler, auditHandler)
}

// startPolling runs periodic worker passes in a goroutine. The returned stop
// function cancels the loop and waits for an in-flight pass to finish.
func (app *application) startPolling() func() {
	interval := app.config.Worker.PollInterval
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		app.logger.Info().Dur("interval", interval).Msg("Starting sync poll loop")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := app.worker.RunPass(ctx, sync.RunOptions{}); err != nil {
					app.logger.Error().Err(err).Msg("Scheduled sync pass failed")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
