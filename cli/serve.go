/*
serve.go - HTTP server command

PURPOSE:
  Starts the ledger HTTP API. Handles store setup, dependency injection,
  the integrity sweep scheduler, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (--config, CAPLEDGER_* env, defaults)
  2. Open the configured store (memory or SQLite)
  3. Create lifecycle and API handler
  4. Start the integrity sweep scheduler
  5. Configure HTTP router
  6. Serve until SIGINT/SIGTERM

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the integrity scheduler
  4. Close the store

EXAMPLES:
  # Run with file database
  capledger serve --db=./data/ledger.db

  # Run in memory on a different port
  CAPLEDGER_STORE_DRIVER=memory capledger serve --port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Integrity sweeps
  - config/config.go: Settings
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/capital-ledger/api"
	"github.com/warp/capital-ledger/config"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

// serve runs the API until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}()

	handler := api.NewHandler(newLifecycle(store), nil)
	handler.Scheduler = api.NewIntegrityScheduler(store, cfg.Integrity.Interval)
	handler.Scheduler.Start()
	defer handler.Scheduler.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableMetrics:  cfg.Metrics.Enabled,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://%s (store: %s)", server.Addr, cfg.Store.Driver)
		log.Printf("API available at http://%s/api", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
