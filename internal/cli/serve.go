package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/chorechart/internal/api"
	"github.com/sadopc/chorechart/internal/config"
	"github.com/sadopc/chorechart/internal/store"
)

const shutdownTimeout = 10 * time.Second

var (
	serveListen    string
	serveDB        string
	serveNoMetrics bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the shared merge server",
	Long: `Run the household merge server. Devices pull the whole record map with
GET /api/data and push changed keys with POST /api/data.

Examples:
  chorechart serve
  chorechart serve --listen :8080 --db /var/lib/chorechart/server.db`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides server.listen)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "server database path (overrides server.db_path)")
	serveCmd.Flags().BoolVar(&serveNoMetrics, "no-metrics", false, "do not expose /metrics")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if serveDB != "" {
		cfg.Server.DBPath = serveDB
	}
	if serveNoMetrics {
		cfg.Server.Metrics = false
	}

	logger := newLogger(os.Stderr, cfg)

	s, err := store.New(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open server store %s: %w", cfg.Server.DBPath, err)
	}
	defer s.Close()

	srv := api.NewServer(s, logger)
	if cfg.Server.Metrics {
		srv.EnableMetrics()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("merge server listening", "addr", cfg.Server.Listen, "db", cfg.Server.DBPath, "metrics", cfg.Server.Metrics)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", cfg.Server.Listen, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
