// Package cli holds the chorechart commands: the interactive board (the
// default), the merge server, and a few one-shot household chores.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/chorechart/internal/clock"
	"github.com/sadopc/chorechart/internal/config"
	"github.com/sadopc/chorechart/internal/metrics"
	"github.com/sadopc/chorechart/internal/mirror"
	"github.com/sadopc/chorechart/internal/scheduler"
	"github.com/sadopc/chorechart/internal/store"
	"github.com/sadopc/chorechart/internal/tui"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "chorechart",
		Short: "Household chore chart with star points and rewards",
		Long: `chorechart tracks daily chores for each child, turns them into star
points, and lets kids spend points on rewards. Tasks reset every night and
weekly stats roll over on Sunday in the household's timezone.

Run with no arguments to open the board. Set sync.remote_url to share one
household across devices through a "chorechart serve" instance.`,
		RunE:          runBoard,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/chorechart/config.toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(resetCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	level, _ := cfg.LogLevel() // validated by config.Load
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func openStore(cfg config.Config) (*store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	s, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return s, nil
}

// household is the local store with every domain service wired over it.
type household struct {
	cfg    config.Config
	store  *store.Store
	svc    tui.Services
	syncer *mirror.Syncer
}

// openHousehold loads config, opens the local store and, when a merge
// server is configured, starts mirroring writes to it. The logger becomes
// the process default so every service logs through it.
func openHousehold(logger *slog.Logger, cfg config.Config) (*household, error) {
	slog.SetDefault(logger)

	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	cal, err := clock.New(cfg.Reset.Timezone)
	if err != nil {
		s.Close()
		return nil, err
	}

	h := &household{cfg: cfg, store: s, svc: tui.NewServices(s, cal)}
	if cfg.SyncEnabled() {
		h.syncer = mirror.New(s, mirror.NewHTTPRemote(cfg.Sync.RemoteURL), mirror.NewSession(), logger)
		h.syncer.Watch()
	}
	return h, nil
}

// Close waits for outstanding pushes, then closes the store.
func (h *household) Close() error {
	if h.syncer != nil {
		h.syncer.Wait()
	}
	return h.store.Close()
}

// startMetrics serves /metrics on addr in the background. It returns the
// bound address and a stop function.
func startMetrics(logger *slog.Logger, addr string) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	srv := metrics.NewServer(addr)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return ln.Addr().String(), stop, nil
}

func runBoard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Logs go to a file; the board owns the terminal.
	logPath, err := cfg.LogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(logFile, cfg)

	h, err := openHousehold(logger, cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	resetEvery, _ := cfg.ResetInterval()
	syncEvery, _ := cfg.SyncInterval()
	sched, err := scheduler.New(h.svc.Resets, h.syncer, resetEvery, syncEvery, logger)
	if err != nil {
		return err
	}
	if cfg.Metrics.Listen != "" {
		_, stopMetrics, err := startMetrics(logger, cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	sched.RunNow()
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	logger.Info("board started", "sync", cfg.SyncEnabled(), "timezone", cfg.Reset.Timezone)

	app := tui.NewApp(h.svc)
	defer app.Close()

	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return nil
}
