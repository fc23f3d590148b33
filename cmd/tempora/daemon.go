package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/audit"
	"github.com/mkornelli/tempora/internal/config"
	"github.com/mkornelli/tempora/internal/controlplane"
	"github.com/mkornelli/tempora/internal/logx"
	"github.com/mkornelli/tempora/internal/runner"
	"github.com/mkornelli/tempora/internal/scripts"
	"github.com/mkornelli/tempora/internal/store"
)

var listenAddr string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Tempora daemon",
	Long: `Starts the Tempora daemon, which owns the run queue, the script
processes, and the availability calendar, and serves the HTTP API.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (default: from config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if listenAddr == "" {
		listenAddr = cfg.Listen
	}

	logger := logx.New(logx.Options{Level: cfg.LogLevel, Console: true})
	logger.Info("starting tempora daemon",
		logx.String("version", Version),
		logx.String("config", cfgPath))

	// Availability template from the config's busy windows
	week, err := cfg.Week()
	if err != nil {
		return err
	}

	// Initialize store
	s, err := store.New(cfg.DBPath())
	if err != nil {
		return err
	}

	rec := audit.NewRecorder(s)
	registry, err := scripts.Load(cfg.RegistryPath())
	if err != nil {
		s.Close()
		return err
	}

	run := runner.New(s, rec, &runner.Config{
		RunsDir:       cfg.RunsDir(),
		Shell:         cfg.Shell,
		MaxConcurrent: cfg.MaxConcurrent,
		PollPerSecond: cfg.PollPerSecond,
		KeepRuns:      cfg.KeepRuns,
	}, logger.With("runner"))

	// Create service and server
	service := controlplane.NewService(s, rec, registry, run, week)
	server := controlplane.NewServer(service, s, listenAddr)
	server.SetVersion(Version)
	server.SetLogger(logger.With("http"))

	// Fresh token per daemon lifetime; the contact file hands it to
	// CLI and TUI invocations.
	token, err := controlplane.NewToken()
	if err != nil {
		s.Close()
		return err
	}
	server.SetAuthToken(token)

	info := controlplane.DaemonInfo{
		Addr:      "http://" + listenAddr,
		Token:     token,
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
	}
	if err := controlplane.WriteDaemonInfo(cfg.DaemonFile(), info); err != nil {
		s.Close()
		return err
	}
	defer controlplane.RemoveDaemonInfo(cfg.DaemonFile())

	// Config edits swap the availability template without a restart.
	watcher, err := config.NewWatcher(cfgPath, logger.With("config"), func(next *config.Config) {
		week, err := next.Week()
		if err != nil {
			logger.Warn("reloaded config has an invalid calendar", logx.Err(err))
			return
		}
		service.ReplaceWeek(week)
	})
	if err != nil {
		logger.Warn("config watching disabled", logx.Err(err))
	} else {
		defer watcher.Close()
	}

	run.Start()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", logx.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", logx.Err(err))
			run.Stop()
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", logx.Err(err))
	}

	// Runner finalizes every live run before the store closes.
	run.Stop()

	if err := s.Close(); err != nil {
		logger.Warn("database close error", logx.Err(err))
	}

	logger.Info("shutdown complete")
	return nil
}
