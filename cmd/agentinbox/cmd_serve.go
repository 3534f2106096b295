package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/agentinbox/internal/delivery"
	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/scheduler"
	"github.com/user/agentinbox/internal/telegram"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/internal/web"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "agentinbox.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, a := newApp()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One-shot inbox id migration
	if _, changed := a.Backfill(ctx, params.Query{}); changed {
		slog.Info("inbox ids migrated to deployment-scoped ids")
	}

	slog.Info("agentinbox started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"inboxes", len(a.Inboxes()),
		"pid_file", pidPath,
	)

	// Delivery registry
	deliveryReg := delivery.NewRegistry()
	deliveryReg.Register("log:", delivery.LogHandler)
	deliveryReg.SetRetryPolicy(delivery.DefaultRetryPolicy())

	// Telegram adapter
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		adapter, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID, func(ctx context.Context) ([]types.ThreadData, error) {
			return a.Pending(ctx, 0)
		}, cfg.DashboardURL(), a.Previewer())
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")

		deliveryReg.Register(telegram.TargetPrefix, adapter.Deliver)
		deliveryReg.Subscribe(adapter.Target())
	} else {
		slog.Warn("telegram adapter disabled (no token or chat id)")
		deliveryReg.Subscribe("log:notifications")
	}

	// Scheduler
	if cfg.Sync.Schedule != "" {
		sched := scheduler.New(a, deliveryReg, cfg.Sync.Schedule, cfg.DashboardURL(), a.Previewer())
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
		slog.Info("scheduler started")
	}

	// Dashboard HTTP server
	if cfg.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: web.NewServer(a),
		}
		go func() {
			slog.Info("dashboard server started", "listen", cfg.HTTP.Listen, "url", cfg.DashboardURL())
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("dashboard server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
