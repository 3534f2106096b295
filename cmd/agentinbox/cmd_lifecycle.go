package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd, statusCmd)
}

// readPID reads the PID from the agentinbox.pid file and validates the
// process exists by sending signal 0.
func readPID(dataDir string) (int, error) {
	pidPath := filepath.Join(dataDir, "agentinbox.pid")

	data, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("no running daemon (PID file not found)")
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, fmt.Errorf("no running daemon (process %d not found)", pid)
	}
	return pid, nil
}

// signalDaemon sends sig to the daemon recorded in the PID file.
func signalDaemon(sig syscall.Signal) (int, error) {
	cfg := loadConfig()
	pid, err := readPID(cfg.DataDir)
	if err != nil {
		return 0, err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process: %w", err)
	}
	if err := proc.Signal(sig); err != nil {
		return 0, fmt.Errorf("send %v: %w", sig, err)
	}
	return pid, nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := signalDaemon(syscall.SIGTERM)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Sent SIGTERM to daemon (PID %d).\n", pid)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := signalDaemon(syscall.SIGHUP)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Sent SIGHUP to daemon (PID %d) for restart.\n", pid)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon and its dashboard are up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		pid, err := readPID(cfg.DataDir)
		if err != nil {
			fmt.Fprintln(os.Stdout, "Daemon: not running")
			return nil
		}
		fmt.Fprintf(os.Stdout, "Daemon: running (PID %d)\n", pid)
		if !cfg.HTTP.Enabled {
			fmt.Fprintln(os.Stdout, "Dashboard: disabled")
			return nil
		}

		client := &http.Client{Timeout: 3 * time.Second}
		resp, err := client.Get("http://" + cfg.HTTP.Listen + "/health")
		if err != nil {
			fmt.Fprintf(os.Stdout, "Dashboard: unreachable (%v)\n", err)
			return nil
		}
		defer resp.Body.Close()
		var health map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health["status"] != "ok" {
			fmt.Fprintf(os.Stdout, "Dashboard: unhealthy (status %d)\n", resp.StatusCode)
			return nil
		}
		fmt.Fprintf(os.Stdout, "Dashboard: %s\n", cfg.DashboardURL())
		return nil
	},
}
