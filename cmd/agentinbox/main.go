package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/agentinbox/internal/app"
	"github.com/user/agentinbox/internal/config"
	"github.com/user/agentinbox/internal/state"
	"github.com/user/agentinbox/internal/toast"
	"github.com/user/agentinbox/internal/types"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "agentinbox",
	Short:         "Review and answer agent interrupts from the terminal or the browser",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".agentinbox", "config.json"), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newApp loads the config and opens the preference store under data_dir.
func newApp() (*config.Config, *app.App) {
	cfg := loadConfig()
	setupLogging(cfg)
	prefs := state.NewPreferenceStore(filepath.Join(cfg.DataDir, "preferences.json"))
	return cfg, app.New(cfg, prefs)
}

// printToasts writes pending notifications to stderr. Info toasts are
// only shown when verbose is set.
func printToasts(a *app.App, verbose bool) {
	for _, t := range a.Toasts() {
		if t.Variant != toast.VariantDestructive && !verbose {
			continue
		}
		if t.Description != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", t.Title, t.Description)
		} else {
			fmt.Fprintln(os.Stderr, t.Title)
		}
	}
}

func inboxLabel(ib types.AgentInbox) string {
	return fmt.Sprintf("%s (%s)", ib.DisplayName(), ib.ID)
}
