package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/agentinbox/internal/app"
	"github.com/user/agentinbox/internal/config"
	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/scheduler"
	"github.com/user/agentinbox/internal/state"
	"github.com/user/agentinbox/internal/types"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Agent Inbox Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Backend.APIKey = prompt(scanner, "LangSmith API key (optional for local graphs)", cfg.Backend.APIKey)
		cfg.HTTP.Listen = prompt(scanner, "Dashboard listen address", cfg.HTTP.Listen)
		cfg.HTTP.PublicURL = prompt(scanner, "Public dashboard URL (optional)", cfg.HTTP.PublicURL)

		limit := prompt(scanner, "Threads per page", strconv.Itoa(cfg.Inbox.DefaultLimit))
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			cfg.Inbox.DefaultLimit = n
		}

		for {
			schedule := prompt(scanner, "Sync schedule, cron syntax (optional)", cfg.Sync.Schedule)
			if schedule == "" || scheduler.ValidateSchedule(schedule) == nil {
				cfg.Sync.Schedule = schedule
				break
			}
			fmt.Println("Invalid schedule, try again (e.g. */5 * * * *).")
		}

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)
		if cfg.Telegram.Token != "" {
			chat := prompt(scanner, "Telegram chat id", formatChatID(cfg.Telegram.ChatID))
			if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
				cfg.Telegram.ChatID = id
			}
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)

		fmt.Println()
		graphID := prompt(scanner, "Graph id of a first inbox (optional)", "")
		if graphID == "" {
			return nil
		}
		deploymentURL := prompt(scanner, "Deployment URL", "http://localhost:2024")
		name := prompt(scanner, "Inbox name (optional)", "")

		setupLogging(cfg)
		prefs := state.NewPreferenceStore(filepath.Join(cfg.DataDir, "preferences.json"))
		a := app.New(cfg, prefs)
		ib, _, err := a.AddInbox(context.Background(), types.AgentInbox{
			GraphID:       graphID,
			DeploymentURL: deploymentURL,
			Name:          name,
		}, params.Query{})
		printToasts(a, false)
		if err != nil {
			return err
		}
		fmt.Println("Added inbox", inboxLabel(ib))
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

func formatChatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
