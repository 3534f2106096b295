package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/agentinbox/internal/app"
	"github.com/user/agentinbox/internal/types"
)

var (
	respondArgs     []string
	respondResponse string
	respondType     string
)

func init() {
	rootCmd.AddCommand(respondCmd, ignoreCmd, resolveCmd, apikeyCmd)
	apikeyCmd.AddCommand(apikeySetCmd, apikeyClearCmd)

	respondCmd.Flags().StringArrayVar(&respondArgs, "arg", nil, "edited argument as key=value (repeatable)")
	respondCmd.Flags().StringVar(&respondResponse, "response", "", "free-text response")
	respondCmd.Flags().StringVar(&respondType, "type", "", "accept, edit or response (default from the interrupt config)")
}

// parseArgs splits repeated key=value flags. Later keys win.
func parseArgs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --arg %q, expected key=value", p)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}

var respondCmd = &cobra.Command{
	Use:   "respond <thread-id>",
	Short: "Answer a thread's interrupt and resume the run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := parseArgs(respondArgs)
		if err != nil {
			return err
		}

		_, a := newApp()
		defer printToasts(a, true)

		result, err := a.Respond(cmd.Context(), args[0], app.RespondInput{
			Args:       edits,
			Response:   respondResponse,
			SubmitType: types.ResponseType(respondType),
		})
		if result != nil {
			fmt.Fprintf(os.Stdout, "Sent %s response.\n", result.Sent.Type)
			if result.LastNode != "" {
				fmt.Fprintf(os.Stdout, "Last node: %s\n", result.LastNode)
			}
			if result.Thread != nil {
				fmt.Fprintf(os.Stdout, "Thread status: %s\n", result.Thread.Status)
			}
		}
		return err
	},
}

var ignoreCmd = &cobra.Command{
	Use:   "ignore <thread-id>",
	Short: "Ignore a thread's interrupt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, true)
		return a.Ignore(cmd.Context(), args[0])
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <thread-id>",
	Short: "Mark a thread resolved without resuming it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, true)
		return a.Resolve(cmd.Context(), args[0])
	},
}

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage the LangSmith API key sent to deployments",
}

var apikeySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store the API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, false)
		if err := a.SetAPIKey(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "API key saved.")
		return nil
	},
}

var apikeyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, false)
		if err := a.SetAPIKey(""); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "API key cleared.")
		return nil
	},
}
