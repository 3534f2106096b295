package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/internal/view"
)

var (
	inboxName          string
	inboxDeploymentURL string
	inboxGraphID       string
)

func init() {
	rootCmd.AddCommand(inboxCmd)
	inboxCmd.AddCommand(inboxListCmd, inboxAddCmd, inboxUpdateCmd, inboxSelectCmd, inboxRemoveCmd, inboxBackfillCmd)

	inboxAddCmd.Flags().StringVar(&inboxName, "name", "", "display name")
	inboxAddCmd.Flags().StringVar(&inboxDeploymentURL, "url", "http://localhost:2024", "deployment URL")

	inboxUpdateCmd.Flags().StringVar(&inboxName, "name", "", "new display name")
	inboxUpdateCmd.Flags().StringVar(&inboxDeploymentURL, "url", "", "new deployment URL")
	inboxUpdateCmd.Flags().StringVar(&inboxGraphID, "graph", "", "new graph id")
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Manage agent inboxes",
}

var inboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured inboxes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, false)

		inboxes := a.Inboxes()
		if len(inboxes) == 0 {
			fmt.Fprintln(os.Stdout, "No inboxes configured. Add one with: agentinbox inbox add <graph-id> --url <deployment-url>")
			return nil
		}
		return view.WriteInboxes(os.Stdout, inboxes)
	},
}

var inboxAddCmd = &cobra.Command{
	Use:   "add <graph-id>",
	Short: "Add an inbox for a graph deployment and select it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, false)

		ib, _, err := a.AddInbox(cmd.Context(), types.AgentInbox{
			GraphID:       args[0],
			DeploymentURL: inboxDeploymentURL,
			Name:          inboxName,
		}, params.Query{})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Added inbox %s\n", inboxLabel(ib))
		return nil
	},
}

var inboxUpdateCmd = &cobra.Command{
	Use:   "update <inbox-id>",
	Short: "Change the name, URL or graph of an inbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, false)

		ib, err := a.Inbox(types.InboxID(args[0]))
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("name") {
			ib.Name = inboxName
		}
		if inboxDeploymentURL != "" {
			ib.DeploymentURL = inboxDeploymentURL
		}
		if inboxGraphID != "" {
			ib.GraphID = inboxGraphID
		}
		if err := a.UpdateInbox(ib); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Updated inbox %s\n", inboxLabel(ib))
		return nil
	},
}

var inboxSelectCmd = &cobra.Command{
	Use:   "select <inbox-id>",
	Short: "Make an inbox the selected one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, false)

		if _, err := a.SelectInbox(types.InboxID(args[0]), params.Query{}); err != nil {
			return err
		}
		ib, _ := a.SelectedInbox()
		fmt.Fprintf(os.Stdout, "Selected inbox %s\n", inboxLabel(ib))
		return nil
	},
}

var inboxRemoveCmd = &cobra.Command{
	Use:     "remove <inbox-id>",
	Aliases: []string{"rm"},
	Short:   "Remove an inbox",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, false)

		if _, err := a.RemoveInbox(types.InboxID(args[0]), params.Query{}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Removed inbox %s\n", args[0])
		if ib, ok := a.SelectedInbox(); ok {
			fmt.Fprintf(os.Stdout, "Selected inbox is now %s\n", inboxLabel(ib))
		}
		return nil
	},
}

var inboxBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rewrite deployed inbox ids to their deployment-scoped form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, true)

		a.Backfill(cmd.Context(), params.Query{})
		return view.WriteInboxes(os.Stdout, a.Inboxes())
	},
}
