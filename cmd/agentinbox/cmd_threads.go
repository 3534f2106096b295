package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/internal/view"
)

var (
	threadsStatus string
	threadsOffset int
	threadsLimit  int
)

func init() {
	rootCmd.AddCommand(threadsCmd, threadCmd)
	threadsCmd.AddCommand(threadsListCmd)
	threadCmd.AddCommand(threadShowCmd)

	threadsListCmd.Flags().StringVar(&threadsStatus, "status", string(params.DefaultStatus), "interrupted, idle, busy, error or all")
	threadsListCmd.Flags().IntVar(&threadsOffset, "offset", 0, "number of threads to skip")
	threadsListCmd.Flags().IntVar(&threadsLimit, "limit", 0, "page size (default from inbox.default_limit)")
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Browse threads of the selected inbox",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, ok := types.ParseStatusFilter(threadsStatus)
		if !ok {
			return fmt.Errorf("unknown status %q", threadsStatus)
		}
		if threadsOffset < 0 || threadsLimit < 0 {
			return fmt.Errorf("offset and limit must not be negative")
		}

		_, a := newApp()
		defer printToasts(a, false)

		patch := map[string]string{
			params.Inbox:  string(status),
			params.Offset: strconv.Itoa(threadsOffset),
		}
		if threadsLimit > 0 {
			patch[params.Limit] = strconv.Itoa(threadsLimit)
		}
		q, _ := a.ResolveQuery(params.Query{}.Update(patch))

		list, err := a.ListThreads(cmd.Context(), q)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stdout, "No threads found.")
			return nil
		}
		if err := view.WriteThreads(os.Stdout, list, a.Previewer()); err != nil {
			return err
		}
		if a.HasMore() {
			fmt.Fprintf(os.Stdout, "\nMore threads available: --offset %s\n", q.NextPage().Get(params.Offset))
		}
		return nil
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect a single thread",
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Show a thread's interrupt, allowed actions and state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a := newApp()
		defer printToasts(a, false)

		td, _, err := a.Thread(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return view.WriteThreadDetail(os.Stdout, td, a.Previewer())
	},
}
