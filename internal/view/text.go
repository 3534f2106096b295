package view

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/user/agentinbox/internal/types"
)

// ThreadTitle names a thread by its pending action, falling back to a
// short id.
func ThreadTitle(td types.ThreadData) string {
	if len(td.Interrupts) > 0 && td.Interrupts[0].ActionRequest.Action != "" {
		return PrettifyKey(td.Interrupts[0].ActionRequest.Action)
	}
	id := td.Thread.ThreadID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Thread " + id
}

// ThreadSummary is a one-line preview of the pending interrupt.
func ThreadSummary(td types.ThreadData, p *Previewer) string {
	switch {
	case td.InvalidSchema:
		return "Invalid interrupt schema, open to inspect state"
	case len(td.Interrupts) == 0:
		if td.Status.IsInterrupted() {
			return "No interrupt details available"
		}
		return ""
	}
	desc := MarkdownText(td.Interrupts[0].Description)
	desc = strings.Join(strings.Fields(desc), " ")
	return p.Truncate(desc)
}

// AllowedActions lists the response types an interrupt accepts.
func AllowedActions(cfg types.HumanInterruptConfig) []types.ResponseType {
	var out []types.ResponseType
	if cfg.AllowAccept {
		out = append(out, types.ResponseAccept)
	}
	if cfg.AllowEdit {
		out = append(out, types.ResponseEdit)
	}
	if cfg.AllowRespond {
		out = append(out, types.ResponseResponse)
	}
	if cfg.AllowIgnore {
		out = append(out, types.ResponseIgnore)
	}
	return out
}

// WriteInboxes prints the inbox table.
func WriteInboxes(out io.Writer, inboxes []types.AgentInbox) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SELECTED\tID\tNAME\tGRAPH\tDEPLOYMENT URL")
	for _, ib := range inboxes {
		mark := ""
		if ib.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, ib.ID, ib.DisplayName(), ib.GraphID, ib.DeploymentURL)
	}
	return w.Flush()
}

// WriteThreads prints one line per thread.
func WriteThreads(out io.Writer, list []types.ThreadData, p *Previewer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "THREAD ID\tSTATUS\tCREATED\tTITLE\tSUMMARY")
	for _, td := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			td.Thread.ThreadID,
			td.Status,
			FormatTimestamp(td.Thread.CreatedAt),
			ThreadTitle(td),
			ThreadSummary(td, p),
		)
	}
	return w.Flush()
}

// WriteThreadDetail prints a thread with its interrupt and state.
func WriteThreadDetail(out io.Writer, td types.ThreadData, p *Previewer) error {
	fmt.Fprintf(out, "%s\n", ThreadTitle(td))
	fmt.Fprintf(out, "Thread:  %s\n", td.Thread.ThreadID)
	fmt.Fprintf(out, "Status:  %s\n", td.Status)
	fmt.Fprintf(out, "Created: %s\n", FormatTimestamp(td.Thread.CreatedAt))
	fmt.Fprintf(out, "Updated: %s\n", FormatTimestamp(td.Thread.UpdatedAt))

	if td.InvalidSchema {
		fmt.Fprintln(out, "\nThe interrupt payload does not match the expected schema.")
	}

	for i, hi := range td.Interrupts {
		if len(td.Interrupts) > 1 {
			fmt.Fprintf(out, "\nInterrupt %d of %d\n", i+1, len(td.Interrupts))
		}
		fmt.Fprintf(out, "\nAction: %s\n", hi.ActionRequest.Action)
		if desc := MarkdownText(hi.Description); desc != "" {
			fmt.Fprintf(out, "\n%s\n", desc)
		}
		if len(hi.ActionRequest.Args) > 0 {
			fmt.Fprintln(out, "\nArguments:")
			keys := make([]string, 0, len(hi.ActionRequest.Args))
			for k := range hi.ActionRequest.Args {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, k := range keys {
				value, _ := FormatValue(hi.ActionRequest.Args[k])
				fmt.Fprintf(w, "  %s\t%s\n", k, indentContinuation(value, "    "))
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
		allowed := AllowedActions(hi.Config)
		names := make([]string, len(allowed))
		for j, a := range allowed {
			names[j] = string(a)
		}
		fmt.Fprintf(out, "\nAllowed: %s\n", strings.Join(names, ", "))
	}

	if rows := StateRows(td.Thread.Values, p); len(rows) > 0 {
		fmt.Fprintln(out, "\nState:")
		for _, row := range rows {
			fmt.Fprintf(out, "  %s: %s\n", row.Key, indentContinuation(row.Value, "    "))
		}
	}
	return nil
}

func indentContinuation(s, indent string) string {
	return strings.ReplaceAll(s, "\n", "\n"+indent)
}
