package view

import (
	"fmt"
	"strings"

	"github.com/user/agentinbox/internal/types"
)

// ThreadLink is the shareable dashboard path of a thread under baseURL.
func ThreadLink(baseURL, threadID string) string {
	return strings.TrimRight(baseURL, "/") + "/threads/" + threadID
}

// NotificationText announces threads that started waiting for a response.
func NotificationText(list []types.ThreadData, baseURL string, p *Previewer) string {
	var b strings.Builder
	if len(list) == 1 {
		b.WriteString("A thread needs your attention:\n")
	} else {
		fmt.Fprintf(&b, "%d threads need your attention:\n", len(list))
	}
	writeThreadLines(&b, list, baseURL, p)
	return strings.TrimRight(b.String(), "\n")
}

// PendingText lists the currently interrupted threads.
func PendingText(list []types.ThreadData, baseURL string, p *Previewer) string {
	if len(list) == 0 {
		return "No threads are waiting for a response."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending:\n", len(list))
	writeThreadLines(&b, list, baseURL, p)
	return strings.TrimRight(b.String(), "\n")
}

func writeThreadLines(b *strings.Builder, list []types.ThreadData, baseURL string, p *Previewer) {
	for _, td := range list {
		fmt.Fprintf(b, "\n• %s", ThreadTitle(td))
		if summary := ThreadSummary(td, p); summary != "" {
			fmt.Fprintf(b, ": %s", summary)
		}
		fmt.Fprintf(b, "\n  %s\n", ThreadLink(baseURL, td.Thread.ThreadID))
	}
}
