package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/agentinbox/internal/threads"
	"github.com/user/agentinbox/internal/types"
)

// Pending fetches the first page of interrupted threads of the selected
// inbox. The listed page is left untouched and configuration errors are
// logged, not toasted, since no dashboard user triggered the call.
func (a *App) Pending(ctx context.Context, limit int) ([]types.ThreadData, error) {
	client, err := a.backends.BackgroundClient(a.inboxes.List())
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = a.limit
	}
	offset := 0
	page, err := a.fetcher.FetchThreads(ctx, client, threads.FetchParams{
		Status:   types.StatusFilter(types.StatusInterrupted),
		Offset:   &offset,
		Limit:    &limit,
		Metadata: a.inboxes.FilterMetadata(),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending threads: %w", err)
	}
	return page.Threads, nil
}

// SyncNew returns the interrupted threads updated since the last sync and
// advances the sync timestamp. The first sync only records the timestamp.
func (a *App) SyncNew(ctx context.Context) ([]types.ThreadData, error) {
	prev, seen := threads.LastSyncedAt(a.prefs)
	list, err := a.Pending(ctx, 0)
	if err != nil {
		return nil, err
	}

	var fresh []types.ThreadData
	if seen {
		for _, td := range list {
			if t, ok := threads.ParseTime(td.Thread.UpdatedAt); ok && t.After(prev) {
				fresh = append(fresh, td)
			}
		}
	}

	if latest, ok := threads.LatestUpdate(list); ok && (!seen || latest.After(prev)) {
		if err := threads.SetLastSyncedAt(a.prefs, latest); err != nil {
			slog.Warn("saving last sync time failed", "error", err)
		}
	}
	slog.Debug("sync complete", "pending", len(list), "new", len(fresh))
	return fresh, nil
}
