package threads

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/user/agentinbox/internal/toast"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
)

// Store holds the current page of threads. A successful fetch replaces the
// whole list; a failed one leaves it untouched. Listing never touches the
// sync timestamp, which only the background sync advances.
type Store struct {
	fetcher *Fetcher
	notify  types.Notifier

	mu      sync.RWMutex
	threads []types.ThreadData
	hasMore bool
	loading bool
}

// NewStore creates a Store. notify may be nil.
func NewStore(fetcher *Fetcher, notify types.Notifier) *Store {
	return &Store{fetcher: fetcher, notify: notify}
}

// Fetch loads one page into the store. Loading is always cleared on return.
func (s *Store) Fetch(ctx context.Context, backend langgraph.Backend, p FetchParams) error {
	s.setLoading(true)
	defer s.setLoading(false)

	page, err := s.fetcher.FetchThreads(ctx, backend, p)
	if err != nil {
		slog.Error("fetching threads failed", "status", p.Status, "error", err)
		if s.notify != nil {
			s.notify.Notify(toast.Error("Failed to fetch threads", err.Error()))
		}
		return err
	}

	s.mu.Lock()
	s.threads = page.Threads
	s.hasMore = p.Limit != nil && page.Returned == *p.Limit
	s.mu.Unlock()
	return nil
}

// Threads returns a copy of the current list.
func (s *Store) Threads() []types.ThreadData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ThreadData(nil), s.threads...)
}

// Get returns the listed thread with id.
func (s *Store) Get(threadID string) (types.ThreadData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, td := range s.threads {
		if td.Thread.ThreadID == threadID {
			return td, true
		}
	}
	return types.ThreadData{}, false
}

// Upsert replaces the listed thread with the same id, if present.
func (s *Store) Upsert(td types.ThreadData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.threads {
		if s.threads[i].Thread.ThreadID == td.Thread.ThreadID {
			s.threads[i] = td
			return
		}
	}
}

// HasMore reports whether the last page was full.
func (s *Store) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// LatestUpdate returns the newest updated_at among threads.
func LatestUpdate(threads []types.ThreadData) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, td := range threads {
		t, ok := ParseTime(td.Thread.UpdatedAt)
		if !ok {
			continue
		}
		if !found || t.After(latest) {
			latest, found = t, true
		}
	}
	return latest, found
}

// LastSyncedAt reads the stored sync timestamp.
func LastSyncedAt(prefs types.Preferences) (time.Time, bool) {
	raw, ok := prefs.Get(types.PrefLastSyncedAt)
	if !ok {
		return time.Time{}, false
	}
	var t time.Time
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetLastSyncedAt stores t JSON-encoded.
func SetLastSyncedAt(prefs types.Preferences, t time.Time) error {
	data, err := json.Marshal(t.UTC())
	if err != nil {
		return err
	}
	return prefs.Set(types.PrefLastSyncedAt, string(data))
}
