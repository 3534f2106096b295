package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
	"github.com/user/agentinbox/pkg/langgraph/langgraphtest"
)

func intPtr(n int) *int { return &n }

func page(offset, limit int, status types.StatusFilter) FetchParams {
	return FetchParams{Status: status, Offset: intPtr(offset), Limit: intPtr(limit)}
}

func TestFetchRequiresPagination(t *testing.T) {
	t.Parallel()
	f := NewFetcher(0)
	backend := langgraphtest.NewFake()

	_, err := f.FetchThreads(context.Background(), backend, FetchParams{Status: "interrupted", Limit: intPtr(10)})
	require.ErrorIs(t, err, ErrPaginationRequired)
	_, err = f.FetchThreads(context.Background(), backend, FetchParams{Status: "interrupted", Offset: intPtr(0)})
	require.ErrorIs(t, err, ErrPaginationRequired)
	require.Empty(t, backend.Searches, "no request without pagination")
}

func TestFetchSearchRequest(t *testing.T) {
	t.Parallel()
	f := NewFetcher(0)
	backend := langgraphtest.NewFake()

	meta := map[string]any{"graph_id": "agent"}
	p := page(20, 10, types.FilterAll)
	p.Metadata = meta
	_, err := f.FetchThreads(context.Background(), backend, p)
	require.NoError(t, err)

	_, err = f.FetchThreads(context.Background(), backend, page(0, 5, types.StatusFilter(types.StatusError)))
	require.NoError(t, err)

	require.Len(t, backend.Searches, 2)
	require.Equal(t, langgraph.SearchRequest{Metadata: meta, Offset: 20, Limit: 10}, backend.Searches[0])
	require.Equal(t, "error", backend.Searches[1].Status)
}

func TestFetchSortsNewestFirst(t *testing.T) {
	t.Parallel()
	f := NewFetcher(0)
	backend := langgraphtest.NewFake(
		langgraph.Thread{ThreadID: "a", Status: "idle", CreatedAt: "2024-01-01"},
		langgraph.Thread{ThreadID: "b", Status: "idle", CreatedAt: "2024-01-02"},
	)

	result, err := f.FetchThreads(context.Background(), backend, page(0, 10, types.FilterAll))
	require.NoError(t, err)
	require.Len(t, result.Threads, 2)
	require.Equal(t, "b", result.Threads[0].Thread.ThreadID)
	require.Equal(t, "a", result.Threads[1].Thread.ThreadID)
}

func TestFetchLegacyFallback(t *testing.T) {
	t.Parallel()
	f := NewFetcher(0)
	backend := langgraphtest.NewFake(
		langgraph.Thread{ThreadID: "inline", Status: "interrupted", CreatedAt: "2024-01-03",
			Interrupts: json.RawMessage(`{"t":[{"value":` + sampleInterrupt + `}]}`)},
		langgraph.Thread{ThreadID: "legacy", Status: "interrupted", CreatedAt: "2024-01-02"},
		langgraph.Thread{ThreadID: "partial", Status: "interrupted", CreatedAt: "2024-01-01"},
	)
	backend.States["legacy"] = &langgraph.ThreadState{Tasks: []langgraph.ThreadTask{
		{Interrupts: []langgraph.Interrupt{{Value: json.RawMessage(sampleInterrupt)}}},
	}}
	backend.States["partial"] = &langgraph.ThreadState{Tasks: []langgraph.ThreadTask{
		{Interrupts: []langgraph.Interrupt{{When: "during"}}},
	}}

	var lookedUp []string
	f.onBatch = func(ids []string) { lookedUp = append(lookedUp, ids...) }

	result, err := f.FetchThreads(context.Background(), backend, page(0, 10, "interrupted"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"legacy", "partial"}, lookedUp)

	require.Len(t, result.Threads, 3)
	require.Len(t, result.Threads[0].Interrupts, 1)
	require.Len(t, result.Threads[1].Interrupts, 1)
	require.Equal(t, "legacy", result.Threads[1].Thread.ThreadID)
	require.Equal(t, types.StatusInterrupted, result.Threads[2].Status)
	require.Nil(t, result.Threads[2].Interrupts)
}

func TestFetchBatchesStateLookups(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 24, 25, 26, 60} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()

			var threads []langgraph.Thread
			for i := 0; i < n; i++ {
				threads = append(threads, langgraph.Thread{
					ThreadID:  fmt.Sprintf("t%03d", i),
					Status:    "interrupted",
					CreatedAt: time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC).Format(time.RFC3339),
				})
			}
			backend := langgraphtest.NewFake(threads...)

			var inFlight, peak atomic.Int32
			backend.GetStateFunc = func(ctx context.Context, id string) (*langgraph.ThreadState, error) {
				cur := inFlight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return &langgraph.ThreadState{}, nil
			}

			f := NewFetcher(0)
			var mu sync.Mutex
			var batches []int
			f.onBatch = func(ids []string) {
				// No lookup from an earlier batch may still be running.
				require.Zero(t, inFlight.Load())
				mu.Lock()
				batches = append(batches, len(ids))
				mu.Unlock()
			}

			_, err := f.FetchThreads(context.Background(), backend, page(0, n, "interrupted"))
			require.NoError(t, err)

			want := (n + DefaultBatchSize - 1) / DefaultBatchSize
			require.Len(t, batches, want)
			for i, size := range batches {
				if i < want-1 {
					require.Equal(t, DefaultBatchSize, size)
				}
			}
			require.LessOrEqual(t, int(peak.Load()), DefaultBatchSize)
		})
	}
}

func TestFetchStateMismatchIsError(t *testing.T) {
	t.Parallel()
	backend := langgraphtest.NewFake(langgraph.Thread{ThreadID: "t1", Status: "interrupted"})
	backend.GetStateFunc = func(ctx context.Context, id string) (*langgraph.ThreadState, error) {
		return &langgraph.ThreadState{Checkpoint: json.RawMessage(`{"thread_id":"someone-else"}`)}, nil
	}

	_, err := NewFetcher(0).FetchThreads(context.Background(), backend, page(0, 10, "interrupted"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "someone-else")
}

func TestFetchStateErrorAborts(t *testing.T) {
	t.Parallel()
	backend := langgraphtest.NewFake(langgraph.Thread{ThreadID: "t1", Status: "interrupted"})
	boom := errors.New("boom")
	backend.GetStateFunc = func(ctx context.Context, id string) (*langgraph.ThreadState, error) {
		return nil, boom
	}

	_, err := NewFetcher(0).FetchThreads(context.Background(), backend, page(0, 10, "interrupted"))
	require.ErrorIs(t, err, boom)
}

func TestFetchSingleThread(t *testing.T) {
	t.Parallel()
	backend := langgraphtest.NewFake(langgraph.Thread{ThreadID: "t1", Status: "interrupted"})
	backend.States["t1"] = &langgraph.ThreadState{Tasks: []langgraph.ThreadTask{
		{Interrupts: []langgraph.Interrupt{{Value: json.RawMessage(sampleInterrupt)}}},
	}}

	td, err := FetchSingleThread(context.Background(), backend, "t1")
	require.NoError(t, err)
	require.Len(t, td.Interrupts, 1)
	require.Equal(t, "send_email", td.Interrupts[0].ActionRequest.Action)

	_, err = FetchSingleThread(context.Background(), backend, "missing")
	require.Error(t, err)
}

// TestSortDescendingProperty verifies that any set of distinct creation
// times comes back strictly newest first.
func TestSortDescendingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(rt, "n")
		minutes := rapid.SliceOfNDistinct(rapid.IntRange(0, 100000), n, n, rapid.ID[int]).Draw(rt, "minutes")
		dateOnly := rapid.Bool().Draw(rt, "dateOnly")

		base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		threads := make([]types.ThreadData, n)
		for i, m := range minutes {
			ts := base.Add(time.Duration(m) * time.Minute)
			created := ts.Format(time.RFC3339)
			if dateOnly {
				ts = base.AddDate(0, 0, m)
				created = ts.Format("2006-01-02")
			}
			threads[i] = types.ThreadData{Thread: langgraph.Thread{ThreadID: fmt.Sprint(i), CreatedAt: created}}
		}

		sortByCreatedDesc(threads)
		for i := 1; i < len(threads); i++ {
			prev, _ := ParseTime(threads[i-1].Thread.CreatedAt)
			cur, _ := ParseTime(threads[i].Thread.CreatedAt)
			require.True(rt, prev.After(cur), "%s should be after %s", prev, cur)
		}
	})
}
