// Package threads fetches threads from a deployment and normalizes their
// interrupt payloads.
package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
)

// DefaultBatchSize bounds the number of concurrent state lookups.
const DefaultBatchSize = 25

var ErrPaginationRequired = errors.New("offset and limit are required")

// FetchParams selects one page of threads.
type FetchParams struct {
	Status   types.StatusFilter
	Offset   *int
	Limit    *int
	Metadata map[string]any
}

// Fetcher runs the search, normalize, lookup, sort pipeline.
type Fetcher struct {
	batchSize int
	// onBatch observes each batch of state lookups before it runs.
	onBatch func(threadIDs []string)
}

// NewFetcher creates a Fetcher. batchSize <= 0 uses DefaultBatchSize.
func NewFetcher(batchSize int) *Fetcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Fetcher{batchSize: batchSize}
}

// Page is the result of FetchThreads.
type Page struct {
	Threads []types.ThreadData
	// Returned is the number of threads the search returned.
	Returned int
}

// FetchThreads returns one normalized page sorted newest first.
func (f *Fetcher) FetchThreads(ctx context.Context, backend langgraph.Backend, p FetchParams) (*Page, error) {
	if p.Offset == nil || p.Limit == nil {
		return nil, ErrPaginationRequired
	}

	req := langgraph.SearchRequest{
		Metadata: p.Metadata,
		Offset:   *p.Offset,
		Limit:    *p.Limit,
	}
	if p.Status != "" && p.Status != types.FilterAll {
		req.Status = string(p.Status)
	}

	found, err := backend.SearchThreads(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search threads: %w", err)
	}

	results := make([]types.ThreadData, 0, len(found))
	var pending []int
	for _, thread := range found {
		n := normalize(thread)
		results = append(results, n.data)
		if n.needsState {
			pending = append(pending, len(results)-1)
		}
	}

	if len(pending) > 0 {
		if err := f.lookupStates(ctx, backend, results, pending); err != nil {
			return nil, err
		}
	}

	sortByCreatedDesc(results)
	slog.Debug("threads fetched", "status", p.Status, "offset", *p.Offset, "limit", *p.Limit,
		"returned", len(found), "state_lookups", len(pending))
	return &Page{Threads: results, Returned: len(found)}, nil
}

// lookupStates fetches state for results[pending...] in sequential
// batches, each batch in parallel, and merges the interrupts back by
// thread id.
func (f *Fetcher) lookupStates(ctx context.Context, backend langgraph.Backend, results []types.ThreadData, pending []int) error {
	byID := make(map[string]int, len(pending))
	for _, i := range pending {
		byID[results[i].Thread.ThreadID] = i
	}

	for start := 0; start < len(pending); start += f.batchSize {
		end := min(start+f.batchSize, len(pending))
		batch := pending[start:end]

		ids := make([]string, len(batch))
		for j, i := range batch {
			ids[j] = results[i].Thread.ThreadID
		}
		if f.onBatch != nil {
			f.onBatch(ids)
		}

		states := make([]*langgraph.ThreadState, len(ids))
		g, gctx := errgroup.WithContext(ctx)
		for j, id := range ids {
			g.Go(func() error {
				state, err := backend.GetState(gctx, id)
				if err != nil {
					return fmt.Errorf("get state for thread %s: %w", id, err)
				}
				states[j] = state
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for j, state := range states {
			threadID := stateThreadID(state, ids[j])
			i, ok := byID[threadID]
			if !ok {
				return fmt.Errorf("no thread found for state of thread %s", threadID)
			}
			applyState(&results[i], state)
		}
	}
	return nil
}

// stateThreadID returns the thread id recorded in the state checkpoint,
// or fallback when the checkpoint does not name one.
func stateThreadID(state *langgraph.ThreadState, fallback string) string {
	if state == nil || isNull(state.Checkpoint) {
		return fallback
	}
	var cp struct {
		ThreadID string `json:"thread_id"`
	}
	if err := json.Unmarshal(state.Checkpoint, &cp); err != nil || cp.ThreadID == "" {
		return fallback
	}
	return cp.ThreadID
}

// FetchSingleThread fetches and normalizes one thread.
func FetchSingleThread(ctx context.Context, backend langgraph.Backend, threadID string) (types.ThreadData, error) {
	thread, err := backend.GetThread(ctx, threadID)
	if err != nil {
		return types.ThreadData{}, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	n := normalize(*thread)
	if n.needsState {
		state, err := backend.GetState(ctx, threadID)
		if err != nil {
			return types.ThreadData{}, fmt.Errorf("get state for thread %s: %w", threadID, err)
		}
		applyState(&n.data, state)
	}
	return n.data, nil
}
