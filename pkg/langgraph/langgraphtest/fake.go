// Package langgraphtest provides an in-memory langgraph.Backend for tests.
package langgraphtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/user/agentinbox/pkg/langgraph"
)

// StateUpdateCall records one UpdateState call.
type StateUpdateCall struct {
	ThreadID string
	Update   langgraph.StateUpdate
}

// RunCall records one CreateRun or StreamRun call.
type RunCall struct {
	ThreadID string
	Request  langgraph.RunRequest
	Streamed bool
}

// Fake is a test double that satisfies langgraph.Backend. Unset funcs fall
// back to the Threads and States maps; search results are ordered by id.
type Fake struct {
	SearchFunc      func(ctx context.Context, req langgraph.SearchRequest) ([]langgraph.Thread, error)
	GetThreadFunc   func(ctx context.Context, threadID string) (*langgraph.Thread, error)
	GetStateFunc    func(ctx context.Context, threadID string) (*langgraph.ThreadState, error)
	UpdateStateFunc func(ctx context.Context, threadID string, update langgraph.StateUpdate) error
	CreateRunFunc   func(ctx context.Context, threadID string, req langgraph.RunRequest) (*langgraph.Run, error)
	StreamRunFunc   func(ctx context.Context, threadID string, req langgraph.RunRequest) (<-chan langgraph.StreamPart, error)
	InfoFunc        func(ctx context.Context) (*langgraph.Info, error)

	mu           sync.Mutex
	Threads      map[string]langgraph.Thread
	States       map[string]*langgraph.ThreadState
	Searches     []langgraph.SearchRequest
	StateUpdates []StateUpdateCall
	Runs         []RunCall
}

// NewFake returns a Fake serving threads.
func NewFake(threads ...langgraph.Thread) *Fake {
	f := &Fake{
		Threads: map[string]langgraph.Thread{},
		States:  map[string]*langgraph.ThreadState{},
	}
	for _, t := range threads {
		f.Threads[t.ThreadID] = t
	}
	return f
}

// SetThread stores or replaces a thread.
func (f *Fake) SetThread(t langgraph.Thread) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Threads == nil {
		f.Threads = map[string]langgraph.Thread{}
	}
	f.Threads[t.ThreadID] = t
}

func (f *Fake) SearchThreads(ctx context.Context, req langgraph.SearchRequest) ([]langgraph.Thread, error) {
	f.mu.Lock()
	f.Searches = append(f.Searches, req)
	f.mu.Unlock()
	if f.SearchFunc != nil {
		return f.SearchFunc(ctx, req)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []langgraph.Thread
	for _, t := range f.Threads {
		if req.Status == "" || t.Status == req.Status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThreadID < out[j].ThreadID })
	if req.Offset >= len(out) {
		return []langgraph.Thread{}, nil
	}
	out = out[req.Offset:]
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (f *Fake) GetThread(ctx context.Context, threadID string) (*langgraph.Thread, error) {
	if f.GetThreadFunc != nil {
		return f.GetThreadFunc(ctx, threadID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.Threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread not found: %s", threadID)
	}
	return &t, nil
}

func (f *Fake) GetState(ctx context.Context, threadID string) (*langgraph.ThreadState, error) {
	if f.GetStateFunc != nil {
		return f.GetStateFunc(ctx, threadID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.States[threadID]; ok {
		return s, nil
	}
	return &langgraph.ThreadState{}, nil
}

func (f *Fake) UpdateState(ctx context.Context, threadID string, update langgraph.StateUpdate) error {
	f.mu.Lock()
	f.StateUpdates = append(f.StateUpdates, StateUpdateCall{ThreadID: threadID, Update: update})
	f.mu.Unlock()
	if f.UpdateStateFunc != nil {
		return f.UpdateStateFunc(ctx, threadID, update)
	}
	return nil
}

func (f *Fake) CreateRun(ctx context.Context, threadID string, req langgraph.RunRequest) (*langgraph.Run, error) {
	f.mu.Lock()
	f.Runs = append(f.Runs, RunCall{ThreadID: threadID, Request: req})
	f.mu.Unlock()
	if f.CreateRunFunc != nil {
		return f.CreateRunFunc(ctx, threadID, req)
	}
	return &langgraph.Run{RunID: "run-1", ThreadID: threadID, AssistantID: req.AssistantID, Status: "pending"}, nil
}

func (f *Fake) StreamRun(ctx context.Context, threadID string, req langgraph.RunRequest) (<-chan langgraph.StreamPart, error) {
	f.mu.Lock()
	f.Runs = append(f.Runs, RunCall{ThreadID: threadID, Request: req, Streamed: true})
	f.mu.Unlock()
	if f.StreamRunFunc != nil {
		return f.StreamRunFunc(ctx, threadID, req)
	}
	return Stream(langgraph.StreamPart{Event: "end"}), nil
}

func (f *Fake) Info(ctx context.Context) (*langgraph.Info, error) {
	if f.InfoFunc != nil {
		return f.InfoFunc(ctx)
	}
	return &langgraph.Info{}, nil
}

// RunCalls returns a copy of the recorded runs.
func (f *Fake) RunCalls() []RunCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RunCall(nil), f.Runs...)
}

// StateUpdateCalls returns a copy of the recorded state updates.
func (f *Fake) StateUpdateCalls() []StateUpdateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StateUpdateCall(nil), f.StateUpdates...)
}

// Stream returns a closed, buffered channel holding parts.
func Stream(parts ...langgraph.StreamPart) <-chan langgraph.StreamPart {
	ch := make(chan langgraph.StreamPart, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}

var _ langgraph.Backend = (*Fake)(nil)
