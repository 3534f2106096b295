package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
)

type mockSyncer struct {
	calls  atomic.Int32
	result []types.ThreadData
	err    error
}

func (m *mockSyncer) SyncNew(ctx context.Context) ([]types.ThreadData, error) {
	m.calls.Add(1)
	return m.result, m.err
}

type mockBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockBroadcaster) Broadcast(_ context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *mockBroadcaster) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func newThread(id string) types.ThreadData {
	return types.ThreadData{
		Status: types.StatusInterrupted,
		Thread: langgraph.Thread{ThreadID: id},
		Interrupts: []types.HumanInterrupt{{
			ActionRequest: types.ActionRequest{Action: "send_email"},
			Description:   "Send it?",
		}},
	}
}

func TestRunOnceBroadcastsNewThreads(t *testing.T) {
	syncer := &mockSyncer{result: []types.ThreadData{newThread("t1")}}
	out := &mockBroadcaster{}
	sched := New(syncer, out, "@every 1h", "http://127.0.0.1:3000", nil)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if out.count() != 1 {
		t.Fatalf("expected 1 message, got %d", out.count())
	}
	if !strings.Contains(out.messages[0], "http://127.0.0.1:3000/threads/t1") {
		t.Errorf("expected thread link in message, got %q", out.messages[0])
	}
}

func TestRunOnceQuietWhenNothingNew(t *testing.T) {
	syncer := &mockSyncer{}
	out := &mockBroadcaster{}
	sched := New(syncer, out, "@every 1h", "http://x", nil)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if out.count() != 0 {
		t.Errorf("expected no messages, got %d", out.count())
	}
}

func TestRunOnceSyncError(t *testing.T) {
	syncer := &mockSyncer{err: errors.New("backend down")}
	sched := New(syncer, &mockBroadcaster{}, "@every 1h", "http://x", nil)

	if err := sched.RunOnce(context.Background()); err == nil {
		t.Fatal("expected sync error")
	}
}

func TestSchedulerFiresSync(t *testing.T) {
	syncer := &mockSyncer{result: []types.ThreadData{newThread("t1")}}
	out := &mockBroadcaster{}
	sched := New(syncer, out, "* * * * * *", "http://x", nil)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("sync did not fire within 2.5s, calls=%d", syncer.calls.Load())
		case <-ticker.C:
			if syncer.calls.Load() > 0 && out.count() > 0 {
				return
			}
		}
	}
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	sched := New(&mockSyncer{}, &mockBroadcaster{}, "not a schedule", "http://x", nil)
	if err := sched.Start(context.Background()); err == nil {
		sched.Stop()
		t.Fatal("expected error for invalid schedule")
	}
	if err := ValidateSchedule("*/5 * * * *"); err != nil {
		t.Errorf("expected valid 5-field schedule, got %v", err)
	}
	if err := ValidateSchedule("nope"); err == nil {
		t.Error("expected invalid schedule error")
	}
}
