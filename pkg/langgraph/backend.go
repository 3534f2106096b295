package langgraph

import (
	"context"
	"time"
)

// Backend defines the thread, state and run operations of a workflow
// deployment. Implementations handle transport details such as
// authentication and stream framing.
type Backend interface {
	// SearchThreads returns one page of threads matching req.
	SearchThreads(ctx context.Context, req SearchRequest) ([]Thread, error)

	// GetThread fetches a single thread.
	GetThread(ctx context.Context, threadID string) (*Thread, error)

	// GetState fetches the current checkpointed state of a thread.
	GetState(ctx context.Context, threadID string) (*ThreadState, error)

	// UpdateState writes values to a thread as if emitted by update.AsNode.
	UpdateState(ctx context.Context, threadID string, update StateUpdate) error

	// CreateRun starts a run and returns without waiting for it.
	CreateRun(ctx context.Context, threadID string, req RunRequest) (*Run, error)

	// StreamRun starts a run and returns its events. The channel is closed
	// when the run ends or ctx is cancelled.
	StreamRun(ctx context.Context, threadID string, req RunRequest) (<-chan StreamPart, error)

	// Info describes the deployment.
	Info(ctx context.Context) (*Info, error)
}

// Config holds connection settings for a deployment.
type Config struct {
	DeploymentURL string
	APIKey        string
	Timeout       time.Duration
}

// Sentinel node names understood by UpdateState.
const (
	NodeStart = "__start__"
	NodeEnd   = "__end__"
)

// StreamModeEvents requests fine-grained execution events.
const StreamModeEvents = "events"
