package langgraph

import "encoding/json"

// Thread is a single persisted execution on the backend. Values and
// Interrupts are kept raw because their shape depends on the graph and on
// the backend version.
type Thread struct {
	ThreadID   string          `json:"thread_id"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Status     string          `json:"status"`
	Values     json.RawMessage `json:"values,omitempty"`
	Interrupts json.RawMessage `json:"interrupts,omitempty"`
}

// ThreadState is the checkpointed state of a thread.
type ThreadState struct {
	Values     json.RawMessage `json:"values,omitempty"`
	Next       []string        `json:"next,omitempty"`
	Tasks      []ThreadTask    `json:"tasks,omitempty"`
	Checkpoint json.RawMessage `json:"checkpoint,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	CreatedAt  string          `json:"created_at,omitempty"`
}

// ThreadTask is one pending task of a thread state.
type ThreadTask struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Interrupts []Interrupt `json:"interrupts,omitempty"`
}

// Interrupt is a raw interrupt entry. Value is nil when the backend did not
// send one.
type Interrupt struct {
	Value     json.RawMessage `json:"value,omitempty"`
	When      string          `json:"when,omitempty"`
	Resumable bool            `json:"resumable,omitempty"`
	NS        []string        `json:"ns,omitempty"`
}

// SearchRequest is the body of a thread search.
type SearchRequest struct {
	Status   string         `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Offset   int            `json:"offset"`
	Limit    int            `json:"limit"`
}

// StateUpdate is the body of a state write. A nil Values is sent as JSON null.
type StateUpdate struct {
	Values any    `json:"values"`
	AsNode string `json:"as_node,omitempty"`
}

// Command carries the resume payload for an interrupted run.
type Command struct {
	Resume any `json:"resume,omitempty"`
}

// RunRequest starts a run on a thread.
type RunRequest struct {
	AssistantID string   `json:"assistant_id"`
	Command     *Command `json:"command,omitempty"`
	StreamMode  string   `json:"stream_mode,omitempty"`
}

// Run is the backend's record of a started run.
type Run struct {
	RunID       string `json:"run_id"`
	ThreadID    string `json:"thread_id"`
	AssistantID string `json:"assistant_id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// StreamPart is one server-sent event of a streamed run. Err is set on the
// final part when the stream broke off.
type StreamPart struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Err   error           `json:"-"`
}

// Info describes a deployment.
type Info struct {
	Version string `json:"version,omitempty"`
	Host    *struct {
		Kind       string `json:"kind,omitempty"`
		ProjectID  string `json:"project_id,omitempty"`
		RevisionID string `json:"revision_id,omitempty"`
	} `json:"host,omitempty"`
}

// ProjectID returns the hosting project id, or "" for local deployments.
func (i *Info) ProjectID() string {
	if i == nil || i.Host == nil {
		return ""
	}
	return i.Host.ProjectID
}
