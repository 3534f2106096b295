// Package composer builds and submits the human response to one
// interrupted thread.
package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sync"

	"github.com/user/agentinbox/internal/threads"
	"github.com/user/agentinbox/internal/toast"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
)

var (
	ErrNoInterrupt    = errors.New("thread has no interrupt to respond to")
	ErrBusy           = errors.New("a submission is already in flight")
	ErrNotAllowed     = errors.New("response type not allowed by interrupt")
	ErrUnknownArg     = errors.New("unknown argument")
	ErrEmptyResponse  = errors.New("no response to submit")
	ErrRunFailed      = errors.New("run failed")
	ErrIgnoreDisabled = errors.New("ignore is not allowed for this interrupt")
)

// State is the composer lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateStreaming  State = "streaming"
	StateSettled    State = "settled"
	StateDone       State = "done"
)

// Result describes a finished submission.
type Result struct {
	Sent     types.HumanResponse
	Streamed bool
	// LastNode is the last graph node seen starting during the stream.
	LastNode string
	// Thread is the refetched thread, nil when no refetch happened.
	Thread *types.ThreadData
	// NavigateBack is set when the thread no longer needs a response.
	NavigateBack bool
	// StreamError is the message of an error event, if any.
	StreamError string
}

// Composer is the response form of one open thread. At most one
// submission runs at a time.
type Composer struct {
	graphID string
	notify  types.Notifier

	mu          sync.Mutex
	thread      types.ThreadData
	interrupt   types.HumanInterrupt
	responses   []types.HumanResponseWithEdits
	submitType  types.ResponseType
	state       State
	currentNode string
	busy        bool
}

// New opens a composer on the first interrupt of td. graphID is the
// assistant the run is resumed on. notify may be nil.
func New(td types.ThreadData, graphID string, notify types.Notifier) (*Composer, error) {
	if len(td.Interrupts) == 0 {
		return nil, ErrNoInterrupt
	}
	c := &Composer{graphID: graphID, notify: notify}
	c.reset(td)
	return c, nil
}

func (c *Composer) reset(td types.ThreadData) {
	c.thread = td
	c.interrupt = td.Interrupts[0]
	c.responses, c.submitType = DefaultResponses(c.interrupt)
	c.state = StateIdle
	c.currentNode = ""
}

// ThreadID returns the id of the thread being answered.
func (c *Composer) ThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thread.Thread.ThreadID
}

// Thread returns the thread as last fetched.
func (c *Composer) Thread() types.ThreadData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thread
}

// Interrupt returns the interrupt being answered.
func (c *Composer) Interrupt() types.HumanInterrupt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupt
}

// Responses returns a copy of the editable responses.
func (c *Composer) Responses() []types.HumanResponseWithEdits {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.HumanResponseWithEdits, len(c.responses))
	for i, r := range c.responses {
		if ar, ok := r.Args.(types.ActionRequest); ok {
			ar.Args = maps.Clone(ar.Args)
			r.Args = ar
		}
		out[i] = r
	}
	return out
}

// SubmitType returns the selected submit type.
func (c *Composer) SubmitType() types.ResponseType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitType
}

// State returns the lifecycle state.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentNode returns the graph node last reported by a running stream.
func (c *Composer) CurrentNode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentNode
}

// Busy reports whether a submission is in flight.
func (c *Composer) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// EditArg sets one argument of the edit response. Restoring every
// argument to its original value clears the edit flag again.
func (c *Composer) EditArg(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}

	i := c.indexOf(types.ResponseEdit)
	if i < 0 {
		return ErrNotAllowed
	}
	ar := c.responses[i].Args.(types.ActionRequest)
	if _, ok := ar.Args[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArg, key)
	}

	args := maps.Clone(ar.Args)
	args[key] = value
	ar.Args = args
	c.responses[i].Args = ar
	c.responses[i].EditsMade = !reflect.DeepEqual(args, editableArgs(c.interrupt.ActionRequest.Args))

	if c.responses[i].EditsMade {
		c.submitType = types.ResponseEdit
	} else if c.responses[i].AcceptAllowed {
		c.submitType = types.ResponseAccept
	}
	c.state = StateEditing
	return nil
}

// SetResponse sets the free-text response. A non-empty text selects the
// response submit type.
func (c *Composer) SetResponse(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}

	i := c.indexOf(types.ResponseResponse)
	if i < 0 {
		return ErrNotAllowed
	}
	c.responses[i].Args = text
	c.responses[i].EditsMade = text != ""
	if text != "" {
		c.submitType = types.ResponseResponse
	}
	c.state = StateEditing
	return nil
}

// SetSubmitType selects which response Submit sends.
func (c *Composer) SetSubmitType(t types.ResponseType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if !c.allowed(t) {
		return fmt.Errorf("%w: %s", ErrNotAllowed, t)
	}
	c.submitType = t
	return nil
}

// Reset discards all edits and rebuilds the defaults.
func (c *Composer) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.reset(c.thread)
	return nil
}

// Input returns the response Submit would send now.
func (c *Composer) Input() (types.HumanResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input()
}

func (c *Composer) input() (types.HumanResponse, bool) {
	for _, r := range buildInput(c.responses, c.interrupt.ActionRequest.Args) {
		if r.Type == c.submitType {
			return r, true
		}
	}
	return types.HumanResponse{}, false
}

// Submit sends the selected response. Accept, edit and response resume the
// run as a stream of events; ignore is sent without streaming. Cancelling
// ctx stops consuming the stream. On an error event the thread is
// refetched and the result is returned together with ErrRunFailed.
func (c *Composer) Submit(ctx context.Context, backend langgraph.Backend) (*Result, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	input, ok := c.input()
	if !ok {
		c.mu.Unlock()
		c.toast(toast.Error("Error", "No response was provided."))
		return nil, ErrEmptyResponse
	}
	threadID := c.thread.Thread.ThreadID
	c.busy = true
	c.state = StateSubmitting
	c.mu.Unlock()

	defer c.setBusy(false)

	req := langgraph.RunRequest{
		AssistantID: c.graphID,
		Command:     &langgraph.Command{Resume: []types.HumanResponse{input}},
	}

	if input.Type == types.ResponseIgnore {
		if _, err := backend.CreateRun(ctx, threadID, req); err != nil {
			c.setState(StateEditing)
			c.toast(toast.Error("Error", "Failed to submit response."))
			return nil, fmt.Errorf("create run: %w", err)
		}
		c.setState(StateDone)
		c.toast(toast.Info("Success", "Response submitted successfully."))
		return &Result{Sent: input, NavigateBack: true}, nil
	}

	req.StreamMode = langgraph.StreamModeEvents
	stream, err := backend.StreamRun(ctx, threadID, req)
	if err != nil {
		c.setState(StateEditing)
		c.toast(toast.Error("Error", "Failed to submit response."))
		return nil, fmt.Errorf("stream run: %w", err)
	}
	c.setState(StateStreaming)

	result := &Result{Sent: input, Streamed: true}
	streamErr, err := c.consume(ctx, stream, result)
	if err != nil {
		c.setState(StateEditing)
		return nil, err
	}

	refetched, ferr := threads.FetchSingleThread(ctx, backend, threadID)
	if ferr != nil {
		slog.Error("refetching thread failed", "thread_id", threadID, "error", ferr)
	} else {
		result.Thread = &refetched
	}

	if streamErr != "" {
		result.StreamError = streamErr
		c.settle(result.Thread, false)
		c.toast(toast.Error("Error", streamErr))
		return result, fmt.Errorf("%w: %s", ErrRunFailed, streamErr)
	}

	result.NavigateBack = result.Thread != nil && !result.Thread.Status.IsInterrupted()
	c.settle(result.Thread, result.NavigateBack)
	c.toast(toast.Info("Success", "Response submitted successfully."))
	return result, nil
}

// consume reads stream until it closes. It returns the message of an error
// event, or ctx's error if ctx ends first.
func (c *Composer) consume(ctx context.Context, stream <-chan langgraph.StreamPart, result *Result) (string, error) {
	for {
		select {
		case <-ctx.Done():
			// Drain in the background so the producer can exit.
			go func() {
				for range stream {
				}
			}()
			return "", ctx.Err()
		case part, ok := <-stream:
			if !ok {
				return "", nil
			}
			if part.Err != nil {
				return part.Err.Error(), nil
			}
			if part.Event == "error" {
				return errorMessage(part.Data), nil
			}
			if node := startedNode(part.Data); node != "" {
				result.LastNode = node
				c.mu.Lock()
				c.currentNode = node
				c.mu.Unlock()
			}
		}
	}
}

// settle records the refetched thread. A thread still interrupted gets
// fresh defaults so a corrected response can be sent.
func (c *Composer) settle(td *types.ThreadData, done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if td != nil {
		if len(td.Interrupts) > 0 {
			node := c.currentNode
			c.reset(*td)
			c.currentNode = node
		} else {
			c.thread = *td
		}
	}
	if done {
		c.state = StateDone
	} else {
		c.state = StateSettled
	}
}

// Ignore resumes the run with an ignore response. The interrupt must allow
// ignoring.
func (c *Composer) Ignore(ctx context.Context, backend langgraph.Backend) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.indexOf(types.ResponseIgnore) < 0 {
		c.mu.Unlock()
		c.toast(toast.Error("Error", "The interrupt does not allow ignoring."))
		return ErrIgnoreDisabled
	}
	threadID := c.thread.Thread.ThreadID
	c.busy = true
	c.state = StateSubmitting
	c.mu.Unlock()
	defer c.setBusy(false)

	_, err := backend.CreateRun(ctx, threadID, langgraph.RunRequest{
		AssistantID: c.graphID,
		Command:     &langgraph.Command{Resume: []types.HumanResponse{{Type: types.ResponseIgnore}}},
	})
	if err != nil {
		c.setState(StateEditing)
		c.toast(toast.Error("Error", "Failed to ignore thread."))
		return fmt.Errorf("ignore thread %s: %w", threadID, err)
	}
	c.setState(StateDone)
	c.toast(toast.Info("Success", "Ignored thread."))
	return nil
}

// Resolve marks the thread finished without resuming the graph.
func (c *Composer) Resolve(ctx context.Context, backend langgraph.Backend) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	threadID := c.thread.Thread.ThreadID
	c.busy = true
	c.state = StateSubmitting
	c.mu.Unlock()
	defer c.setBusy(false)

	if err := ResolveThread(ctx, backend, threadID); err != nil {
		c.setState(StateEditing)
		c.toast(toast.Error("Error", "Failed to mark thread as resolved."))
		return err
	}
	c.setState(StateDone)
	c.toast(toast.Info("Success", "Marked thread as resolved."))
	return nil
}

// ResolveThread writes a null state as the end node of threadID.
func ResolveThread(ctx context.Context, backend langgraph.Backend, threadID string) error {
	err := backend.UpdateState(ctx, threadID, langgraph.StateUpdate{Values: nil, AsNode: langgraph.NodeEnd})
	if err != nil {
		return fmt.Errorf("resolve thread %s: %w", threadID, err)
	}
	return nil
}

func (c *Composer) allowed(t types.ResponseType) bool {
	cfg := c.interrupt.Config
	switch t {
	case types.ResponseAccept:
		return cfg.AllowAccept
	case types.ResponseEdit:
		return cfg.AllowEdit
	case types.ResponseResponse:
		return cfg.AllowRespond
	case types.ResponseIgnore:
		return cfg.AllowIgnore
	}
	return false
}

func (c *Composer) indexOf(t types.ResponseType) int {
	for i, r := range c.responses {
		if r.Type == t {
			return i
		}
	}
	return -1
}

func (c *Composer) setBusy(v bool) {
	c.mu.Lock()
	c.busy = v
	c.mu.Unlock()
}

func (c *Composer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Composer) toast(t types.Toast) {
	if c.notify != nil {
		c.notify.Notify(t)
	}
}

// streamEvent is the payload of an "events" stream part.
type streamEvent struct {
	Event    string `json:"event"`
	Name     string `json:"name"`
	Metadata struct {
		Node string `json:"langgraph_node"`
	} `json:"metadata"`
}

// startedNode returns the graph node of an on_chain_start event, ignoring
// the start and end sentinels.
func startedNode(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Event != "on_chain_start" {
		return ""
	}
	switch ev.Metadata.Node {
	case "", langgraph.NodeStart, langgraph.NodeEnd:
		return ""
	}
	return ev.Metadata.Node
}

func errorMessage(data json.RawMessage) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		return s
	}
	return "An error occurred while running the graph."
}
