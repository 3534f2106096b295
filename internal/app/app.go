// Package app holds the dashboard state shared by the HTTP server, the
// background sync and the CLI: the inbox registry, the current thread page,
// the open response composers and pending toasts.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/agentinbox/internal/backend"
	"github.com/user/agentinbox/internal/composer"
	"github.com/user/agentinbox/internal/config"
	"github.com/user/agentinbox/internal/inbox"
	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/threads"
	"github.com/user/agentinbox/internal/toast"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/internal/view"
	"github.com/user/agentinbox/pkg/langgraph"
	"github.com/user/agentinbox/pkg/langgraph/httpclient"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrInvalidInbox   = errors.New("graph id and deployment URL are required")
)

// App wires the dashboard components together. It is safe for concurrent
// use by HTTP handlers.
type App struct {
	prefs    types.Preferences
	toasts   *toast.Collector
	inboxes  *inbox.Registry
	backends *backend.Factory
	threads  *threads.Store
	fetcher  *threads.Fetcher
	preview  *view.Previewer
	limit    int

	mu        sync.Mutex
	composers map[string]*composer.Composer
}

// Option configures an App.
type Option func(*options)

type options struct {
	backendOpts []backend.Option
	preview     *view.Previewer
}

// WithBackendOptions passes options through to the backend factory.
func WithBackendOptions(opts ...backend.Option) Option {
	return func(o *options) { o.backendOpts = append(o.backendOpts, opts...) }
}

// WithPreviewer replaces the previewer built from the config.
func WithPreviewer(p *view.Previewer) Option {
	return func(o *options) { o.preview = p }
}

// New creates an App from cfg, storing preferences in prefs.
func New(cfg *config.Config, prefs types.Preferences, opts ...Option) *App {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	toasts := toast.NewCollector(0)
	backendOpts := []backend.Option{
		backend.WithFallbackAPIKey(cfg.Backend.APIKey),
		backend.WithTimeout(time.Duration(cfg.Backend.TimeoutSeconds) * time.Second),
	}
	backendOpts = append(backendOpts, o.backendOpts...)

	preview := o.preview
	if preview == nil && cfg.Preview.MaxTokens > 0 {
		p, err := view.NewPreviewer(cfg.Preview.Model, cfg.Preview.MaxTokens)
		if err != nil {
			slog.Warn("tokenizer unavailable, previews fall back to rune counts", "error", err)
			p = view.RunePreviewer(cfg.Preview.MaxTokens)
		}
		preview = p
	}

	fetcher := threads.NewFetcher(cfg.Backend.StateBatchSize)
	limit := cfg.Inbox.DefaultLimit
	if limit <= 0 {
		limit = params.DefaultLimit
	}

	return &App{
		prefs:     prefs,
		toasts:    toasts,
		inboxes:   inbox.NewRegistry(prefs, toasts),
		backends:  backend.NewFactory(prefs, toasts, backendOpts...),
		threads:   threads.NewStore(fetcher, toasts),
		fetcher:   fetcher,
		preview:   preview,
		limit:     limit,
		composers: make(map[string]*composer.Composer),
	}
}

// Toasts returns and clears the pending notifications.
func (a *App) Toasts() []types.Toast { return a.toasts.Drain() }

// Notify raises a toast.
func (a *App) Notify(t types.Toast) { a.toasts.Notify(t) }

// Previewer returns the value previewer, which may be nil.
func (a *App) Previewer() *view.Previewer { return a.preview }

// DefaultLimit is the page size used when the query carries none.
func (a *App) DefaultLimit() int { return a.limit }

// Inboxes lists the configured inboxes.
func (a *App) Inboxes() []types.AgentInbox { return a.inboxes.List() }

// SelectedInbox returns the selected inbox.
func (a *App) SelectedInbox() (types.AgentInbox, bool) { return a.inboxes.Selected() }

// Inbox returns the inbox with id.
func (a *App) Inbox(id types.InboxID) (types.AgentInbox, error) { return a.inboxes.Get(id) }

// Backend returns a client for the selected inbox.
func (a *App) Backend() (langgraph.Backend, error) {
	return a.backends.Client(a.inboxes.List())
}

// HasAPIKey reports whether a LangSmith key is available.
func (a *App) HasAPIKey() bool { return a.backends.APIKey() != "" }

// SetAPIKey stores key, or clears the stored key when key is empty.
func (a *App) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	var err error
	if key == "" {
		err = a.prefs.Delete(types.PrefAPIKey)
	} else {
		err = a.prefs.Set(types.PrefAPIKey, key)
	}
	if err != nil {
		a.toasts.Notify(toast.Error("Error", "Failed to save the API key."))
		return fmt.Errorf("save api key: %w", err)
	}
	a.closeComposers()
	return nil
}

// AddInbox validates and adds ib, selecting it. Inboxes on hosted
// deployments get a project-scoped id when the deployment can be reached.
func (a *App) AddInbox(ctx context.Context, ib types.AgentInbox, q params.Query) (types.AgentInbox, params.Query, error) {
	ib.GraphID = strings.TrimSpace(ib.GraphID)
	ib.DeploymentURL = strings.TrimSpace(ib.DeploymentURL)
	ib.Name = strings.TrimSpace(ib.Name)
	if ib.GraphID == "" || ib.DeploymentURL == "" {
		return types.AgentInbox{}, q, ErrInvalidInbox
	}
	if ib.ID == "" {
		projectID, err := a.backends.ProjectID(ctx, ib.DeploymentURL)
		if err != nil {
			slog.Warn("deployment info unavailable, using a random inbox id", "url", ib.DeploymentURL, "error", err)
		} else if projectID != "" {
			ib.ID = types.DeploymentInboxID(projectID, ib.GraphID)
		}
	}
	added, next := a.inboxes.Add(ib, q)
	a.closeComposers()
	a.toasts.Notify(toast.Info("Success", "Agent inbox added successfully."))
	return added, next, nil
}

// UpdateInbox replaces the stored inbox with the same id.
func (a *App) UpdateInbox(ib types.AgentInbox) error {
	ib.GraphID = strings.TrimSpace(ib.GraphID)
	ib.DeploymentURL = strings.TrimSpace(ib.DeploymentURL)
	ib.Name = strings.TrimSpace(ib.Name)
	if ib.GraphID == "" || ib.DeploymentURL == "" {
		return ErrInvalidInbox
	}
	if err := a.inboxes.Update(ib); err != nil {
		return err
	}
	a.closeComposers()
	a.toasts.Notify(toast.Info("Success", "Agent inbox updated successfully."))
	return nil
}

// SelectInbox switches inboxes. The returned query is a fresh navigation.
func (a *App) SelectInbox(id types.InboxID, q params.Query) (params.Query, error) {
	next, err := a.inboxes.Select(id, true, q)
	if err != nil {
		return q, err
	}
	a.closeComposers()
	return next, nil
}

// RemoveInbox deletes an inbox.
func (a *App) RemoveInbox(id types.InboxID, q params.Query) (params.Query, error) {
	next, err := a.inboxes.Remove(id, q)
	if err != nil {
		return q, err
	}
	a.closeComposers()
	a.toasts.Notify(toast.Info("Success", "Agent inbox deleted."))
	return next, nil
}

// Backfill runs the one-shot inbox id migration.
func (a *App) Backfill(ctx context.Context, q params.Query) (params.Query, bool) {
	return a.inboxes.BackfillIDs(ctx, a.backends, q)
}

// ResolveQuery fills missing pagination defaults and makes the inbox named
// by agent_inbox the selected one. It reports whether the caller should
// redirect to the returned query.
func (a *App) ResolveQuery(q params.Query) (params.Query, bool) {
	next, changed := params.EnsureDefaults(q, a.limit)
	vs := next.ViewState()

	if vs.InboxID == "" {
		if sel, ok := a.inboxes.Selected(); ok {
			return next.Update(map[string]string{params.AgentInbox: string(sel.ID)}), true
		}
		return next, changed
	}

	sel, ok := a.inboxes.Selected()
	if ok && sel.ID == vs.InboxID {
		return next, changed
	}
	if _, err := a.inboxes.Get(vs.InboxID); err != nil {
		// Unknown inbox in a shared link: fall back to the selected one.
		if ok {
			return next.Update(map[string]string{params.AgentInbox: string(sel.ID)}), true
		}
		return next.Update(map[string]string{params.AgentInbox: ""}), true
	}
	if _, err := a.inboxes.Select(vs.InboxID, false, next); err != nil {
		slog.Warn("selecting inbox from query failed", "inbox_id", vs.InboxID, "error", err)
	}
	a.closeComposers()
	return next, changed
}

// ListThreads fetches the page described by q into the thread store.
func (a *App) ListThreads(ctx context.Context, q params.Query) ([]types.ThreadData, error) {
	client, err := a.Backend()
	if err != nil {
		return nil, err
	}
	vs := q.ViewState()
	p := threads.FetchParams{
		Status:   vs.Status,
		Offset:   vs.Offset,
		Limit:    vs.Limit,
		Metadata: a.inboxes.FilterMetadata(),
	}
	if p.Status == "" {
		p.Status = types.StatusFilter(params.DefaultStatus)
	}
	if err := a.threads.Fetch(ctx, client, p); err != nil {
		return nil, err
	}
	return a.threads.Threads(), nil
}

// Listed returns the last successfully fetched page.
func (a *App) Listed() []types.ThreadData { return a.threads.Threads() }

// HasMore reports whether the last listed page was full.
func (a *App) HasMore() bool { return a.threads.HasMore() }

// Loading reports whether a thread fetch is in flight.
func (a *App) Loading() bool { return a.threads.Loading() }

// Thread returns a thread, preferring the listed copy, and the composer
// for its first interrupt. The composer is nil when the thread has no
// interrupt to answer.
func (a *App) Thread(ctx context.Context, threadID string) (types.ThreadData, *composer.Composer, error) {
	if c := a.composer(threadID); c != nil {
		return c.Thread(), c, nil
	}

	td, ok := a.threads.Get(threadID)
	if !ok {
		client, err := a.Backend()
		if err != nil {
			return types.ThreadData{}, nil, err
		}
		td, err = threads.FetchSingleThread(ctx, client, threadID)
		if err != nil {
			var apiErr *httpclient.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				return types.ThreadData{}, nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
			}
			a.toasts.Notify(toast.Error("Failed to load thread", err.Error()))
			return types.ThreadData{}, nil, err
		}
	}
	return td, a.openComposer(td), nil
}

// RespondInput is a set of form edits applied before submitting.
type RespondInput struct {
	Args       map[string]string
	Response   string
	SubmitType types.ResponseType
}

// Respond applies in to the thread's composer and submits it. The thread
// store is updated with the refetched thread and the composer is closed
// once the thread no longer needs a response.
func (a *App) Respond(ctx context.Context, threadID string, in RespondInput) (*composer.Result, error) {
	_, c, err := a.Thread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, composer.ErrNoInterrupt
	}
	client, err := a.Backend()
	if err != nil {
		return nil, err
	}
	if err := applyInput(c, in); err != nil {
		return nil, err
	}

	result, err := c.Submit(ctx, client)
	if result != nil && result.Thread != nil {
		a.threads.Upsert(*result.Thread)
	}
	if result != nil && result.NavigateBack {
		a.closeComposer(threadID)
	}
	return result, err
}

// applyInput selects the submit type first so that edited arguments and a
// non-empty response text take precedence over it. Arguments equal to the
// current form values are skipped.
func applyInput(c *composer.Composer, in RespondInput) error {
	if in.SubmitType != "" {
		if err := c.SetSubmitType(in.SubmitType); err != nil {
			return err
		}
	}

	current := map[string]any{}
	for _, r := range c.Responses() {
		if ar, ok := r.Args.(types.ActionRequest); ok && r.Type == types.ResponseEdit {
			current = ar.Args
		}
	}
	keys := make([]string, 0, len(in.Args))
	for key := range in.Args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if v, ok := current[key]; ok && v == in.Args[key] {
			continue
		}
		if err := c.EditArg(key, in.Args[key]); err != nil {
			return err
		}
	}

	if in.Response != "" {
		if err := c.SetResponse(in.Response); err != nil {
			return err
		}
	}
	return nil
}

// Ignore sends an ignore response for the thread.
func (a *App) Ignore(ctx context.Context, threadID string) error {
	_, c, err := a.Thread(ctx, threadID)
	if err != nil {
		return err
	}
	if c == nil {
		return composer.ErrNoInterrupt
	}
	client, err := a.Backend()
	if err != nil {
		return err
	}
	if err := c.Ignore(ctx, client); err != nil {
		return err
	}
	a.closeComposer(threadID)
	return nil
}

// Resolve marks the thread finished without resuming it.
func (a *App) Resolve(ctx context.Context, threadID string) error {
	client, err := a.Backend()
	if err != nil {
		return err
	}
	if c := a.composer(threadID); c != nil {
		if err := c.Resolve(ctx, client); err != nil {
			return err
		}
		a.closeComposer(threadID)
		return nil
	}

	if err := composer.ResolveThread(ctx, client, threadID); err != nil {
		a.toasts.Notify(toast.Error("Error", "Failed to mark thread as resolved."))
		return err
	}
	a.toasts.Notify(toast.Info("Success", "Marked thread as resolved."))
	return nil
}

// Reset discards the edits of an open composer.
func (a *App) Reset(threadID string) error {
	c := a.composer(threadID)
	if c == nil {
		return nil
	}
	return c.Reset()
}

func (a *App) composer(threadID string) *composer.Composer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.composers[threadID]
}

func (a *App) openComposer(td types.ThreadData) *composer.Composer {
	if len(td.Interrupts) == 0 {
		return nil
	}
	graphID := ""
	if sel, ok := a.inboxes.Selected(); ok {
		graphID = sel.GraphID
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.composers[td.Thread.ThreadID]; ok {
		return c
	}
	c, err := composer.New(td, graphID, a.toasts)
	if err != nil {
		return nil
	}
	a.composers[td.Thread.ThreadID] = c
	return c
}

func (a *App) closeComposer(threadID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.composers, threadID)
}

func (a *App) closeComposers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, c := range a.composers {
		if !c.Busy() {
			delete(a.composers, id)
		}
	}
}
