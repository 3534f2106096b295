// Package inbox manages the configured agent inboxes.
package inbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/toast"
	"github.com/user/agentinbox/internal/types"
)

var ErrNotFound = errors.New("inbox not found")

// Registry is the list of inboxes persisted under types.PrefAgentInboxes.
// Exactly one inbox is selected whenever the list is non-empty.
type Registry struct {
	prefs  types.Preferences
	notify types.Notifier
	now    func() time.Time

	mu      sync.Mutex
	inboxes []types.AgentInbox
	// dirty is set when the last write failed; the in-memory list is then
	// authoritative until a write succeeds.
	dirty bool
}

// NewRegistry creates a registry over prefs. notify may be nil.
func NewRegistry(prefs types.Preferences, notify types.Notifier) *Registry {
	return &Registry{prefs: prefs, notify: notify, now: time.Now}
}

// List returns the inboxes, repairing missing ids and the selection
// invariant on the way.
func (r *Registry) List() []types.AgentInbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.load())
}

// Selected returns the selected inbox.
func (r *Registry) Selected() (types.AgentInbox, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ib := range r.load() {
		if ib.Selected {
			return ib, true
		}
	}
	return types.AgentInbox{}, false
}

// Get returns the inbox with id.
func (r *Registry) Get(id types.InboxID) (types.AgentInbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inboxes := r.load()
	if i := indexOf(inboxes, id); i >= 0 {
		return inboxes[i], nil
	}
	return types.AgentInbox{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add appends inbox and selects it. An empty id is generated. Adding an id
// that already exists updates that entry instead. The returned query points
// at the new inbox.
func (r *Registry) Add(inbox types.AgentInbox, q params.Query) (types.AgentInbox, params.Query) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inbox.ID == "" {
		inbox.ID = types.NewInboxID()
	}
	if inbox.CreatedAt == nil {
		now := r.now().UTC()
		inbox.CreatedAt = &now
	}
	inbox.Selected = true

	inboxes := r.load()
	for i := range inboxes {
		inboxes[i].Selected = false
	}
	if i := indexOf(inboxes, inbox.ID); i >= 0 {
		inboxes[i] = inbox
	} else {
		inboxes = append(inboxes, inbox)
	}
	r.persist(inboxes)

	slog.Info("inbox added", "inbox_id", inbox.ID, "graph_id", inbox.GraphID)
	return inbox, q.Update(map[string]string{
		params.AgentInbox:     string(inbox.ID),
		params.NoInboxesFound: "",
	})
}

// Update replaces the inbox with the same id. The stored selection flag is
// kept regardless of inbox.Selected.
func (r *Registry) Update(inbox types.AgentInbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inboxes := r.load()
	i := indexOf(inboxes, inbox.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, inbox.ID)
	}
	inbox.Selected = inboxes[i].Selected
	if inbox.CreatedAt == nil {
		inbox.CreatedAt = inboxes[i].CreatedAt
	}
	inboxes[i] = inbox
	r.persist(inboxes)
	return nil
}

// Select marks id as the only selected inbox. With replaceAll the returned
// query is a fresh navigation to the inbox with default filters; otherwise
// only agent_inbox is patched.
func (r *Registry) Select(id types.InboxID, replaceAll bool, q params.Query) (params.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inboxes := r.load()
	if indexOf(inboxes, id) < 0 {
		return q, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for i := range inboxes {
		inboxes[i].Selected = inboxes[i].ID == id
	}
	r.persist(inboxes)

	if replaceAll {
		limit := params.DefaultLimit
		if vs := q.ViewState(); vs.Limit != nil && *vs.Limit > 0 {
			limit = *vs.Limit
		}
		return params.Replace(map[string]string{
			params.AgentInbox: string(id),
			params.Inbox:      string(params.DefaultStatus),
			params.Offset:     strconv.Itoa(params.DefaultOffset),
			params.Limit:      strconv.Itoa(limit),
		}), nil
	}
	return q.Update(map[string]string{params.AgentInbox: string(id)}), nil
}

// Remove deletes id. When nothing remains the stored list is cleared and
// the query flags the empty state. When the selected inbox is removed the
// first remaining one becomes selected.
func (r *Registry) Remove(id types.InboxID, q params.Query) (params.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inboxes := r.load()
	i := indexOf(inboxes, id)
	if i < 0 {
		return q, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	wasSelected := inboxes[i].Selected
	inboxes = append(inboxes[:i], inboxes[i+1:]...)

	if len(inboxes) == 0 {
		r.inboxes = nil
		if err := r.prefs.Delete(types.PrefAgentInboxes); err != nil {
			r.dirty = true
			r.writeFailed(err)
		} else {
			r.dirty = false
		}
		slog.Info("inbox removed", "inbox_id", id, "remaining", 0)
		return q.Update(map[string]string{
			params.AgentInbox:        "",
			params.ViewStateThreadID: "",
			params.NoInboxesFound:    "true",
		}), nil
	}

	if wasSelected {
		inboxes[0].Selected = true
		q = q.Update(map[string]string{
			params.AgentInbox:        string(inboxes[0].ID),
			params.ViewStateThreadID: "",
		})
	}
	r.persist(inboxes)
	slog.Info("inbox removed", "inbox_id", id, "remaining", len(inboxes))
	return q, nil
}

// FilterMetadata returns the thread search metadata filter for the
// selected inbox: assistant_id when its graph id is a UUID, graph_id
// otherwise. Returns nil when nothing is selected.
func (r *Registry) FilterMetadata() map[string]any {
	selected, ok := r.Selected()
	if !ok || selected.GraphID == "" {
		return nil
	}
	if types.IsUUID(selected.GraphID) {
		return map[string]any{"assistant_id": selected.GraphID}
	}
	return map[string]any{"graph_id": selected.GraphID}
}

// load returns the current list. Callers must hold r.mu.
func (r *Registry) load() []types.AgentInbox {
	if r.dirty {
		return clone(r.inboxes)
	}

	raw, ok := r.prefs.Get(types.PrefAgentInboxes)
	if !ok || raw == "" {
		r.inboxes = nil
		return nil
	}
	var inboxes []types.AgentInbox
	if err := json.Unmarshal([]byte(raw), &inboxes); err != nil {
		slog.Warn("stored inboxes malformed, treating as empty", "error", err)
		r.inboxes = nil
		return nil
	}

	if repair(inboxes) {
		r.persist(inboxes)
	} else {
		r.inboxes = clone(inboxes)
	}
	return inboxes
}

// repair assigns ids to legacy entries and enforces a single selection.
// Reports whether anything changed.
func repair(inboxes []types.AgentInbox) bool {
	changed := false
	selected := -1
	for i := range inboxes {
		if inboxes[i].ID == "" {
			inboxes[i].ID = types.NewInboxID()
			changed = true
		}
		if inboxes[i].Selected {
			if selected >= 0 {
				inboxes[i].Selected = false
				changed = true
			} else {
				selected = i
			}
		}
	}
	if selected < 0 && len(inboxes) > 0 {
		inboxes[0].Selected = true
		changed = true
	}
	return changed
}

// persist stores inboxes. A failed write keeps the in-memory change and is
// surfaced as a toast. Callers must hold r.mu.
func (r *Registry) persist(inboxes []types.AgentInbox) {
	r.inboxes = clone(inboxes)
	data, err := json.Marshal(inboxes)
	if err == nil {
		err = r.prefs.Set(types.PrefAgentInboxes, string(data))
	}
	if err != nil {
		r.dirty = true
		r.writeFailed(err)
		return
	}
	r.dirty = false
}

func (r *Registry) writeFailed(err error) {
	slog.Error("saving inboxes failed", "error", err)
	if r.notify != nil {
		r.notify.Notify(toast.Error("Error", "Failed to save agent inboxes: "+err.Error()))
	}
}

func indexOf(inboxes []types.AgentInbox, id types.InboxID) int {
	for i := range inboxes {
		if inboxes[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(inboxes []types.AgentInbox) []types.AgentInbox {
	if inboxes == nil {
		return nil
	}
	return append([]types.AgentInbox(nil), inboxes...)
}
