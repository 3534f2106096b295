// Package params holds the view state carried in the dashboard's query
// string. Every navigation goes through Update or Replace so each one is a
// single consistent URL.
package params

import (
	"net/url"
	"strconv"

	"github.com/user/agentinbox/internal/types"
)

const (
	Inbox             = "inbox"
	Offset            = "offset"
	Limit             = "limit"
	AgentInbox        = "agent_inbox"
	ViewStateThreadID = "view_state_thread_id"
	NoInboxesFound    = "no_inboxes_found"
	// EditInbox opens the edit form on the settings page.
	EditInbox         = "edit"
)

const (
	DefaultStatus = types.StatusFilter(types.StatusInterrupted)
	DefaultOffset = 0
	DefaultLimit  = 10
)

// Query is an immutable set of query parameters.
type Query struct {
	values url.Values
}

// Parse decodes a raw query string. Malformed pairs are dropped.
func Parse(raw string) Query {
	values, _ := url.ParseQuery(raw)
	return FromValues(values)
}

// FromValues copies values into a Query.
func FromValues(values url.Values) Query {
	q := Query{values: url.Values{}}
	for k, vs := range values {
		if len(vs) > 0 && vs[0] != "" {
			q.values.Set(k, vs[0])
		}
	}
	return q
}

// Get returns the value of name, or "".
func (q Query) Get(name string) string {
	if q.values == nil {
		return ""
	}
	return q.values.Get(name)
}

// Has reports whether name is set.
func (q Query) Has(name string) bool {
	return q.Get(name) != ""
}

// Update returns a new Query with patch applied. An empty value deletes
// the key.
func (q Query) Update(patch map[string]string) Query {
	next := Query{values: url.Values{}}
	for k, vs := range q.values {
		next.values[k] = append([]string(nil), vs...)
	}
	for k, v := range patch {
		if v == "" {
			next.values.Del(k)
			continue
		}
		next.values.Set(k, v)
	}
	return next
}

// Replace builds a fresh Query from values, discarding everything else.
func Replace(values map[string]string) Query {
	return Query{}.Update(values)
}

// Encode returns the query in sorted key order.
func (q Query) Encode() string {
	if q.values == nil {
		return ""
	}
	return q.values.Encode()
}

// URL joins path and the encoded query.
func (q Query) URL(path string) string {
	enc := q.Encode()
	if enc == "" {
		return path
	}
	return path + "?" + enc
}

// ViewState is the parsed form of a Query.
type ViewState struct {
	Status         types.StatusFilter
	Offset         *int
	Limit          *int
	InboxID        types.InboxID
	ThreadID       string
	NoInboxesFound bool
}

// ViewState parses q. Invalid statuses and numbers read as unset.
func (q Query) ViewState() ViewState {
	vs := ViewState{
		InboxID:        types.InboxID(q.Get(AgentInbox)),
		ThreadID:       q.Get(ViewStateThreadID),
		NoInboxesFound: q.Get(NoInboxesFound) == "true",
	}
	if s, ok := types.ParseStatusFilter(q.Get(Inbox)); ok {
		vs.Status = s
	}
	vs.Offset = parseNonNegative(q.Get(Offset))
	vs.Limit = parseNonNegative(q.Get(Limit))
	return vs
}

func parseNonNegative(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// EnsureDefaults fills in the status filter and pagination when they are
// absent or invalid and reports whether anything changed. limit <= 0 uses
// DefaultLimit.
func EnsureDefaults(q Query, limit int) (Query, bool) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	vs := q.ViewState()
	patch := map[string]string{}
	if vs.Status == "" {
		patch[Inbox] = string(DefaultStatus)
	}
	if vs.Offset == nil {
		patch[Offset] = strconv.Itoa(DefaultOffset)
	}
	if vs.Limit == nil || *vs.Limit == 0 {
		patch[Limit] = strconv.Itoa(limit)
	}
	if len(patch) == 0 {
		return q, false
	}
	return q.Update(patch), true
}

// WithStatus switches the status filter and resets to the first page.
func (q Query) WithStatus(status types.StatusFilter) Query {
	return q.Update(map[string]string{
		Inbox:             string(status),
		Offset:            "0",
		ViewStateThreadID: "",
	})
}

// NextPage advances offset by limit.
func (q Query) NextPage() Query {
	vs := q.ViewState()
	offset, limit := deref(vs.Offset, DefaultOffset), deref(vs.Limit, DefaultLimit)
	return q.Update(map[string]string{Offset: strconv.Itoa(offset + limit)})
}

// PrevPage moves offset back by limit, stopping at zero.
func (q Query) PrevPage() Query {
	vs := q.ViewState()
	offset, limit := deref(vs.Offset, DefaultOffset), deref(vs.Limit, DefaultLimit)
	offset -= limit
	if offset < 0 {
		offset = 0
	}
	return q.Update(map[string]string{Offset: strconv.Itoa(offset)})
}

// OpenThread sets the open thread id. An empty id closes the panel.
func (q Query) OpenThread(threadID string) Query {
	return q.Update(map[string]string{ViewStateThreadID: threadID})
}

func deref(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
