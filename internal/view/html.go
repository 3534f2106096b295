package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"

	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"title":     PrettifyKey,
	"timestamp": FormatTimestamp,
	"lower":     strings.ToLower,
}

// pages holds one template set per page, each sharing the layout.
var pages = map[string]*template.Template{
	"list":     parsePage("list.html"),
	"detail":   parsePage("detail.html"),
	"settings": parsePage("settings.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(
		template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name),
	)
}

// Render executes the named page ("list", "detail" or "settings").
func Render(w io.Writer, page string, data any) error {
	tmpl, ok := pages[page]
	if !ok {
		return fmt.Errorf("template not found: %s", page)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// InboxLink is an inbox in the switcher.
type InboxLink struct {
	Inbox    types.AgentInbox
	Selected bool
	EditURL  string
}

// Layout is shared by every page.
type Layout struct {
	Title       string
	Query       string
	HomeURL     string
	SettingsURL string
	Toasts      []types.Toast
	Inboxes     []InboxLink
	NoInboxes   bool
	HasAPIKey   bool
}

// NewLayout builds the shared page chrome.
func NewLayout(title string, q params.Query, inboxes []types.AgentInbox, toasts []types.Toast, hasAPIKey bool) Layout {
	links := make([]InboxLink, len(inboxes))
	for i, ib := range inboxes {
		links[i] = InboxLink{
			Inbox:    ib,
			Selected: ib.Selected,
			EditURL:  q.Update(map[string]string{params.EditInbox: string(ib.ID)}).URL("/settings"),
		}
	}
	return Layout{
		Title:       title,
		Query:       q.Encode(),
		HomeURL:     q.Update(map[string]string{params.EditInbox: ""}).URL("/"),
		SettingsURL: q.URL("/settings"),
		Toasts:      toasts,
		Inboxes:     links,
		NoInboxes:   len(inboxes) == 0,
		HasAPIKey:   hasAPIKey,
	}
}

// Tab is one status filter tab.
type Tab struct {
	Label  string
	URL    string
	Active bool
}

// Tabs builds the status filter tabs for q.
func Tabs(q params.Query) []Tab {
	active := q.ViewState().Status
	tabs := make([]Tab, len(types.StatusFilters))
	for i, s := range types.StatusFilters {
		tabs[i] = Tab{
			Label:  PrettifyKey(string(s)),
			URL:    q.WithStatus(s).URL("/"),
			Active: s == active,
		}
	}
	return tabs
}

// ThreadRow is one entry of the thread list.
type ThreadRow struct {
	ID      string
	Title   string
	Summary string
	Status  string
	Created string
	URL     string
	Invalid bool
}

// ListPage is the thread list.
type ListPage struct {
	Layout
	Tabs    []Tab
	Threads []ThreadRow
	Loading bool
	PrevURL string
	NextURL string
	Page    int
}

// NewListPage builds the list view.
func NewListPage(layout Layout, q params.Query, list []types.ThreadData, hasMore bool, p *Previewer) ListPage {
	page := ListPage{Layout: layout, Tabs: Tabs(q)}
	for _, td := range list {
		page.Threads = append(page.Threads, ThreadRow{
			ID:      td.Thread.ThreadID,
			Title:   ThreadTitle(td),
			Summary: ThreadSummary(td, p),
			Status:  string(td.Status),
			Created: FormatTimestamp(td.Thread.CreatedAt),
			URL:     q.OpenThread(td.Thread.ThreadID).URL("/"),
			Invalid: td.InvalidSchema,
		})
	}

	vs := q.ViewState()
	offset, limit := 0, params.DefaultLimit
	if vs.Offset != nil {
		offset = *vs.Offset
	}
	if vs.Limit != nil && *vs.Limit > 0 {
		limit = *vs.Limit
	}
	page.Page = offset/limit + 1
	if offset > 0 {
		page.PrevURL = q.PrevPage().URL("/")
	}
	if hasMore {
		page.NextURL = q.NextPage().URL("/")
	}
	return page
}

// ArgField is one editable argument.
type ArgField struct {
	Key       string
	Value     string
	Multiline bool
}

// DetailPage is the open thread with its response form.
type DetailPage struct {
	Layout
	BackURL       string
	ThreadID      string
	ThreadTitle   string
	Status        string
	Created       string
	Description   template.HTML
	Action        string
	Args          []ArgField
	Editable      bool
	AllowAccept   bool
	AllowRespond  bool
	AllowIgnore   bool
	ResponseText  string
	SubmitType    string
	SubmitTypes   []types.ResponseType
	State         []Row
	InvalidSchema bool
	NoInterrupt   bool
	CurrentNode   string
	Busy          bool
}

// Form is the editable state of an open composer.
type Form struct {
	Responses   []types.HumanResponseWithEdits
	SubmitType  types.ResponseType
	CurrentNode string
	Busy        bool
}

// NewDetailPage builds the detail view. form is nil when the thread has
// no usable interrupt.
func NewDetailPage(layout Layout, q params.Query, td types.ThreadData, form *Form, p *Previewer) DetailPage {
	page := DetailPage{
		Layout:        layout,
		BackURL:       q.OpenThread("").URL("/"),
		ThreadID:      td.Thread.ThreadID,
		ThreadTitle:   ThreadTitle(td),
		Status:        string(td.Status),
		Created:       FormatTimestamp(td.Thread.CreatedAt),
		State:         StateRows(td.Thread.Values, p),
		InvalidSchema: td.InvalidSchema,
		NoInterrupt:   form == nil,
	}
	if form == nil || len(td.Interrupts) == 0 {
		page.NoInterrupt = true
		return page
	}

	hi := td.Interrupts[0]
	page.Action = hi.ActionRequest.Action
	page.Description = RenderMarkdown(hi.Description)
	page.AllowAccept = hi.Config.AllowAccept
	page.AllowRespond = hi.Config.AllowRespond
	page.AllowIgnore = hi.Config.AllowIgnore
	page.SubmitType = string(form.SubmitType)
	page.CurrentNode = form.CurrentNode
	page.Busy = form.Busy
	for _, t := range AllowedActions(hi.Config) {
		if t != types.ResponseIgnore {
			page.SubmitTypes = append(page.SubmitTypes, t)
		}
	}

	for _, r := range form.Responses {
		switch r.Type {
		case types.ResponseEdit:
			page.Editable = true
			ar, _ := r.Args.(types.ActionRequest)
			page.Args = argFields(ar.Args)
		case types.ResponseResponse:
			page.ResponseText, _ = r.Args.(string)
		}
	}
	if !page.Editable {
		page.Args = argFields(editableArgsForDisplay(hi.ActionRequest.Args))
	}
	return page
}

func argFields(args map[string]any) []ArgField {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]ArgField, len(keys))
	for i, k := range keys {
		s, _ := args[k].(string)
		fields[i] = ArgField{Key: k, Value: s, Multiline: strings.Contains(s, "\n") || len(s) > 80}
	}
	return fields
}

func editableArgsForDisplay(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		s, _ := FormatValue(v)
		out[k] = s
	}
	return out
}

// SettingsPage lists inboxes with add and edit forms.
type SettingsPage struct {
	Layout
	Editing *types.AgentInbox
}
