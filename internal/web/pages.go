package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/user/agentinbox/internal/app"
	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/toast"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/internal/view"
)

func (s *Server) layout(title string, q params.Query) view.Layout {
	return view.NewLayout(title, q, s.app.Inboxes(), s.app.Toasts(), s.app.HasAPIKey())
}

func (s *Server) render(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.Render(w, page, data); err != nil {
		slog.Error("rendering page failed", "page", page, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q, changed := s.app.ResolveQuery(params.FromValues(r.URL.Query()))
	if changed {
		redirect(w, r, q, "/")
		return
	}

	if threadID := q.ViewState().ThreadID; threadID != "" {
		s.renderDetail(w, r, q, threadID)
		return
	}

	var list []types.ThreadData
	if len(s.app.Inboxes()) > 0 {
		var err error
		list, err = s.app.ListThreads(r.Context(), q)
		if err != nil {
			slog.Warn("listing threads failed", "error", err)
			list = s.app.Listed()
		}
	}
	page := view.NewListPage(s.layout("Inbox", q), q, list, s.app.HasMore(), s.app.Previewer())
	page.Loading = s.app.Loading()
	s.render(w, "list", page)
}

func (s *Server) renderDetail(w http.ResponseWriter, r *http.Request, q params.Query, threadID string) {
	td, c, err := s.app.Thread(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, app.ErrThreadNotFound) {
			s.app.Notify(toast.Error("Thread not found", threadID))
		}
		redirect(w, r, q.OpenThread(""), "/")
		return
	}

	var form *view.Form
	if c != nil {
		form = &view.Form{
			Responses:   c.Responses(),
			SubmitType:  c.SubmitType(),
			CurrentNode: c.CurrentNode(),
			Busy:        c.Busy(),
		}
	}
	page := view.NewDetailPage(s.layout(view.ThreadTitle(td), q), q, td, form, s.app.Previewer())
	s.render(w, "detail", page)
}

// handleThreadLink turns a shareable thread path into the query-driven
// detail view.
func (s *Server) handleThreadLink(w http.ResponseWriter, r *http.Request) {
	q := params.FromValues(r.URL.Query()).OpenThread(r.PathValue("id"))
	redirect(w, r, q, "/")
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	q := formQuery(r)
	threadID := r.PathValue("id")

	in := app.RespondInput{
		Args:       map[string]string{},
		Response:   strings.TrimSpace(r.PostFormValue("response")),
		SubmitType: types.ResponseType(r.PostFormValue("submit_type")),
	}
	for key, values := range r.PostForm {
		if name, ok := strings.CutPrefix(key, "arg."); ok && len(values) > 0 {
			in.Args[name] = values[0]
		}
	}

	result, err := s.app.Respond(r.Context(), threadID, in)
	if err != nil {
		slog.Warn("responding to thread failed", "thread_id", threadID, "error", err)
		if statusFor(err) == http.StatusBadRequest {
			s.app.Notify(toast.Error("Error", err.Error()))
		}
	}
	if result != nil && result.NavigateBack {
		q = q.OpenThread("")
	}
	redirect(w, r, q, "/")
}

func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	q := formQuery(r)
	threadID := r.PathValue("id")
	if err := s.app.Ignore(r.Context(), threadID); err != nil {
		slog.Warn("ignoring thread failed", "thread_id", threadID, "error", err)
		redirect(w, r, q, "/")
		return
	}
	redirect(w, r, q.OpenThread(""), "/")
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := formQuery(r)
	threadID := r.PathValue("id")
	if err := s.app.Resolve(r.Context(), threadID); err != nil {
		slog.Warn("resolving thread failed", "thread_id", threadID, "error", err)
		redirect(w, r, q, "/")
		return
	}
	redirect(w, r, q.OpenThread(""), "/")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	q := formQuery(r)
	if err := s.app.Reset(r.PathValue("id")); err != nil {
		s.app.Notify(toast.Error("Error", err.Error()))
	}
	redirect(w, r, q, "/")
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	q := params.FromValues(r.URL.Query())
	page := view.SettingsPage{}
	if id := q.Get(params.EditInbox); id != "" {
		ib, err := s.app.Inbox(types.InboxID(id))
		if err != nil {
			s.app.Notify(toast.Error("Inbox not found", id))
		} else {
			page.Editing = &ib
		}
	}
	page.Layout = s.layout("Settings", q.Update(map[string]string{params.EditInbox: ""}))
	s.render(w, "settings", page)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	q := formQuery(r)
	key := r.FormValue("api_key")
	if r.FormValue("clear") == "true" {
		key = ""
	} else if strings.TrimSpace(key) == "" {
		redirect(w, r, q, "/settings")
		return
	}
	if err := s.app.SetAPIKey(key); err != nil {
		slog.Error("saving api key failed", "error", err)
	} else if key == "" {
		s.app.Notify(toast.Info("Success", "API key cleared."))
	} else {
		s.app.Notify(toast.Info("Success", "API key saved."))
	}
	redirect(w, r, q, "/settings")
}

func inboxFromForm(r *http.Request) types.AgentInbox {
	return types.AgentInbox{
		GraphID:       r.FormValue("graph_id"),
		DeploymentURL: r.FormValue("deployment_url"),
		Name:          r.FormValue("name"),
	}
}

func (s *Server) handleAddInbox(w http.ResponseWriter, r *http.Request) {
	q := formQuery(r)
	_, next, err := s.app.AddInbox(r.Context(), inboxFromForm(r), q)
	if err != nil {
		s.app.Notify(toast.Error("Error", err.Error()))
		redirect(w, r, q, "/settings")
		return
	}
	next, _ = params.EnsureDefaults(next.OpenThread(""), s.app.DefaultLimit())
	redirect(w, r, next, "/")
}

func (s *Server) handleUpdateInbox(w http.ResponseWriter, r *http.Request) {
	q := formQuery(r)
	ib := inboxFromForm(r)
	ib.ID = types.InboxID(r.PathValue("id"))
	if err := s.app.UpdateInbox(ib); err != nil {
		s.app.Notify(toast.Error("Error", err.Error()))
	}
	redirect(w, r, q, "/settings")
}

func (s *Server) handleSelectInbox(w http.ResponseWriter, r *http.Request) {
	q := formQuery(r)
	next, err := s.app.SelectInbox(types.InboxID(r.PathValue("id")), q)
	if err != nil {
		s.app.Notify(toast.Error("Error", err.Error()))
		redirect(w, r, q, "/")
		return
	}
	redirect(w, r, next, "/")
}

func (s *Server) handleDeleteInbox(w http.ResponseWriter, r *http.Request) {
	q := formQuery(r)
	next, err := s.app.RemoveInbox(types.InboxID(r.PathValue("id")), q)
	if err != nil {
		s.app.Notify(toast.Error("Error", err.Error()))
		redirect(w, r, q, "/settings")
		return
	}
	redirect(w, r, next, "/settings")
}
