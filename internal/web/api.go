package web

import (
	"encoding/json"
	"net/http"

	"github.com/user/agentinbox/internal/app"
	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/types"
)

func (s *Server) handleAPIInboxes(w http.ResponseWriter, r *http.Request) {
	inboxes := s.app.Inboxes()
	if inboxes == nil {
		inboxes = []types.AgentInbox{}
	}
	writeJSON(w, http.StatusOK, inboxes)
}

func (s *Server) handleAPIAddInbox(w http.ResponseWriter, r *http.Request) {
	var ib types.AgentInbox
	if err := json.NewDecoder(r.Body).Decode(&ib); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	added, _, err := s.app.AddInbox(r.Context(), ib, params.Query{})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleAPIUpdateInbox(w http.ResponseWriter, r *http.Request) {
	var ib types.AgentInbox
	if err := json.NewDecoder(r.Body).Decode(&ib); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ib.ID = types.InboxID(r.PathValue("id"))
	if err := s.app.UpdateInbox(ib); err != nil {
		writeErr(w, err)
		return
	}
	updated, err := s.app.Inbox(ib.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAPIDeleteInbox(w http.ResponseWriter, r *http.Request) {
	if _, err := s.app.RemoveInbox(types.InboxID(r.PathValue("id")), params.Query{}); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPISelectInbox(w http.ResponseWriter, r *http.Request) {
	id := types.InboxID(r.PathValue("id"))
	if _, err := s.app.SelectInbox(id, params.Query{}); err != nil {
		writeErr(w, err)
		return
	}
	selected, err := s.app.Inbox(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selected)
}

type threadsResponse struct {
	Threads []types.ThreadData `json:"threads"`
	HasMore bool               `json:"has_more"`
	Query   string             `json:"query"`
}

// handleAPIThreads lists one page. The query takes the same parameters
// as the dashboard; missing ones get the dashboard defaults.
func (s *Server) handleAPIThreads(w http.ResponseWriter, r *http.Request) {
	q, _ := s.app.ResolveQuery(params.FromValues(r.URL.Query()))
	list, err := s.app.ListThreads(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	if list == nil {
		list = []types.ThreadData{}
	}
	writeJSON(w, http.StatusOK, threadsResponse{Threads: list, HasMore: s.app.HasMore(), Query: q.Encode()})
}

type threadResponse struct {
	types.ThreadData
	Responses  []types.HumanResponseWithEdits `json:"responses,omitempty"`
	SubmitType types.ResponseType             `json:"submit_type,omitempty"`
}

func (s *Server) handleAPIThread(w http.ResponseWriter, r *http.Request) {
	td, c, err := s.app.Thread(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := threadResponse{ThreadData: td}
	if c != nil {
		resp.Responses = c.Responses()
		resp.SubmitType = c.SubmitType()
	}
	writeJSON(w, http.StatusOK, resp)
}

// respondRequest is the JSON body for POST /api/threads/{id}/respond.
type respondRequest struct {
	Args       map[string]string  `json:"args"`
	Response   string             `json:"response"`
	SubmitType types.ResponseType `json:"submit_type"`
}

type respondResponse struct {
	Sent        types.HumanResponse `json:"sent"`
	LastNode    string              `json:"last_node,omitempty"`
	Done        bool                `json:"done"`
	Thread      *types.ThreadData   `json:"thread,omitempty"`
	StreamError string              `json:"stream_error,omitempty"`
}

func (s *Server) handleAPIRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	result, err := s.app.Respond(r.Context(), r.PathValue("id"), app.RespondInput{
		Args:       req.Args,
		Response:   req.Response,
		SubmitType: req.SubmitType,
	})
	if result != nil {
		status := http.StatusOK
		if err != nil {
			status = statusFor(err)
		}
		writeJSON(w, status, respondResponse{
			Sent:        result.Sent,
			LastNode:    result.LastNode,
			Done:        result.NavigateBack,
			Thread:      result.Thread,
			StreamError: result.StreamError,
		})
		return
	}
	writeErr(w, err)
}

func (s *Server) handleAPIIgnore(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ignore(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
}

func (s *Server) handleAPIResolve(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Resolve(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
