// internal/types/models.go
package types

import (
	"time"

	"github.com/user/agentinbox/pkg/langgraph"
)

type AgentInbox struct {
	ID            InboxID    `json:"id"`
	GraphID       string     `json:"graphId"`
	DeploymentURL string     `json:"deploymentUrl"`
	Name          string     `json:"name,omitempty"`
	Selected      bool       `json:"selected"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

// DisplayName falls back to the graph id when no name was given.
func (i AgentInbox) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.GraphID
}

type ThreadStatus string

const (
	StatusIdle                ThreadStatus = "idle"
	StatusBusy                ThreadStatus = "busy"
	StatusError               ThreadStatus = "error"
	StatusInterrupted         ThreadStatus = "interrupted"
	StatusHumanResponseNeeded ThreadStatus = "human_response_needed"
)

// IsInterrupted reports whether threads in this status may carry interrupts.
func (s ThreadStatus) IsInterrupted() bool {
	return s == StatusInterrupted || s == StatusHumanResponseNeeded
}

// StatusFilter is a ThreadStatus or "all". It is never stored on a thread.
type StatusFilter string

const FilterAll StatusFilter = "all"

// StatusFilters lists the filters in display order.
var StatusFilters = []StatusFilter{
	StatusFilter(StatusInterrupted),
	StatusFilter(StatusIdle),
	StatusFilter(StatusBusy),
	StatusFilter(StatusError),
	FilterAll,
}

// ParseStatusFilter validates s.
func ParseStatusFilter(s string) (StatusFilter, bool) {
	switch f := StatusFilter(s); f {
	case FilterAll:
		return f, true
	case StatusFilter(StatusIdle), StatusFilter(StatusBusy), StatusFilter(StatusError),
		StatusFilter(StatusInterrupted), StatusFilter(StatusHumanResponseNeeded):
		return f, true
	}
	return "", false
}

// ThreadData is a thread normalized at ingestion. Only interrupted statuses
// carry Interrupts; InvalidSchema marks an interrupted thread whose payload
// could not be decoded.
type ThreadData struct {
	Status        ThreadStatus     `json:"status"`
	Thread        langgraph.Thread `json:"thread"`
	Interrupts    []HumanInterrupt `json:"interrupts,omitempty"`
	InvalidSchema bool             `json:"invalid_schema,omitempty"`
}

type ActionRequest struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

type HumanInterruptConfig struct {
	AllowIgnore  bool `json:"allow_ignore"`
	AllowRespond bool `json:"allow_respond"`
	AllowEdit    bool `json:"allow_edit"`
	AllowAccept  bool `json:"allow_accept"`
}

type HumanInterrupt struct {
	ActionRequest ActionRequest        `json:"action_request"`
	Config        HumanInterruptConfig `json:"config"`
	Description   string               `json:"description,omitempty"`
}

type ResponseType string

const (
	ResponseAccept   ResponseType = "accept"
	ResponseIgnore   ResponseType = "ignore"
	ResponseResponse ResponseType = "response"
	ResponseEdit     ResponseType = "edit"
)

// HumanResponse is sent back as the resume value of a run. Args is an
// ActionRequest for accept and edit, a string for response and nil for
// ignore.
type HumanResponse struct {
	Type ResponseType `json:"type"`
	Args any          `json:"args"`
}

// HumanResponseWithEdits tracks whether an edit response may still be sent
// as a plain accept.
type HumanResponseWithEdits struct {
	HumanResponse
	AcceptAllowed bool `json:"acceptAllowed,omitempty"`
	EditsMade     bool `json:"editsMade,omitempty"`
}

// Toast is a user-facing notification.
type Toast struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     string    `json:"variant,omitempty"`
	At          time.Time `json:"at"`
}
