package view

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
)

func sampleThread() types.ThreadData {
	return types.ThreadData{
		Status: types.StatusInterrupted,
		Thread: langgraph.Thread{
			ThreadID:  "0b6f7c2e-1111-2222-3333-444455556666",
			CreatedAt: "2024-01-02T15:04:05Z",
			UpdatedAt: "2024-01-02T16:00:00Z",
			Values:    json.RawMessage(`{"messages":[{"type":"human","content":"hi"}],"due_date":"2024-02-01","retry_count":3}`),
		},
		Interrupts: []types.HumanInterrupt{{
			ActionRequest: types.ActionRequest{Action: "send_email", Args: map[string]any{"to": "a@b.c", "body": "line1\nline2"}},
			Config:        types.HumanInterruptConfig{AllowEdit: true, AllowAccept: true, AllowIgnore: true},
			Description:   "Please **review** the draft",
		}},
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	html := string(RenderMarkdown("# Title\n\nSome **bold** text\n\n<script>alert(1)</script>"))
	require.Contains(t, html, "<h1>Title</h1>")
	require.Contains(t, html, "<strong>bold</strong>")
	require.NotContains(t, html, "<script>")
}

func TestMarkdownText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "plain *text*", MarkdownText("plain *text*"))
	require.Equal(t, "Please review the **draft**", MarkdownText("Please review the <b>draft</b>"))
}

func TestPreviewerRuneFallback(t *testing.T) {
	t.Parallel()

	p := RunePreviewer(2)
	require.Equal(t, "short", p.Truncate("short"))
	require.Equal(t, "abcdefgh"+ellipsis, p.Truncate("abcdefghijk"))

	var none *Previewer
	require.Equal(t, "anything at all", none.Truncate("anything at all"))
}

func TestPrettifyKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"send_email":        "Send Email",
		"deploymentUrl":     "Deployment Url",
		"interrupted":       "Interrupted",
		"human-in-the-loop": "Human In The Loop",
	}
	for in, want := range cases {
		require.Equal(t, want, PrettifyKey(in), in)
	}
}

func TestStateRows(t *testing.T) {
	t.Parallel()

	rows := StateRows(sampleThread().Thread.Values, nil)
	require.Len(t, rows, 3)
	require.Equal(t, "Due Date", rows[0].Key)
	require.Equal(t, "Feb 1, 2024", rows[0].Value)
	require.Equal(t, "Messages", rows[1].Key)
	require.True(t, rows[1].Multiline)
	require.Equal(t, "Retry Count", rows[2].Key)
	require.Equal(t, "3", rows[2].Value)

	require.Nil(t, StateRows(nil, nil))
	raw := StateRows(json.RawMessage(`[1,2]`), nil)
	require.Len(t, raw, 1)
}

func TestWriteThreads(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteThreads(&buf, []types.ThreadData{sampleThread()}, nil))
	out := buf.String()
	require.Contains(t, out, "THREAD ID")
	require.Contains(t, out, "Send Email")
	require.Contains(t, out, "Please **review** the draft")
	require.Contains(t, out, "Jan 2, 2024 3:04 PM")
}

func TestWriteThreadDetail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteThreadDetail(&buf, sampleThread(), nil))
	out := buf.String()
	require.Contains(t, out, "Action: send_email")
	require.Contains(t, out, "Allowed: accept, edit, ignore")
	require.Contains(t, out, "Retry Count: 3")
}

func TestWriteInboxes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteInboxes(&buf, []types.AgentInbox{
		{ID: "a", GraphID: "agent", DeploymentURL: "http://localhost:2024", Selected: true},
		{ID: "b", GraphID: "other", Name: "Other"},
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[1], "*"))
	require.Contains(t, lines[2], "Other")
}

func TestListPage(t *testing.T) {
	t.Parallel()

	q := params.Parse("inbox=interrupted&offset=10&limit=10&agent_inbox=a")
	layout := NewLayout("Inbox", q, []types.AgentInbox{{ID: "a", GraphID: "agent", Selected: true}}, nil, false)
	page := NewListPage(layout, q, []types.ThreadData{sampleThread()}, true, nil)

	require.Equal(t, 2, page.Page)
	require.Contains(t, page.PrevURL, "offset=0")
	require.Contains(t, page.NextURL, "offset=20")
	require.Len(t, page.Threads, 1)
	require.Contains(t, page.Threads[0].URL, "view_state_thread_id=0b6f7c2e")
	require.Len(t, page.Tabs, len(types.StatusFilters))
	require.True(t, page.Tabs[0].Active)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "list", page))
	require.Contains(t, buf.String(), "Send Email")
	require.Contains(t, buf.String(), "Page 2")
}

func TestDetailPage(t *testing.T) {
	t.Parallel()

	td := sampleThread()
	q := params.Parse("inbox=interrupted&offset=0&limit=10&view_state_thread_id=" + td.Thread.ThreadID)
	layout := NewLayout("Thread", q, nil, nil, false)
	form := &Form{
		Responses: []types.HumanResponseWithEdits{{
			HumanResponse: types.HumanResponse{
				Type: types.ResponseEdit,
				Args: types.ActionRequest{Action: "send_email", Args: map[string]any{"to": "a@b.c", "body": "line1\nline2"}},
			},
			AcceptAllowed: true,
		}},
		SubmitType: types.ResponseAccept,
	}
	page := NewDetailPage(layout, q, td, form, nil)

	require.True(t, page.Editable)
	require.False(t, page.NoInterrupt)
	require.NotContains(t, page.BackURL, "view_state_thread_id")
	require.Equal(t, []types.ResponseType{types.ResponseAccept, types.ResponseEdit}, page.SubmitTypes)
	require.Len(t, page.Args, 2)
	require.Equal(t, "body", page.Args[0].Key)
	require.True(t, page.Args[0].Multiline)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "detail", page))
	out := buf.String()
	require.Contains(t, out, "<strong>review</strong>")
	require.Contains(t, out, `name="arg.to"`)
	require.Contains(t, out, "/threads/"+td.Thread.ThreadID+"/ignore")
	require.Contains(t, out, "Mark as resolved")
}

func TestDetailPageInvalidSchema(t *testing.T) {
	t.Parallel()

	td := sampleThread()
	td.Interrupts = nil
	td.InvalidSchema = true
	page := NewDetailPage(NewLayout("Thread", params.Query{}, nil, nil, false), params.Query{}, td, nil, nil)
	require.True(t, page.NoInterrupt)
	require.NotEmpty(t, page.State)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "detail", page))
	require.Contains(t, buf.String(), "does not match the expected schema")
	require.NotContains(t, buf.String(), "/respond")
}

func TestRenderSettingsAndUnknown(t *testing.T) {
	t.Parallel()

	ib := types.AgentInbox{ID: "a", GraphID: "agent", DeploymentURL: "http://localhost:2024", Selected: true}
	page := SettingsPage{Layout: NewLayout("Settings", params.Query{}, []types.AgentInbox{ib}, []types.Toast{{Title: "Saved"}}, true), Editing: &ib}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "settings", page))
	require.Contains(t, buf.String(), `action="/inboxes/a"`)
	require.Contains(t, buf.String(), "Saved")

	require.Error(t, Render(&buf, "missing", nil))
}

func TestNotificationText(t *testing.T) {
	t.Parallel()

	td := sampleThread()
	one := NotificationText([]types.ThreadData{td}, "http://127.0.0.1:3000/", nil)
	require.True(t, strings.HasPrefix(one, "A thread needs your attention:"))
	require.Contains(t, one, "• Send Email: Please **review** the draft")
	require.Contains(t, one, "http://127.0.0.1:3000/threads/"+td.Thread.ThreadID)

	two := NotificationText([]types.ThreadData{td, td}, "http://x", nil)
	require.True(t, strings.HasPrefix(two, "2 threads need your attention:"))

	require.Equal(t, "No threads are waiting for a response.", PendingText(nil, "http://x", nil))
	require.Contains(t, PendingText([]types.ThreadData{td}, "http://x", nil), "1 pending:")
}
