package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/agentinbox/pkg/langgraph"
)

func newTestClient(url, key string) *Client {
	return New(&langgraph.Config{DeploymentURL: url + "/", APIKey: key})
}

func TestSearchThreads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/threads/search" {
			t.Errorf("expected /threads/search, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("expected X-Api-Key header 'secret', got %q", r.Header.Get("X-Api-Key"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json content type, got %q", r.Header.Get("Content-Type"))
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body["status"] != "interrupted" {
			t.Errorf("expected status 'interrupted', got %v", body["status"])
		}
		if body["limit"] != float64(10) {
			t.Errorf("expected limit 10, got %v", body["limit"])
		}
		if _, ok := body["offset"]; !ok {
			t.Error("expected offset to be sent even when zero")
		}

		w.Write([]byte(`[{"thread_id":"t1","status":"interrupted","created_at":"2024-01-01"}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "secret")
	threads, err := client.SearchThreads(context.Background(), langgraph.SearchRequest{
		Status: "interrupted",
		Limit:  10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 1 || threads[0].ThreadID != "t1" {
		t.Fatalf("unexpected threads: %+v", threads)
	}
}

func TestSearchThreadsOmitsEmptyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["status"]; ok {
			t.Errorf("expected no status key, got %v", body["status"])
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	threads, err := client.SearchThreads(context.Background(), langgraph.SearchRequest{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 0 {
		t.Errorf("expected no threads, got %d", len(threads))
	}
}

func TestNoAPIKeyHeaderWhenUnset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Api-Key"]; ok {
			t.Error("expected no X-Api-Key header")
		}
		w.Write([]byte(`{"thread_id":"t1"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	if _, err := client.GetThread(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
}

func TestGetState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/t1/state" {
			t.Errorf("expected /threads/t1/state, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"values":{"x":1},"tasks":[{"id":"k","name":"n","interrupts":[{"value":{"a":1}},{"when":"during"}]}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	state, err := client.GetState(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Tasks) != 1 || len(state.Tasks[0].Interrupts) != 2 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.Tasks[0].Interrupts[1].Value != nil {
		t.Errorf("expected nil value for interrupt without value, got %s", state.Tasks[0].Interrupts[1].Value)
	}
}

func TestUpdateStateSendsNullValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/threads/t1/state" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]json.RawMessage
		json.NewDecoder(r.Body).Decode(&body)
		if string(body["values"]) != "null" {
			t.Errorf("expected values null, got %s", body["values"])
		}
		if string(body["as_node"]) != `"__end__"` {
			t.Errorf("expected as_node __end__, got %s", body["as_node"])
		}
		w.Write([]byte(`{"checkpoint":{}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	err := client.UpdateState(context.Background(), "t1", langgraph.StateUpdate{AsNode: langgraph.NodeEnd})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/t1/runs" {
			t.Errorf("expected /threads/t1/runs, got %s", r.URL.Path)
		}
		var body struct {
			AssistantID string `json:"assistant_id"`
			Command     struct {
				Resume []map[string]any `json:"resume"`
			} `json:"command"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.AssistantID != "agent" {
			t.Errorf("expected assistant_id 'agent', got %q", body.AssistantID)
		}
		if len(body.Command.Resume) != 1 || body.Command.Resume[0]["type"] != "ignore" {
			t.Errorf("unexpected resume: %+v", body.Command.Resume)
		}
		w.Write([]byte(`{"run_id":"r1","thread_id":"t1","status":"pending"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	run, err := client.CreateRun(context.Background(), "t1", langgraph.RunRequest{
		AssistantID: "agent",
		Command:     &langgraph.Command{Resume: []map[string]any{{"type": "ignore", "args": nil}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if run.RunID != "r1" {
		t.Errorf("expected run r1, got %q", run.RunID)
	}
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "bad-key")
	_, err := client.GetThread(context.Background(), "t1")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Error(), "invalid api key") {
		t.Errorf("expected body in error, got %q", apiErr.Error())
	}
}

func TestInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("expected /info, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"version":"0.2","host":{"kind":"saas","project_id":"proj-1"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.ProjectID() != "proj-1" {
		t.Errorf("expected project id proj-1, got %q", info.ProjectID())
	}
}

func TestStreamRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/t1/runs/stream" {
			t.Errorf("expected /threads/t1/runs/stream, got %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["stream_mode"] != "events" {
			t.Errorf("expected stream_mode events, got %v", body["stream_mode"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: metadata\ndata: {\"run_id\":\"r1\"}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: events\ndata: {\"event\":\"on_chain_start\",\n")
		fmt.Fprint(w, "data: \"metadata\":{\"langgraph_node\":\"tools\"}}\n\n")
		fmt.Fprint(w, "event: end\ndata: null\n\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	stream, err := client.StreamRun(context.Background(), "t1", langgraph.RunRequest{AssistantID: "agent"})
	if err != nil {
		t.Fatal(err)
	}

	var events []string
	var parts []langgraph.StreamPart
	for part := range stream {
		events = append(events, part.Event)
		parts = append(parts, part)
	}
	if strings.Join(events, ",") != "metadata,events,end" {
		t.Fatalf("unexpected events: %v", events)
	}

	var data struct {
		Event    string `json:"event"`
		Metadata struct {
			Node string `json:"langgraph_node"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(parts[1].Data, &data); err != nil {
		t.Fatalf("multi-line data should join into valid JSON: %v", err)
	}
	if data.Metadata.Node != "tools" {
		t.Errorf("expected node 'tools', got %q", data.Metadata.Node)
	}
}

func TestStreamRunCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: metadata\ndata: {}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(server.URL, "")
	stream, err := client.StreamRun(ctx, "t1", langgraph.RunRequest{AssistantID: "agent"})
	if err != nil {
		t.Fatal(err)
	}

	first := <-stream
	if first.Event != "metadata" {
		t.Fatalf("expected metadata event, got %q", first.Event)
	}
	cancel()

	select {
	case _, ok := <-stream:
		for ok {
			_, ok = <-stream
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream was not closed after cancel")
	}
}

func TestStreamRunAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`not found`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	_, err := client.StreamRun(context.Background(), "missing", langgraph.RunRequest{AssistantID: "agent"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}

func TestClientBackendInterface(t *testing.T) {
	var _ langgraph.Backend = (*Client)(nil)
}
