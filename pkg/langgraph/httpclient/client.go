package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/agentinbox/pkg/langgraph"
)

// Client implements langgraph.Backend over the deployment's REST API.
type Client struct {
	config     *langgraph.Config
	baseURL    string
	httpClient *http.Client
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// New creates a client bound to config.DeploymentURL.
func New(config *langgraph.Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.DeploymentURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SearchThreads posts req to /threads/search.
func (c *Client) SearchThreads(ctx context.Context, req langgraph.SearchRequest) ([]langgraph.Thread, error) {
	var threads []langgraph.Thread
	if err := c.do(ctx, http.MethodPost, "/threads/search", req, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// GetThread fetches /threads/{id}.
func (c *Client) GetThread(ctx context.Context, threadID string) (*langgraph.Thread, error) {
	var thread langgraph.Thread
	if err := c.do(ctx, http.MethodGet, threadPath(threadID, ""), nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// GetState fetches /threads/{id}/state.
func (c *Client) GetState(ctx context.Context, threadID string) (*langgraph.ThreadState, error) {
	var state langgraph.ThreadState
	if err := c.do(ctx, http.MethodGet, threadPath(threadID, "/state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// UpdateState posts update to /threads/{id}/state.
func (c *Client) UpdateState(ctx context.Context, threadID string, update langgraph.StateUpdate) error {
	return c.do(ctx, http.MethodPost, threadPath(threadID, "/state"), update, nil)
}

// CreateRun posts req to /threads/{id}/runs.
func (c *Client) CreateRun(ctx context.Context, threadID string, req langgraph.RunRequest) (*langgraph.Run, error) {
	var run langgraph.Run
	if err := c.do(ctx, http.MethodPost, threadPath(threadID, "/runs"), req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// StreamRun posts req to /threads/{id}/runs/stream and decodes the
// server-sent events into parts. The stream request is not bound by the
// client timeout; ctx controls its lifetime.
func (c *Client) StreamRun(ctx context.Context, threadID string, req langgraph.RunRequest) (<-chan langgraph.StreamPart, error) {
	if req.StreamMode == "" {
		req.StreamMode = langgraph.StreamModeEvents
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, threadPath(threadID, "/runs/stream"), req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	ch := make(chan langgraph.StreamPart)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		err := readEvents(resp.Body, func(part langgraph.StreamPart) bool {
			select {
			case ch <- part:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			select {
			case ch <- langgraph.StreamPart{Event: "error", Err: fmt.Errorf("reading stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// Info fetches /info.
func (c *Client) Info(ctx context.Context) (*langgraph.Info, error) {
	var info langgraph.Info
	if err := c.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("X-Api-Key", c.config.APIKey)
	}
	return req, nil
}

func threadPath(threadID, suffix string) string {
	return "/threads/" + url.PathEscape(threadID) + suffix
}
