// Package backend builds deployment clients for the selected inbox.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/user/agentinbox/internal/toast"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
	"github.com/user/agentinbox/pkg/langgraph/httpclient"
)

var (
	ErrNoInboxes       = errors.New("no agent inboxes configured")
	ErrNoDeploymentURL = errors.New("selected inbox has no deployment URL")
	ErrNoAPIKey        = errors.New("no API key configured for deployed graph")
)

// NewClientFunc constructs a backend for a deployment.
type NewClientFunc func(config *langgraph.Config) langgraph.Backend

// Factory turns the inbox list into a client for the selected inbox. Each
// failed call returns one sentinel error and raises exactly one toast.
type Factory struct {
	prefs       types.Preferences
	notify      types.Notifier
	fallbackKey string
	timeout     time.Duration
	newClient   NewClientFunc
}

// Option configures a Factory.
type Option func(*Factory)

// WithFallbackAPIKey sets the key used when none is stored in preferences.
func WithFallbackAPIKey(key string) Option {
	return func(f *Factory) { f.fallbackKey = key }
}

// WithTimeout sets the per-request timeout of created clients.
func WithTimeout(d time.Duration) Option {
	return func(f *Factory) { f.timeout = d }
}

// WithClientFunc replaces the HTTP client constructor.
func WithClientFunc(fn NewClientFunc) Option {
	return func(f *Factory) { f.newClient = fn }
}

// NewFactory creates a Factory. notify may be nil.
func NewFactory(prefs types.Preferences, notify types.Notifier, opts ...Option) *Factory {
	f := &Factory{
		prefs:  prefs,
		notify: notify,
		newClient: func(config *langgraph.Config) langgraph.Backend {
			return httpclient.New(config)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns a backend bound to the selected inbox. Checks run in
// order: inboxes exist, a deployment URL is set, and a key is present for
// non-local deployments.
func (f *Factory) Client(inboxes []types.AgentInbox) (langgraph.Backend, error) {
	return f.client(inboxes, f.notify)
}

// BackgroundClient runs the same checks as Client but only logs failures.
// Scheduled work uses it so repeated ticks do not pile up toasts.
func (f *Factory) BackgroundClient(inboxes []types.AgentInbox) (langgraph.Backend, error) {
	return f.client(inboxes, nil)
}

func (f *Factory) client(inboxes []types.AgentInbox, notify types.Notifier) (langgraph.Backend, error) {
	if len(inboxes) == 0 {
		return nil, fail(notify, ErrNoInboxes, "No agent inboxes found. Please add an inbox in settings.")
	}

	selected := inboxes[0]
	for _, ib := range inboxes {
		if ib.Selected {
			selected = ib
			break
		}
	}

	if strings.TrimSpace(selected.DeploymentURL) == "" {
		return nil, fail(notify, ErrNoDeploymentURL, "Please ensure your selected agent inbox has a deployment URL.")
	}

	apiKey := f.APIKey()
	if apiKey == "" && !IsLocal(selected.DeploymentURL) {
		return nil, fail(notify, ErrNoAPIKey, "Please add your LangSmith API key in settings.")
	}

	return f.newClient(&langgraph.Config{
		DeploymentURL: selected.DeploymentURL,
		APIKey:        apiKey,
		Timeout:       f.timeout,
	}), nil
}

// APIKey returns the stored key, falling back to the configured one.
func (f *Factory) APIKey() string {
	if key, ok := f.prefs.Get(types.PrefAPIKey); ok && key != "" {
		return key
	}
	return f.fallbackKey
}

// ProjectID asks a deployment for its hosting project. Local deployments
// return "" without a request.
func (f *Factory) ProjectID(ctx context.Context, deploymentURL string) (string, error) {
	if IsLocal(deploymentURL) {
		return "", nil
	}
	client := f.newClient(&langgraph.Config{
		DeploymentURL: deploymentURL,
		APIKey:        f.APIKey(),
		Timeout:       f.timeout,
	})
	info, err := client.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching deployment info: %w", err)
	}
	return info.ProjectID(), nil
}

func fail(notify types.Notifier, err error, description string) error {
	slog.Warn("backend client unavailable", "error", err)
	if notify != nil {
		notify.Notify(toast.Error("Error", description))
	}
	return err
}

var localHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::1":       true,
}

// IsLocal reports whether rawURL points at a development host.
func IsLocal(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return localHosts[host] || strings.HasSuffix(host, ".local")
}
