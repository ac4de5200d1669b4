// Package bridgeclient is the HTTP SDK the unityctl CLI uses to talk to a
// running Bridge. It discovers the daemon through the project descriptor and
// wraps the /rpc, /logs, and /history surfaces.
package bridgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unityctl/unityctl/internal/project"
	"github.com/unityctl/unityctl/internal/protocol"
)

// Client talks to one Bridge over loopback HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

type clientConfig struct {
	baseURL string
	timeout time.Duration
	httpc   *http.Client
}

// Option configures New.
type Option func(*clientConfig)

// WithBaseURL sets the Bridge base URL directly, bypassing discovery.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = u }
}

// WithTimeout sets the HTTP client timeout. This is a transport bound, not
// the logical RPC deadline; RPC sizes the transport timeout above the
// logical one so the Bridge's 504 wins.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *clientConfig) { c.httpc = h }
}

// New creates a client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: 30 * time.Second}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.baseURL == "" {
		return nil, fmt.Errorf("base URL is required (use WithBaseURL or Discover)")
	}
	httpc := cfg.httpc
	if httpc == nil {
		httpc = &http.Client{Timeout: cfg.timeout}
	}
	return &Client{baseURL: cfg.baseURL, http: httpc}, nil
}

// Discover locates the Bridge for a project root via its descriptor file.
func Discover(projectRoot string, opts ...Option) (*Client, error) {
	d, err := project.ReadDescriptor(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("no bridge found for project (is the daemon running?): %w", err)
	}
	opts = append([]Option{WithBaseURL(fmt.Sprintf("http://127.0.0.1:%d", d.Port))}, opts...)
	return New(opts...)
}

// Health is the /health response.
type Health struct {
	Status             string `json:"status"`
	ProjectID          string `json:"projectId"`
	UnityConnected     bool   `json:"unityConnected"`
	EditorReady        bool   `json:"editorReady"`
	BridgeVersion      string `json:"bridgeVersion"`
	UnityPluginVersion string `json:"unityPluginVersion,omitempty"`
}

// Health queries the daemon's health endpoint.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// WaitHealthy polls /health with exponential backoff until the daemon
// answers or ctx expires.
func (c *Client) WaitHealthy(ctx context.Context) (*Health, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	var h *Health
	op := func() error {
		var err error
		h, err = c.Health(ctx)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("bridge did not become healthy: %w", err)
	}
	return h, nil
}

// RPC invokes a command. A non-2xx HTTP status still yields the decoded
// response when the body carries one; callers inspect resp.Status.
// timeout is the logical deadline in seconds; zero uses the Bridge default.
func (c *Client) RPC(ctx context.Context, command string, args map[string]any, agentID string, timeout float64) (*protocol.Response, error) {
	body := map[string]any{"command": command}
	if len(args) > 0 {
		body["args"] = args
	}
	if agentID != "" {
		body["agentId"] = agentID
	}
	if timeout > 0 {
		body["timeout"] = timeout
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.doLongPoll(req, timeout)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", command, err)
	}
	defer httpResp.Body.Close()

	var resp protocol.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("rpc %s: decode response (http %d): %w", command, httpResp.StatusCode, err)
	}
	return &resp, nil
}

// doLongPoll runs a request on a client whose transport timeout sits above
// the logical deadline, so the daemon's own TIMEOUT answer arrives first.
func (c *Client) doLongPoll(req *http.Request, logicalSeconds float64) (*http.Response, error) {
	if logicalSeconds <= 0 {
		// Bridge-side default deadlines top out at 600s for test/build.
		logicalSeconds = 600
	}
	client := &http.Client{
		Transport: c.http.Transport,
		Timeout:   time.Duration((logicalSeconds + 30) * float64(time.Second)),
	}
	return client.Do(req)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: http %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: http %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
