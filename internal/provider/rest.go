package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/slipway-build/slipway/internal/logging"
)

const (
	// defaultHTTPTimeout bounds control-plane API calls.
	defaultHTTPTimeout = 60 * time.Second

	// probeTimeout bounds a single readiness probe attempt.
	probeTimeout = 2 * time.Second
)

// RESTConfig holds settings for the REST provider client.
type RESTConfig struct {
	// APIURL is the control plane base URL (required).
	APIURL string

	// APIKey authenticates control plane calls (required).
	APIKey string

	// Template is the sandbox template identifier. Defaults to "base".
	Template string

	// HTTPClient overrides the default client, used in tests.
	HTTPClient *http.Client
}

// RESTClient talks to an E2B-style sandbox provider: a control plane for
// create/info/destroy and a per-sandbox data plane for files and commands.
type RESTClient struct {
	cfg  RESTConfig
	http *http.Client

	mu        sync.RWMutex
	sandboxes map[string]*Sandbox
}

var _ Client = (*RESTClient)(nil)

// NewRESTClient creates a provider client against cfg.APIURL.
func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("provider API URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider API key is required")
	}
	if cfg.Template == "" {
		cfg.Template = "base"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &RESTClient{
		cfg:       cfg,
		http:      httpClient,
		sandboxes: make(map[string]*Sandbox),
	}, nil
}

type createSandboxRequest struct {
	TemplateID string `json:"templateID"`
	TimeoutSec int    `json:"timeout"`
}

type createSandboxResponse struct {
	SandboxID   string `json:"sandboxID"`
	Domain      string `json:"domain"`
	AccessToken string `json:"accessToken"`
	EndAt       string `json:"endAt"`
}

// Create provisions a new sandbox with the given time-to-live.
func (c *RESTClient) Create(ctx context.Context, ttl time.Duration) (*Sandbox, error) {
	req := createSandboxRequest{
		TemplateID: c.cfg.Template,
		TimeoutSec: int(ttl.Seconds()),
	}

	var resp createSandboxResponse
	if err := c.controlCall(ctx, http.MethodPost, "/sandboxes", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}
	if resp.SandboxID == "" {
		return nil, fmt.Errorf("provider returned no sandbox id")
	}

	endAt, err := time.Parse(time.RFC3339, resp.EndAt)
	if err != nil {
		return nil, fmt.Errorf("provider returned malformed endAt %q: %w", resp.EndAt, err)
	}

	sb := &Sandbox{
		ID:          resp.SandboxID,
		Domain:      resp.Domain,
		AccessToken: resp.AccessToken,
		EndAt:       endAt,
	}

	c.mu.Lock()
	c.sandboxes[sb.ID] = sb
	c.mu.Unlock()

	logging.Debug("sandbox created", "sandbox", sb.ID, "template", c.cfg.Template, "ttl", ttl)
	return sb, nil
}

type infoResponse struct {
	SandboxID string `json:"sandboxID"`
	EndAt     string `json:"endAt"`
}

// Info queries the live status of a sandbox.
func (c *RESTClient) Info(ctx context.Context, sandboxID string) (*Info, error) {
	var resp infoResponse
	if err := c.controlCall(ctx, http.MethodGet, "/sandboxes/"+url.PathEscape(sandboxID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get sandbox info: %w", err)
	}
	if resp.SandboxID == "" || resp.EndAt == "" {
		return nil, fmt.Errorf("provider info response missing required fields")
	}

	endAt, err := time.Parse(time.RFC3339, resp.EndAt)
	if err != nil {
		return nil, fmt.Errorf("provider returned malformed endAt %q: %w", resp.EndAt, err)
	}

	return &Info{SandboxID: resp.SandboxID, EndAt: endAt}, nil
}

// Destroy tears down a sandbox. A 404 means the provider already reclaimed
// it and is treated as success.
func (c *RESTClient) Destroy(ctx context.Context, sandboxID string) error {
	c.mu.Lock()
	delete(c.sandboxes, sandboxID)
	c.mu.Unlock()

	err := c.controlCall(ctx, http.MethodDelete, "/sandboxes/"+url.PathEscape(sandboxID), nil, nil)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			logging.Debug("sandbox already gone", "sandbox", sandboxID)
			return nil
		}
		return fmt.Errorf("failed to destroy sandbox: %w", err)
	}

	logging.Debug("sandbox destroyed", "sandbox", sandboxID)
	return nil
}

type runCommandRequest struct {
	Cmd        string   `json:"cmd"`
	Args       []string `json:"args"`
	Cwd        string   `json:"cwd,omitempty"`
	Background bool     `json:"background,omitempty"`
	TimeoutSec int      `json:"timeout,omitempty"`
}

type runCommandResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// Run executes a command inside a sandbox via the data plane commands
// endpoint. Arguments travel as a JSON array, never through a shell string.
func (c *RESTClient) Run(ctx context.Context, sandboxID string, cmd Command) (*RunResult, error) {
	sb, err := c.getSandbox(sandboxID)
	if err != nil {
		return nil, err
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	req := runCommandRequest{
		Cmd:        cmd.Path,
		Args:       cmd.Args,
		Cwd:        cmd.Dir,
		Background: cmd.Background,
	}
	if cmd.Timeout > 0 {
		req.TimeoutSec = int(cmd.Timeout.Seconds())
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	u := c.dataBaseURL(sb) + "/commands/run"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Access-Token", sb.AccessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("command request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &apiError{status: resp.StatusCode, body: string(errBody)}
	}

	var cmdResp runCommandResponse
	if err := json.NewDecoder(resp.Body).Decode(&cmdResp); err != nil {
		return nil, fmt.Errorf("failed to decode command result: %w", err)
	}

	return &RunResult{
		Stdout:   cmdResp.Stdout,
		Stderr:   cmdResp.Stderr,
		ExitCode: cmdResp.ExitCode,
	}, nil
}

// WriteFile writes content to a path inside the sandbox via the data plane
// files endpoint. The multipart body carries content byte for byte; no
// escaping round-trip is involved.
func (c *RESTClient) WriteFile(ctx context.Context, sandboxID, path, content string) error {
	sb, err := c.getSandbox(sandboxID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", path)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	u := fmt.Sprintf("%s/files?path=%s", c.dataBaseURL(sb), url.QueryEscape(path))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("X-Access-Token", sb.AccessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("file write failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		return &apiError{status: resp.StatusCode, body: string(errBody)}
	}

	return nil
}

// ReadFile reads a file back from the sandbox via the data plane files
// endpoint.
func (c *RESTClient) ReadFile(ctx context.Context, sandboxID, path string) (string, error) {
	sb, err := c.getSandbox(sandboxID)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/files?path=%s", c.dataBaseURL(sb), url.QueryEscape(path))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("X-Access-Token", sb.AccessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("file read failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", &apiError{status: resp.StatusCode, body: string(errBody)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EndpointURL resolves the externally reachable URL for a sandbox port.
// Provider hosts follow the {port}-{id}.{domain} scheme, so no API call
// is needed.
func (c *RESTClient) EndpointURL(_ context.Context, sandboxID string, port int) (string, error) {
	sb, err := c.getSandbox(sandboxID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%d-%s.%s", port, sb.ID, sb.Domain), nil
}

// Probe attempts a lightweight GET against url. Any HTTP response counts
// as ready; only transport-level failures mean nothing is listening yet.
func (c *RESTClient) Probe(ctx context.Context, probeURL string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// getSandbox returns the tracked handle for a sandbox id.
func (c *RESTClient) getSandbox(sandboxID string) (*Sandbox, error) {
	c.mu.RLock()
	sb, ok := c.sandboxes[sandboxID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown sandbox: %s", sandboxID)
	}
	return sb, nil
}

// dataBaseURL returns the base URL for the sandbox's data plane API.
func (c *RESTClient) dataBaseURL(sb *Sandbox) string {
	return fmt.Sprintf("https://%s.%s", sb.ID, sb.Domain)
}

// controlCall makes an HTTP request to the provider control plane.
func (c *RESTClient) controlCall(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{status: resp.StatusCode, body: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// apiError carries the HTTP status of a failed provider call so callers can
// distinguish "gone" from "broken".
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider API error (status %d): %s", e.status, e.body)
}
