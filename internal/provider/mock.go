package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a mock implementation of Client for testing.
type MockClient struct {
	mu sync.Mutex

	// Sandboxes tracks live mock sandboxes by id.
	Sandboxes map[string]*Sandbox

	// Files tracks written file content per sandbox: id -> path -> content.
	Files map[string]map[string]string

	// RunResults maps command paths to canned results.
	RunResults map[string]*RunResult

	// Errors injects errors for specific operations
	// ("create", "run", "info", "write", "read", "endpoint", "destroy", "probe").
	Errors map[string]error

	// CallLog records all method calls for verification.
	CallLog []MockCall

	// InfoOverride, when set, is returned by Info regardless of state.
	InfoOverride *Info

	// ProbeFailures is the number of initial Probe calls that fail before
	// probes start succeeding.
	ProbeFailures int

	nextID int
	probes int
}

// MockCall represents a recorded method call.
type MockCall struct {
	Method string
	Args   []interface{}
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock provider client.
func NewMockClient() *MockClient {
	return &MockClient{
		Sandboxes:  make(map[string]*Sandbox),
		Files:      make(map[string]map[string]string),
		RunResults: make(map[string]*RunResult),
		Errors:     make(map[string]error),
		CallLog:    make([]MockCall, 0),
	}
}

func (m *MockClient) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError injects an error for a specific operation.
func (m *MockClient) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// Calls returns how many times a method was called.
func (m *MockClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.CallLog {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Create provisions a new mock sandbox.
func (m *MockClient) Create(_ context.Context, ttl time.Duration) (*Sandbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create", ttl)

	if err := m.Errors["create"]; err != nil {
		return nil, err
	}

	m.nextID++
	sb := &Sandbox{
		ID:     fmt.Sprintf("sbx-%04d", m.nextID),
		Domain: "mock.test",
		EndAt:  time.Now().Add(ttl),
	}
	m.Sandboxes[sb.ID] = sb
	m.Files[sb.ID] = make(map[string]string)
	return sb, nil
}

// Run records the command and returns a canned result when one is set for
// the command path, or a zero-exit result otherwise.
func (m *MockClient) Run(_ context.Context, sandboxID string, cmd Command) (*RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("run", sandboxID, cmd)

	if err := m.Errors["run"]; err != nil {
		return nil, err
	}
	if _, ok := m.Sandboxes[sandboxID]; !ok {
		return nil, fmt.Errorf("unknown sandbox: %s", sandboxID)
	}

	if res, ok := m.RunResults[cmd.Path]; ok {
		return res, nil
	}
	return &RunResult{ExitCode: 0}, nil
}

// Info returns the live status of a mock sandbox.
func (m *MockClient) Info(_ context.Context, sandboxID string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("info", sandboxID)

	if err := m.Errors["info"]; err != nil {
		return nil, err
	}
	if m.InfoOverride != nil {
		return m.InfoOverride, nil
	}

	sb, ok := m.Sandboxes[sandboxID]
	if !ok {
		return nil, fmt.Errorf("unknown sandbox: %s", sandboxID)
	}
	return &Info{SandboxID: sb.ID, EndAt: sb.EndAt}, nil
}

// WriteFile stores content for a mock sandbox.
func (m *MockClient) WriteFile(_ context.Context, sandboxID, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("write", sandboxID, path)

	if err := m.Errors["write"]; err != nil {
		return err
	}

	files, ok := m.Files[sandboxID]
	if !ok {
		return fmt.Errorf("unknown sandbox: %s", sandboxID)
	}
	files[path] = content
	return nil
}

// ReadFile returns previously written content.
func (m *MockClient) ReadFile(_ context.Context, sandboxID, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("read", sandboxID, path)

	if err := m.Errors["read"]; err != nil {
		return "", err
	}

	files, ok := m.Files[sandboxID]
	if !ok {
		return "", fmt.Errorf("unknown sandbox: %s", sandboxID)
	}
	content, ok := files[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return content, nil
}

// EndpointURL resolves a mock preview URL.
func (m *MockClient) EndpointURL(_ context.Context, sandboxID string, port int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("endpoint", sandboxID, port)

	if err := m.Errors["endpoint"]; err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%d-%s.mock.test", port, sandboxID), nil
}

// Destroy removes a mock sandbox. Destroying an unknown sandbox is not an
// error, matching the provider contract.
func (m *MockClient) Destroy(_ context.Context, sandboxID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("destroy", sandboxID)

	if err := m.Errors["destroy"]; err != nil {
		return err
	}
	delete(m.Sandboxes, sandboxID)
	delete(m.Files, sandboxID)
	return nil
}

// Probe fails ProbeFailures times, then succeeds.
func (m *MockClient) Probe(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("probe", url)

	if err := m.Errors["probe"]; err != nil {
		return err
	}
	m.probes++
	if m.probes <= m.ProbeFailures {
		return fmt.Errorf("connection refused")
	}
	return nil
}
