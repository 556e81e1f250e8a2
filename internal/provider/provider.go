// Package provider defines the sandbox provider client interface for slipway.
// This abstraction covers the remote provisioning service the lifecycle
// engine depends on and enables comprehensive testing through mocking.
package provider

import (
	"context"
	"time"
)

// Sandbox is the live handle returned when a sandbox is created.
type Sandbox struct {
	ID          string
	Domain      string
	AccessToken string
	EndAt       time.Time
}

// Info holds the live status of a sandbox as reported by the provider.
// Both fields are required; a response missing either fails at the boundary.
type Info struct {
	SandboxID string
	EndAt     time.Time
}

// Command describes a command to execute inside a sandbox. Arguments are
// passed structurally; content never travels through shell interpolation.
type Command struct {
	Path       string
	Args       []string
	Dir        string
	Background bool
	Timeout    time.Duration
}

// RunResult holds the captured output of a command.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Client is the interface sandbox providers must implement.
// All methods must be safe for concurrent use and honor context deadlines.
type Client interface {
	// Create provisions a new sandbox with the given time-to-live.
	Create(ctx context.Context, ttl time.Duration) (*Sandbox, error)

	// Run executes a command inside a sandbox and captures its output.
	// Background commands return immediately with an empty result.
	Run(ctx context.Context, sandboxID string, cmd Command) (*RunResult, error)

	// Info queries the live status of a sandbox.
	Info(ctx context.Context, sandboxID string) (*Info, error)

	// WriteFile writes content to a path inside the sandbox, byte for byte.
	WriteFile(ctx context.Context, sandboxID, path, content string) error

	// ReadFile reads a file back from the sandbox, byte for byte.
	ReadFile(ctx context.Context, sandboxID, path string) (string, error)

	// EndpointURL resolves the externally reachable URL for a port the
	// sandbox is listening on.
	EndpointURL(ctx context.Context, sandboxID string, port int) (string, error)

	// Destroy tears down a sandbox. A handle that is already gone is not
	// an error.
	Destroy(ctx context.Context, sandboxID string) error

	// Probe attempts a lightweight connection to url and returns nil once
	// something is answering there.
	Probe(ctx context.Context, url string) error
}
