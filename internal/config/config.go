package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// EnvAPIKey is the environment variable overriding the provider API key.
	EnvAPIKey = "SLIPWAY_PROVIDER_API_KEY"

	// DefaultTTL is the sandbox time-to-live used when the config omits it.
	DefaultTTL = 30 * time.Minute

	// DefaultDevServerPort is the port the dev server is expected to bind.
	DefaultDevServerPort = 5173

	// DefaultSettleTimeout bounds the readiness probe window after the dev
	// server is started.
	DefaultSettleTimeout = 8 * time.Second

	// DefaultProbeInterval is the delay between readiness probe attempts.
	DefaultProbeInterval = 250 * time.Millisecond

	// DefaultInstallTimeout bounds dependency installation.
	DefaultInstallTimeout = 120 * time.Second

	// DefaultCommandTimeout bounds individual provider commands.
	DefaultCommandTimeout = 60 * time.Second

	// DefaultAppRoot is where project files are written inside the sandbox.
	DefaultAppRoot = "/home/user/app"

	// MaxFilesBytes caps the total serialized size of a project's files.
	MaxFilesBytes = 10 << 20
)

// projectIDRegex validates project identifiers. IDs start with a lowercase
// letter or digit and contain only lowercase letters, digits, or hyphens,
// at most 63 characters.
var projectIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// ValidateProjectID checks that a project identifier is well formed.
func ValidateProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("project id cannot be empty")
	}
	if !projectIDRegex.MatchString(id) {
		return fmt.Errorf("invalid project id %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, or hyphens, and be at most 63 characters", id)
	}
	return nil
}

// ProviderConfig holds provider connection settings.
type ProviderConfig struct {
	APIURL   string `toml:"api_url"`
	APIKey   string `toml:"api_key"`
	Template string `toml:"template"`
}

// SandboxConfig holds sandbox lifecycle tunables.
type SandboxConfig struct {
	TTLMinutes            int    `toml:"ttl_minutes"`
	DevServerPort         int    `toml:"dev_server_port"`
	SettleTimeoutSeconds  int    `toml:"settle_timeout_seconds"`
	InstallTimeoutSeconds int    `toml:"install_timeout_seconds"`
	CommandTimeoutSeconds int    `toml:"command_timeout_seconds"`
	AppRoot               string `toml:"app_root"`

	// DevCommand overrides framework detection with a fixed dev-server
	// command line, e.g. "pnpm dev --host".
	DevCommand string `toml:"dev_command"`
}

// Config is the top-level slipway configuration.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Sandbox  SandboxConfig  `toml:"sandbox"`
	StateDir string         `toml:"state_dir"`
}

// TTL returns the configured sandbox time-to-live.
func (c *Config) TTL() time.Duration {
	if c.Sandbox.TTLMinutes <= 0 {
		return DefaultTTL
	}
	return time.Duration(c.Sandbox.TTLMinutes) * time.Minute
}

// SettleTimeout returns the readiness probe window.
func (c *Config) SettleTimeout() time.Duration {
	if c.Sandbox.SettleTimeoutSeconds <= 0 {
		return DefaultSettleTimeout
	}
	return time.Duration(c.Sandbox.SettleTimeoutSeconds) * time.Second
}

// InstallTimeout returns the dependency install bound.
func (c *Config) InstallTimeout() time.Duration {
	if c.Sandbox.InstallTimeoutSeconds <= 0 {
		return DefaultInstallTimeout
	}
	return time.Duration(c.Sandbox.InstallTimeoutSeconds) * time.Second
}

// CommandTimeout returns the per-command bound for provider calls.
func (c *Config) CommandTimeout() time.Duration {
	if c.Sandbox.CommandTimeoutSeconds <= 0 {
		return DefaultCommandTimeout
	}
	return time.Duration(c.Sandbox.CommandTimeoutSeconds) * time.Second
}

// DevServerPort returns the expected dev server port.
func (c *Config) DevServerPort() int {
	if c.Sandbox.DevServerPort <= 0 {
		return DefaultDevServerPort
	}
	return c.Sandbox.DevServerPort
}

// AppRoot returns the sandbox directory project files are written under.
func (c *Config) AppRoot() string {
	if c.Sandbox.AppRoot == "" {
		return DefaultAppRoot
	}
	return c.Sandbox.AppRoot
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.Provider.APIURL == "" {
		return fmt.Errorf("provider.api_url is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required (or set %s)", EnvAPIKey)
	}
	if c.Sandbox.TTLMinutes < 0 {
		return fmt.Errorf("sandbox.ttl_minutes cannot be negative")
	}
	if c.Sandbox.DevServerPort < 0 || c.Sandbox.DevServerPort > 65535 {
		return fmt.Errorf("sandbox.dev_server_port out of range: %d", c.Sandbox.DevServerPort)
	}
	return nil
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "slipway", "config.toml")
}

// Load reads and validates the configuration at path. The provider API key
// may be supplied via SLIPWAY_PROVIDER_API_KEY instead of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Provider.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Paths holds the local state directory layout.
type Paths struct {
	StateDir    string
	ProjectsDir string
}

// DefaultPaths returns the path layout rooted at stateDir. An empty
// stateDir falls back to ~/.local/state/slipway.
func DefaultPaths(stateDir string) *Paths {
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			stateDir = "slipway-state"
		} else {
			stateDir = filepath.Join(home, ".local", "state", "slipway")
		}
	}
	return &Paths{
		StateDir:    stateDir,
		ProjectsDir: filepath.Join(stateDir, "projects"),
	}
}
