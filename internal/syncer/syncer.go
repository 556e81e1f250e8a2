// Package syncer pushes a project's files into a sandbox and boots its
// development server.
//
// Content travels byte for byte over the provider's file endpoint; no file
// body ever passes through a shell string. Commands run through the
// provider's structured command protocol. Readiness is a polling probe
// against the resolved endpoint with a bounded window, never a blind sleep.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	shellquote "github.com/kballard/go-shellquote"

	"github.com/slipway-build/slipway/internal/config"
	"github.com/slipway-build/slipway/internal/errors"
	"github.com/slipway-build/slipway/internal/logging"
	"github.com/slipway-build/slipway/internal/manifest"
	"github.com/slipway-build/slipway/internal/provider"
	"github.com/slipway-build/slipway/internal/session"
)

// Syncer writes project files into sandboxes and starts dev servers.
type Syncer struct {
	client provider.Client
	cfg    *config.Config

	// probeInterval is overridable in tests.
	probeInterval time.Duration
}

// New creates a Syncer backed by the given provider client.
func New(client provider.Client, cfg *config.Config) *Syncer {
	return &Syncer{
		client:        client,
		cfg:           cfg,
		probeInterval: config.DefaultProbeInterval,
	}
}

// remotePath resolves a project-relative path under the sandbox app root,
// rejecting anything that would escape it.
func (s *Syncer) remotePath(rel string) (string, error) {
	if rel == "" || path.IsAbs(rel) {
		return "", fmt.Errorf("invalid file path %q", rel)
	}
	joined, err := securejoin.SecureJoin(s.cfg.AppRoot(), rel)
	if err != nil {
		return "", fmt.Errorf("invalid file path %q: %w", rel, err)
	}
	if !strings.HasPrefix(joined, s.cfg.AppRoot()+"/") {
		return "", fmt.Errorf("file path %q escapes the app root", rel)
	}
	return joined, nil
}

// contentHash fingerprints file content for change tracking.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// sortedPaths returns the file paths in deterministic order.
func sortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ensureDirs creates every parent directory the file set needs with a
// single structured mkdir command.
func (s *Syncer) ensureDirs(ctx context.Context, sandboxID string, files map[string]string) error {
	seen := map[string]bool{}
	args := []string{"-p", s.cfg.AppRoot()}
	for rel := range files {
		remote, err := s.remotePath(rel)
		if err != nil {
			return err
		}
		dir := path.Dir(remote)
		if dir != s.cfg.AppRoot() && !seen[dir] {
			seen[dir] = true
			args = append(args, dir)
		}
	}

	res, err := s.client.Run(ctx, sandboxID, provider.Command{
		Path:    "mkdir",
		Args:    args,
		Timeout: s.cfg.CommandTimeout(),
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("mkdir failed: %s", res.Stderr)
	}
	return nil
}

// PopulateAndStart writes every file into the sandbox, installs
// dependencies when a manifest is present, starts the dev server, and
// returns the preview URL once the server answers.
func (s *Syncer) PopulateAndStart(ctx context.Context, sandboxID string, files map[string]string) (string, error) {
	logging.Debug("populating sandbox", "sandbox", sandboxID, "files", len(files))

	if err := s.ensureDirs(ctx, sandboxID, files); err != nil {
		return "", errors.SyncFailure("prepare directories", err)
	}

	for _, rel := range sortedPaths(files) {
		remote, err := s.remotePath(rel)
		if err != nil {
			return "", errors.SyncFailure("resolve path", err)
		}
		if err := s.client.WriteFile(ctx, sandboxID, remote, files[rel]); err != nil {
			return "", errors.SyncFailure(fmt.Sprintf("write %s", rel), err)
		}
	}

	detection := manifest.Detect(files, s.cfg.DevServerPort())
	logging.Debug("application detected", "type", detection.Type, "port", detection.Port)

	if detection.HasManifest {
		s.install(ctx, sandboxID)
	}

	s.stopDevServer(ctx, sandboxID)

	if err := s.startDevServer(ctx, sandboxID, detection); err != nil {
		return "", errors.SyncFailure("start dev server", err)
	}

	previewURL, err := s.client.EndpointURL(ctx, sandboxID, detection.Port)
	if err != nil {
		return "", errors.SyncFailure("resolve endpoint", err)
	}

	if err := s.waitReady(ctx, previewURL); err != nil {
		return "", errors.SyncFailure("dev server readiness", err)
	}

	logging.Debug("sandbox ready", "sandbox", sandboxID, "preview", previewURL)
	return previewURL, nil
}

// install runs dependency installation. Failures are logged, not fatal:
// many projects still run without a complete install.
func (s *Syncer) install(ctx context.Context, sandboxID string) {
	logging.Debug("installing dependencies", "sandbox", sandboxID)

	res, err := s.client.Run(ctx, sandboxID, provider.Command{
		Path:    "npm",
		Args:    []string{"install", "--no-audit", "--no-fund"},
		Dir:     s.cfg.AppRoot(),
		Timeout: s.cfg.InstallTimeout(),
	})
	if err != nil {
		logging.Warn("dependency install failed", "sandbox", sandboxID, "error", err)
		return
	}
	if res.ExitCode != 0 {
		logging.Warn("dependency install reported errors",
			"sandbox", sandboxID,
			"exitCode", res.ExitCode,
			"stderr", truncate(res.Stderr, 500))
	}
}

// stopDevServer terminates any previously running dev server so the new
// one does not collide on its port. Exit code 1 (no process matched) is
// the common case and not an error.
func (s *Syncer) stopDevServer(ctx context.Context, sandboxID string) {
	_, err := s.client.Run(ctx, sandboxID, provider.Command{
		Path:    "pkill",
		Args:    []string{"-f", "vite|next dev|react-scripts|astro dev|npm run dev"},
		Timeout: s.cfg.CommandTimeout(),
	})
	if err != nil {
		logging.Debug("stopping previous dev server", "sandbox", sandboxID, "error", err)
	}
}

// startDevServer launches the dev command in the background. A configured
// dev_command overrides framework detection.
func (s *Syncer) startDevServer(ctx context.Context, sandboxID string, detection manifest.Detection) error {
	argv := detection.DevCommand
	if s.cfg.Sandbox.DevCommand != "" {
		split, err := shellquote.Split(s.cfg.Sandbox.DevCommand)
		if err != nil {
			return fmt.Errorf("invalid dev_command: %w", err)
		}
		argv = split
	}
	if len(argv) == 0 {
		return fmt.Errorf("empty dev command")
	}

	logging.Debug("starting dev server", "sandbox", sandboxID, "command", shellquote.Join(argv...))

	_, err := s.client.Run(ctx, sandboxID, provider.Command{
		Path:       argv[0],
		Args:       argv[1:],
		Dir:        s.cfg.AppRoot(),
		Background: true,
		Timeout:    s.cfg.CommandTimeout(),
	})
	return err
}

// waitReady probes the preview URL until something answers or the settle
// window runs out. Success is never reported before the server had a
// bounded opportunity to bind its port.
func (s *Syncer) waitReady(ctx context.Context, previewURL string) error {
	deadline := time.Now().Add(s.cfg.SettleTimeout())

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := s.client.Probe(ctx, previewURL)
		if err == nil {
			logging.Debug("dev server answered", "attempt", attempt)
			return nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			return fmt.Errorf("not ready after %s: %w", s.cfg.SettleTimeout(), lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.probeInterval):
		}
	}
}

// WriteResult reports the outcome of an incremental write.
type WriteResult struct {
	Written []string
	Failed  []string
}

// WriteFiles performs an incremental write into a live sandbox. Paths whose
// content is already tracked remotely with the same hash are skipped and
// still reported as written. Individual failures do not abort the batch.
func (s *Syncer) WriteFiles(ctx context.Context, sandboxID string, files map[string]string, sess *session.Session) *WriteResult {
	result := &WriteResult{}

	if err := s.ensureDirs(ctx, sandboxID, files); err != nil {
		logging.Warn("preparing directories for incremental write", "error", err)
	}

	for _, rel := range sortedPaths(files) {
		content := files[rel]
		hash := contentHash(content)

		if tracked, ok := sess.Tracked(rel); ok && tracked == hash {
			result.Written = append(result.Written, rel)
			continue
		}

		remote, err := s.remotePath(rel)
		if err != nil {
			logging.Warn("skipping invalid path", "path", rel, "error", err)
			result.Failed = append(result.Failed, rel)
			continue
		}

		if err := s.client.WriteFile(ctx, sandboxID, remote, content); err != nil {
			logging.Warn("incremental write failed", "path", rel, "error", err)
			result.Failed = append(result.Failed, rel)
			continue
		}

		sess.Track(rel, hash)
		result.Written = append(result.Written, rel)
	}

	return result
}

// TrackAll records the full file set as present remotely, used after a
// successful populate.
func TrackAll(sess *session.Session, files map[string]string) {
	for rel, content := range files {
		sess.Track(rel, contentHash(content))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
