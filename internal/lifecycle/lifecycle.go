// Package lifecycle orchestrates sandbox provisioning, reuse, and teardown
// for projects. The Manager is the single entry point the commands call:
// it owns the ordering guarantees (per-project serialization, destroy
// before recreate, persist only after the dev server answers).
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/slipway-build/slipway/internal/config"
	"github.com/slipway-build/slipway/internal/errors"
	"github.com/slipway-build/slipway/internal/logging"
	"github.com/slipway-build/slipway/internal/project"
	"github.com/slipway-build/slipway/internal/provider"
	"github.com/slipway-build/slipway/internal/reconcile"
	"github.com/slipway-build/slipway/internal/scaffold"
	"github.com/slipway-build/slipway/internal/session"
	"github.com/slipway-build/slipway/internal/syncer"
)

// Manager coordinates the project store, the provider, and the in-process
// session. All operations on the same project are serialized; operations
// on different projects may run concurrently.
type Manager struct {
	store  project.Store
	client provider.Client
	sess   *session.Session
	sync   *syncer.Syncer
	cfg    *config.Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// createMu serializes every destroy/create/reassign of the in-process
	// session across projects. The session is a single process-wide handle,
	// so two projects mutating it concurrently could each tear down the
	// other's reservation and leave orphaned sandboxes behind.
	createMu sync.Mutex

	// now is overridable in tests.
	now func() time.Time
}

// NewManager wires a Manager from its collaborators.
func NewManager(store project.Store, client provider.Client, sess *session.Session, cfg *config.Config) *Manager {
	return &Manager{
		store:  store,
		client: client,
		sess:   sess,
		sync:   syncer.New(client, cfg),
		cfg:    cfg,
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

// projectLock returns the mutex serializing operations on projectID.
func (m *Manager) projectLock(projectID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[projectID] = l
	}
	return l
}

// EnsureOptions tunes EnsureSandbox behavior.
type EnsureOptions struct {
	// ScaffoldOnEmpty seeds an empty project with the starter app instead
	// of failing. When false, an empty project is an error.
	ScaffoldOnEmpty bool
}

// EnsureResult describes the sandbox serving the project after a
// successful EnsureSandbox.
type EnsureResult struct {
	SandboxID        string
	PreviewURL       string
	FilesCount       int
	RemainingMinutes int

	// Reused is true when the previously recorded sandbox was still live
	// and no new one was provisioned.
	Reused bool

	// Scaffolded is true when the starter app was written into an empty
	// project as part of this call.
	Scaffolded bool
}

// EnsureSandbox guarantees the project has a live sandbox serving its
// files and returns how to reach it. A reusable recorded sandbox is
// returned as-is; anything else is destroyed and replaced. The sandbox
// record is persisted only after the dev server answered, so a crash
// mid-provision never leaves a record pointing at a half-built sandbox.
func (m *Manager) EnsureSandbox(ctx context.Context, projectID, ownerID string, opts EnsureOptions) (*EnsureResult, error) {
	lock := m.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	proj, err := m.store.Load(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}

	scaffolded := false
	if len(proj.Files) == 0 {
		if !opts.ScaffoldOnEmpty {
			return nil, errors.EmptyProject(projectID)
		}
		proj.Files = scaffold.Files()
		if err := m.store.SaveFiles(ctx, projectID, proj.Files); err != nil {
			return nil, errors.Wrap(errors.KindSyncFailure, "persisting scaffold", err)
		}
		scaffolded = true
		logging.Info("scaffolded starter app", "project", projectID, "files", len(proj.Files))
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	now := m.now()
	verdict := reconcile.Check(ctx, m.client, m.sess, proj.Sandbox, projectID, now)
	if verdict.Reusable {
		if err := m.store.SaveSandboxInfo(ctx, projectID, proj.Sandbox); err != nil {
			logging.Warn("persisting refreshed expiry", "project", projectID, "error", err)
		}
		logging.Debug("reusing sandbox",
			"project", projectID,
			"sandbox", proj.Sandbox.SandboxID,
			"remainingMinutes", verdict.RemainingMinutes)
		return &EnsureResult{
			SandboxID:        proj.Sandbox.SandboxID,
			PreviewURL:       proj.Sandbox.PreviewURL,
			FilesCount:       len(proj.Files),
			RemainingMinutes: verdict.RemainingMinutes,
			Reused:           true,
			Scaffolded:       scaffolded,
		}, nil
	}

	logging.Debug("sandbox not reusable", "project", projectID, "reason", verdict.Reason)
	m.teardown(ctx, proj)

	if err := m.sess.Begin(projectID); err != nil {
		return nil, errors.Wrap(errors.KindSyncFailure, "reserving session", err)
	}

	sb, err := m.client.Create(ctx, m.cfg.TTL())
	if err != nil {
		m.sess.Destroy()
		return nil, errors.ProviderUnavailable("create sandbox", err)
	}
	logging.Info("sandbox created", "project", projectID, "sandbox", sb.ID)

	// Never leak a sandbox a client cannot reach. Every failure after a
	// successful create must destroy the sandbox and release the session.
	cleanup := func(cause error) error {
		if derr := m.client.Destroy(ctx, sb.ID); derr != nil {
			logging.Warn("cleaning up failed sandbox", "sandbox", sb.ID, "error", derr)
		}
		m.sess.Destroy()
		return cause
	}

	previewURL, err := m.sync.PopulateAndStart(ctx, sb.ID, proj.Files)
	if err != nil {
		return nil, cleanup(err)
	}

	if err := m.sess.Activate(projectID, sb.ID); err != nil {
		return nil, cleanup(errors.Wrap(errors.KindSyncFailure, "activating session", err))
	}
	syncer.TrackAll(m.sess, proj.Files)

	info := &project.SandboxInfo{
		SandboxID:  sb.ID,
		PreviewURL: previewURL,
		StartTime:  now,
		EndTime:    sb.EndAt,
	}
	if err := m.store.SaveSandboxInfo(ctx, projectID, info); err != nil {
		return nil, cleanup(errors.Wrap(errors.KindSyncFailure, "persisting sandbox info", err))
	}

	return &EnsureResult{
		SandboxID:        sb.ID,
		PreviewURL:       previewURL,
		FilesCount:       len(proj.Files),
		RemainingMinutes: info.RemainingMinutes(now),
		Scaffolded:       scaffolded,
	}, nil
}

// teardown destroys whatever sandbox the record or the session still
// references. Destroy failures are logged and swallowed: the provider
// reclaims expired sandboxes on its own, and a new create must not be
// blocked by a dead handle.
func (m *Manager) teardown(ctx context.Context, proj *project.Project) {
	ids := map[string]bool{}
	if proj.Sandbox != nil && proj.Sandbox.SandboxID != "" {
		ids[proj.Sandbox.SandboxID] = true
	}
	if id := m.sess.SandboxID(); id != "" {
		ids[id] = true
	}
	for id := range ids {
		if err := m.client.Destroy(ctx, id); err != nil {
			logging.Warn("destroying stale sandbox", "sandbox", id, "error", err)
		} else {
			logging.Debug("destroyed stale sandbox", "sandbox", id)
		}
	}
	m.sess.Destroy()
}

// StatusState classifies a project's sandbox at read time.
type StatusState string

const (
	StatusRunning  StatusState = "running"
	StatusExpired  StatusState = "expired"
	StatusNotFound StatusState = "not_found"
)

// Status is a read-only view of the project's sandbox. Reads never mutate
// provider state and never fail on provider unreachability; an unreachable
// sandbox simply reports as expired.
type Status struct {
	State            StatusState
	SandboxID        string
	PreviewURL       string
	RemainingMinutes int
	Action           reconcile.Action
}

// GetStatus reports whether the project's recorded sandbox is live. The
// only errors are store errors; provider failures degrade to an expired
// verdict.
func (m *Manager) GetStatus(ctx context.Context, projectID, ownerID string) (*Status, error) {
	proj, err := m.store.Load(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}

	if proj.Sandbox == nil || proj.Sandbox.SandboxID == "" {
		return &Status{State: StatusNotFound, Action: reconcile.ActionSyncNeeded}, nil
	}

	verdict := reconcile.Check(ctx, m.client, m.sess, proj.Sandbox, projectID, m.now())
	if !verdict.Reusable {
		return &Status{
			State:      StatusExpired,
			SandboxID:  proj.Sandbox.SandboxID,
			PreviewURL: proj.Sandbox.PreviewURL,
			Action:     reconcile.ActionSyncNeeded,
		}, nil
	}

	m.persistRefresh(ctx, projectID, ownerID, proj.Sandbox)

	return &Status{
		State:            StatusRunning,
		SandboxID:        proj.Sandbox.SandboxID,
		PreviewURL:       proj.Sandbox.PreviewURL,
		RemainingMinutes: verdict.RemainingMinutes,
		Action:           reconcile.ActionNone,
	}, nil
}

// persistRefresh writes a refreshed expiry back to the store. GetStatus is
// a read path, so the persist is opportunistic: if the project lock is
// contended a mutating operation is in flight and the refresh is skipped.
// Under the lock the record is re-read so a sandbox destroyed since our
// read is never resurrected.
func (m *Manager) persistRefresh(ctx context.Context, projectID, ownerID string, info *project.SandboxInfo) {
	lock := m.projectLock(projectID)
	if !lock.TryLock() {
		logging.Debug("skipping expiry refresh, project busy", "project", projectID)
		return
	}
	defer lock.Unlock()

	current, err := m.store.Load(ctx, projectID, ownerID)
	if err != nil {
		logging.Warn("reloading project for expiry refresh", "project", projectID, "error", err)
		return
	}
	if current.Sandbox == nil || current.Sandbox.SandboxID != info.SandboxID {
		return
	}
	if err := m.store.SaveSandboxInfo(ctx, projectID, info); err != nil {
		logging.Warn("persisting refreshed expiry", "project", projectID, "error", err)
	}
}

// WriteFiles pushes files into the live sandbox and persists them in the
// project record. The record is updated for every supplied file, including
// ones whose remote write failed: the store is the source of truth and the
// next full sync will repair the sandbox.
func (m *Manager) WriteFiles(ctx context.Context, projectID, ownerID string, files map[string]string) (*syncer.WriteResult, error) {
	lock := m.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	proj, err := m.store.Load(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}

	if !m.sess.Live(projectID) {
		return nil, errors.NoActiveSandbox(projectID)
	}
	sandboxID := m.sess.SandboxID()

	res := m.sync.WriteFiles(ctx, sandboxID, files, m.sess)

	if proj.Files == nil {
		proj.Files = make(map[string]string)
	}
	for path, content := range files {
		proj.Files[path] = content
	}
	if err := m.store.SaveFiles(ctx, projectID, proj.Files); err != nil {
		return res, errors.Wrap(errors.KindSyncFailure, "persisting files", err)
	}

	return res, nil
}

// DestroySandbox tears down the project's sandbox and clears its record.
// It reports whether a sandbox record existed; destroying a project with
// no sandbox is a no-op.
func (m *Manager) DestroySandbox(ctx context.Context, projectID, ownerID string) (bool, error) {
	lock := m.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	proj, err := m.store.Load(ctx, projectID, ownerID)
	if err != nil {
		return false, err
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	existed := proj.Sandbox != nil && proj.Sandbox.SandboxID != ""
	m.teardown(ctx, proj)

	if proj.Sandbox != nil {
		if err := m.store.SaveSandboxInfo(ctx, projectID, nil); err != nil {
			return existed, errors.Wrap(errors.KindSyncFailure, "clearing sandbox record", err)
		}
	}
	return existed, nil
}
