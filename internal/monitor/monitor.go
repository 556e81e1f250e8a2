// Package monitor provides background expiry monitoring for a project's
// sandbox.
package monitor

import (
	"context"
	"time"

	"github.com/slipway-build/slipway/internal/lifecycle"
	"github.com/slipway-build/slipway/internal/logging"
)

// CheckResult holds the result of a single reconciliation pass.
type CheckResult struct {
	ProjectID        string
	State            lifecycle.StatusState
	RemainingMinutes int

	// Resynced is true when the pass replaced an expired sandbox.
	Resynced bool
}

// Monitor periodically reconciles a project's recorded sandbox against the
// provider and reports expiry transitions.
type Monitor struct {
	interval  time.Duration
	mgr       *lifecycle.Manager
	projectID string
	ownerID   string
	autoSync  bool

	lastState lifecycle.StatusState
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithAutoSync enables automatic re-provisioning when the sandbox expires.
func WithAutoSync(enabled bool) Option {
	return func(m *Monitor) {
		m.autoSync = enabled
	}
}

// New creates a new Monitor for one project.
func New(interval time.Duration, mgr *lifecycle.Manager, projectID, ownerID string, opts ...Option) *Monitor {
	m := &Monitor{
		interval:  interval,
		mgr:       mgr,
		projectID: projectID,
		ownerID:   ownerID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting expiry monitor",
		"project", m.projectID, "interval", m.interval, "autoSync", m.autoSync)

	// Run an immediate check, then loop on interval.
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("expiry monitor stopping", "project", m.projectID)
			return ctx.Err()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check performs one reconciliation pass.
func (m *Monitor) check(ctx context.Context) *CheckResult {
	status, err := m.mgr.GetStatus(ctx, m.projectID, m.ownerID)
	if err != nil {
		logging.Warn("monitor status check failed", "project", m.projectID, "error", err)
		return nil
	}

	result := &CheckResult{
		ProjectID:        m.projectID,
		State:            status.State,
		RemainingMinutes: status.RemainingMinutes,
	}

	if status.State != m.lastState {
		switch status.State {
		case lifecycle.StatusExpired:
			logging.UserWarning("Sandbox for %s expired", m.projectID)
		case lifecycle.StatusRunning:
			logging.Debug("sandbox running",
				"project", m.projectID, "remainingMinutes", status.RemainingMinutes)
		}
		m.lastState = status.State
	}

	if m.autoSync && status.State == lifecycle.StatusExpired {
		logging.UserInfo("Re-provisioning sandbox for %s", m.projectID)
		res, err := m.mgr.EnsureSandbox(ctx, m.projectID, m.ownerID, lifecycle.EnsureOptions{ScaffoldOnEmpty: true})
		if err != nil {
			logging.Warn("auto-sync failed", "project", m.projectID, "error", err)
		} else {
			result.Resynced = true
			result.State = lifecycle.StatusRunning
			result.RemainingMinutes = res.RemainingMinutes
			m.lastState = lifecycle.StatusRunning
			logging.UserSuccess("Sandbox ready: %s", res.PreviewURL)
		}
	}

	return result
}
