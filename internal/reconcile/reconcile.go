// Package reconcile compares a project's persisted sandbox record against
// the live session and the provider, and decides whether the recorded
// sandbox can be reused or must be recreated.
package reconcile

import (
	"context"
	"time"

	"github.com/slipway-build/slipway/internal/logging"
	"github.com/slipway-build/slipway/internal/project"
	"github.com/slipway-build/slipway/internal/provider"
	"github.com/slipway-build/slipway/internal/session"
)

// Action tells the caller what has to happen next.
type Action string

const (
	// ActionNone means the recorded sandbox is live and usable as-is.
	ActionNone Action = "none"

	// ActionSyncNeeded means a fresh sandbox must be provisioned and
	// populated before the project can be served.
	ActionSyncNeeded Action = "sync_needed"
)

// Reason explains a non-reusable verdict.
type Reason string

const (
	ReasonReusable     Reason = ""
	ReasonNoRecord     Reason = "no_sandbox_recorded"
	ReasonExpired      Reason = "sandbox_expired"
	ReasonNoLiveHandle Reason = "no_live_handle"
	ReasonProviderLost Reason = "provider_unreachable"
	ReasonIDMismatch   Reason = "sandbox_id_mismatch"
)

// Result is the verdict of a reconciliation pass.
type Result struct {
	Reusable bool
	Action   Action
	Reason   Reason

	// EndTime is the authoritative expiry after the pass. Only meaningful
	// when Reusable; callers persist it so the record never drifts behind
	// the provider's clock.
	EndTime time.Time

	// RemainingMinutes is derived from EndTime, floored, never negative.
	RemainingMinutes int
}

func notReusable(reason Reason) Result {
	return Result{Reusable: false, Action: ActionSyncNeeded, Reason: reason}
}

// Check runs the decision table. The persisted record, the in-process
// session, and the provider's live view each get a veto: any of them
// disagreeing about which sandbox is running forces recreation. A provider
// lookup failure gets one retry before the sandbox is presumed reclaimed.
func Check(ctx context.Context, client provider.Client, sess *session.Session, info *project.SandboxInfo, projectID string, now time.Time) Result {
	if info == nil || info.SandboxID == "" {
		return notReusable(ReasonNoRecord)
	}

	if info.Expired(now) {
		logging.Debug("recorded sandbox expired", "project", projectID, "sandbox", info.SandboxID)
		return notReusable(ReasonExpired)
	}

	if !sess.Live(projectID) || sess.SandboxID() != info.SandboxID {
		// A record that outlived the process, or a handle bound to a
		// different sandbox, cannot be trusted either way.
		if sess.Live(projectID) {
			logging.Debug("session handle does not match record",
				"project", projectID,
				"recorded", info.SandboxID,
				"live", sess.SandboxID())
			return notReusable(ReasonIDMismatch)
		}
		return notReusable(ReasonNoLiveHandle)
	}

	live, err := client.Info(ctx, info.SandboxID)
	if err != nil {
		live, err = client.Info(ctx, info.SandboxID)
	}
	if err != nil {
		logging.Debug("sandbox lookup failed, presuming reclaimed",
			"project", projectID, "sandbox", info.SandboxID, "error", err)
		return notReusable(ReasonProviderLost)
	}

	if live.SandboxID != info.SandboxID {
		return notReusable(ReasonIDMismatch)
	}

	// The provider's expiry only ever advances the record.
	info.Refresh(live.EndAt)

	if info.Expired(now) {
		return notReusable(ReasonExpired)
	}

	return Result{
		Reusable:         true,
		Action:           ActionNone,
		EndTime:          info.EndTime,
		RemainingMinutes: info.RemainingMinutes(now),
	}
}
