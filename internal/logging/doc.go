// Package logging provides logging utilities for slipway.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("creating sandbox", "project", projectID, "ttl", ttl)
//	logging.Warn("install timed out", "timeout", timeout)
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Syncing project %s...", projectID)
//	logging.UserSuccess("Sandbox %s is running", sandboxID)
//	logging.UserWarning("Dependency install reported errors")
//	logging.UserError("Sync failed: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
//
// # Status Indicators
//
// User functions prepend status indicators:
//   - ℹ (info)
//   - ✓ (success)
//   - ⚠ (warning)
//   - ✗ (error)
package logging
