// Package errors defines the error taxonomy for slipway.
//
// Every failure surfaced by the lifecycle engine is classified into one of
// a small set of kinds, each carrying an HTTP-equivalent status code so the
// host application can map errors onto its transport without inspecting
// messages:
//
//   - Authentication (401): no verified caller identity
//   - Validation (400): malformed identifiers or payloads
//   - NotFound (404): project or sandbox absent, or not owned by the caller
//   - EmptyProject (422): sync attempted on a project with no files
//   - ProviderUnavailable (503): transient provider failure
//   - SyncFailure (500): file write or server-start failure
//   - NoActiveSandbox (404): incremental write with no live session
//
// Errors wrap their cause and participate in errors.Is/As chains:
//
//	if errors.IsNotFound(err) { ... }
//	status := errors.StatusCode(err)
package errors
