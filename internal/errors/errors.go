package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the slipway taxonomy.
type Kind string

const (
	KindAuthentication      Kind = "authentication"
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindEmptyProject        Kind = "empty_project"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindSyncFailure         Kind = "sync_failure"
	KindNoActiveSandbox     Kind = "no_active_sandbox"
)

// HTTP-equivalent status codes per kind.
var kindStatus = map[Kind]int{
	KindAuthentication:      401,
	KindValidation:          400,
	KindNotFound:            404,
	KindEmptyProject:        422,
	KindProviderUnavailable: 503,
	KindSyncFailure:         500,
	KindNoActiveSandbox:     404,
}

// Process exit codes for the CLI front end.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitNotFound     = 2
	ExitValidation   = 3
	ExitProvider     = 4
	ExitSync         = 5
)

var kindExit = map[Kind]int{
	KindAuthentication:      ExitGeneralError,
	KindValidation:          ExitValidation,
	KindNotFound:            ExitNotFound,
	KindEmptyProject:        ExitValidation,
	KindProviderUnavailable: ExitProvider,
	KindSyncFailure:         ExitSync,
	KindNoActiveSandbox:     ExitNotFound,
}

// SlipwayError is the base error type for slipway.
type SlipwayError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *SlipwayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SlipwayError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP-equivalent status code for this error.
func (e *SlipwayError) StatusCode() int {
	if s, ok := kindStatus[e.Kind]; ok {
		return s
	}
	return 500
}

// ExitCode returns the process exit code for this error.
func (e *SlipwayError) ExitCode() int {
	if c, ok := kindExit[e.Kind]; ok {
		return c
	}
	return ExitGeneralError
}

// New creates a new SlipwayError of the given kind.
func New(kind Kind, message string) *SlipwayError {
	return &SlipwayError{Kind: kind, Message: message}
}

// Wrap wraps an existing error with a SlipwayError of the given kind.
func Wrap(kind Kind, message string, cause error) *SlipwayError {
	return &SlipwayError{Kind: kind, Message: message, Cause: cause}
}

// Common error constructors

// Authentication returns an error for a missing or invalid caller identity.
func Authentication(message string) *SlipwayError {
	return New(KindAuthentication, message)
}

// Validation returns an error for malformed identifiers or payloads.
func Validation(message string) *SlipwayError {
	return New(KindValidation, message)
}

// NotFound returns an error for a project or sandbox that does not exist
// or is not owned by the caller.
func NotFound(what, id string) *SlipwayError {
	return New(KindNotFound, fmt.Sprintf("%s not found: %s", what, id))
}

// EmptyProject returns an error for a sync attempted on a project with no files.
func EmptyProject(projectID string) *SlipwayError {
	return New(KindEmptyProject, fmt.Sprintf("project %s has no files to sync", projectID))
}

// ProviderUnavailable returns an error for a transient provider failure.
func ProviderUnavailable(op string, cause error) *SlipwayError {
	return Wrap(KindProviderUnavailable, fmt.Sprintf("provider %s failed", op), cause)
}

// SyncFailure returns an error for a fatal synchronization failure.
func SyncFailure(op string, cause error) *SlipwayError {
	return Wrap(KindSyncFailure, fmt.Sprintf("sync %s failed", op), cause)
}

// NoActiveSandbox returns an error for an incremental write with no live session.
func NoActiveSandbox(projectID string) *SlipwayError {
	return New(KindNoActiveSandbox, fmt.Sprintf("no active sandbox for project %s", projectID))
}

// kindOf extracts the Kind from an error chain, or "" when the chain
// contains no SlipwayError.
func kindOf(err error) Kind {
	var se *SlipwayError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	k := kindOf(err)
	return k == KindNotFound || k == KindNoActiveSandbox
}

// IsEmptyProject reports whether err is an empty-project error.
func IsEmptyProject(err error) bool {
	return kindOf(err) == KindEmptyProject
}

// IsProviderUnavailable reports whether err is a transient provider failure.
func IsProviderUnavailable(err error) bool {
	return kindOf(err) == KindProviderUnavailable
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return kindOf(err) == KindValidation
}

// StatusCode extracts the HTTP-equivalent status code from an error.
// Unclassified errors map to 500.
func StatusCode(err error) int {
	var se *SlipwayError
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return 500
}

// GetExitCode extracts the process exit code from an error.
func GetExitCode(err error) int {
	var se *SlipwayError
	if errors.As(err, &se) {
		return se.ExitCode()
	}
	return ExitGeneralError
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
