package project

import (
	"context"
	"time"
)

// SandboxInfo is the persisted record of a project's most recent sandbox.
type SandboxInfo struct {
	SandboxID  string    `json:"sandboxId"`
	PreviewURL string    `json:"previewUrl"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

// Expired reports whether the sandbox's end time has passed.
func (s *SandboxInfo) Expired(now time.Time) bool {
	return !s.EndTime.After(now)
}

// RemainingMinutes returns whole minutes until EndTime, never negative.
func (s *SandboxInfo) RemainingMinutes(now time.Time) int {
	remaining := s.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Minute)
}

// Refresh updates EndTime from a live provider reading. EndTime never
// moves backward within one sandbox generation; a reset happens only by
// replacing the whole SandboxInfo on recreate.
func (s *SandboxInfo) Refresh(endTime time.Time) {
	if endTime.After(s.EndTime) {
		s.EndTime = endTime
	}
}

// Project is the slice of the project record the engine works with.
type Project struct {
	ID      string            `json:"id"`
	OwnerID string            `json:"ownerId"`
	Files   map[string]string `json:"files"`
	Sandbox *SandboxInfo      `json:"sandboxInfo,omitempty"`
}

// FilesSize returns the total serialized size of the project's files.
func (p *Project) FilesSize() int {
	total := 0
	for path, content := range p.Files {
		total += len(path) + len(content)
	}
	return total
}

// Store is the persistence boundary. Implementations must enforce
// ownership on load and persist sandbox info atomically with respect to
// concurrent loads.
type Store interface {
	// Load returns the project, or a not-found error when it does not
	// exist or is not owned by ownerID.
	Load(ctx context.Context, projectID, ownerID string) (*Project, error)

	// SaveFiles replaces the project's file map.
	SaveFiles(ctx context.Context, projectID string, files map[string]string) error

	// SaveSandboxInfo replaces the project's sandbox metadata.
	SaveSandboxInfo(ctx context.Context, projectID string, info *SandboxInfo) error

	// Create persists a new project record.
	Create(ctx context.Context, p *Project) error
}
