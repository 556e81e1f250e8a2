package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/slipway-build/slipway/internal/config"
	"github.com/slipway-build/slipway/internal/errors"
)

// FileStore persists one JSON file per project under a projects directory.
// It serializes mutations so concurrent saves cannot interleave partially
// written records.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create projects directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// path resolves the record path for a project id, confined to the store
// directory.
func (s *FileStore) path(projectID string) (string, error) {
	if err := config.ValidateProjectID(projectID); err != nil {
		return "", errors.Wrap(errors.KindValidation, "invalid project id", err)
	}
	return securejoin.SecureJoin(s.dir, projectID+".json")
}

// Load returns the project, enforcing ownership.
func (s *FileStore) Load(_ context.Context, projectID, ownerID string) (*Project, error) {
	path, err := s.path(projectID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("project", projectID)
		}
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", projectID, err)
	}

	// A wrong-owner load reports plain absence so ownership cannot be probed.
	if ownerID != "" && p.OwnerID != ownerID {
		return nil, errors.NotFound("project", projectID)
	}

	if p.Files == nil {
		p.Files = make(map[string]string)
	}
	return &p, nil
}

// Create persists a new project record. An existing record is not
// overwritten.
func (s *FileStore) Create(_ context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(p.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return errors.Validation(fmt.Sprintf("project %s already exists", p.ID))
	}
	return s.write(path, p)
}

// SaveFiles replaces the project's file map, enforcing the size cap.
func (s *FileStore) SaveFiles(ctx context.Context, projectID string, files map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.Load(ctx, projectID, "")
	if err != nil {
		return err
	}

	p.Files = files
	if p.FilesSize() > config.MaxFilesBytes {
		return errors.Validation(fmt.Sprintf("project files exceed %d bytes", config.MaxFilesBytes))
	}

	path, err := s.path(projectID)
	if err != nil {
		return err
	}
	return s.write(path, p)
}

// SaveSandboxInfo replaces the project's sandbox metadata.
func (s *FileStore) SaveSandboxInfo(ctx context.Context, projectID string, info *SandboxInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.Load(ctx, projectID, "")
	if err != nil {
		return err
	}

	p.Sandbox = info

	path, err := s.path(projectID)
	if err != nil {
		return err
	}
	return s.write(path, p)
}

// write persists a record via rename so readers never observe a torn file.
func (s *FileStore) write(path string, p *Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return os.Rename(tmp, path)
}
