// Package session tracks the process-local handle to the currently active
// sandbox. At most one sandbox is live per process; every reassignment
// passes through an explicit destroy.
package session

import (
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of the session.
type State string

const (
	StateAbsent    State = "absent"
	StateCreating  State = "creating"
	StateRunning   State = "running"
	StateExpired   State = "expired"
	StateDestroyed State = "destroyed"
)

// validTransitions encodes the session state machine. Running->Running is
// the reuse path; every other route to a new sandbox passes through
// Destroyed first.
var validTransitions = map[State][]State{
	StateAbsent:    {StateCreating},
	StateCreating:  {StateRunning, StateDestroyed},
	StateRunning:   {StateRunning, StateExpired, StateDestroyed},
	StateExpired:   {StateDestroyed},
	StateDestroyed: {StateCreating},
}

// Snapshot is a consistent read of the session taken without holding the
// write lock for longer than the copy.
type Snapshot struct {
	State          State
	SandboxID      string
	BoundProjectID string
	CreatedAt      time.Time
	TrackedFiles   int
}

// Session holds the live sandbox handle and its bookkeeping. All mutation
// goes through methods that hold the internal lock; destroy/create/reassign
// sequences are additionally serialized by the lifecycle manager's
// per-project lock, so the state machine here only has to reject impossible
// transitions, not arbitrate races.
type Session struct {
	mu sync.RWMutex

	state          State
	sandboxID      string
	boundProjectID string
	createdAt      time.Time
	trackedFiles   map[string]string // path -> content hash
}

// New returns an empty session in the absent state.
func New() *Session {
	return &Session{
		state:        StateAbsent,
		trackedFiles: make(map[string]string),
	}
}

// transitionLocked moves the session to next, or errors when the state
// machine forbids it. Callers hold s.mu.
func (s *Session) transitionLocked(next State) error {
	for _, allowed := range validTransitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.state, next)
}

// Begin reserves the session for a create on behalf of projectID. It fails
// when another create is already in flight or a live handle has not been
// destroyed yet.
func (s *Session) Begin(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(StateCreating); err != nil {
		return err
	}
	s.boundProjectID = projectID
	s.sandboxID = ""
	s.trackedFiles = make(map[string]string)
	return nil
}

// Activate records the successfully started sandbox. The reservation must
// still belong to projectID: a reservation taken over by a concurrent
// teardown fails here, so the caller can clean up its orphaned sandbox
// instead of hijacking someone else's create.
func (s *Session) Activate(projectID, sandboxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.boundProjectID != projectID {
		return fmt.Errorf("session reserved for project %q, not %q", s.boundProjectID, projectID)
	}
	if err := s.transitionLocked(StateRunning); err != nil {
		return err
	}
	s.sandboxID = sandboxID
	s.createdAt = time.Now()
	return nil
}

// MarkExpired flags a running session whose sandbox the provider reclaimed.
func (s *Session) MarkExpired() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(StateExpired)
}

// Destroy clears the handle and bookkeeping. Destroying an absent session
// is a no-op so teardown paths can call it unconditionally.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAbsent || s.state == StateDestroyed {
		return
	}
	// Teardown is always legal from creating/running/expired.
	s.state = StateDestroyed
	s.sandboxID = ""
	s.boundProjectID = ""
	s.trackedFiles = make(map[string]string)
}

// Live reports whether the session holds a running handle for projectID.
func (s *Session) Live(projectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateRunning && s.boundProjectID == projectID && s.sandboxID != ""
}

// SandboxID returns the live sandbox id, or "" when none is active.
func (s *Session) SandboxID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateRunning {
		return ""
	}
	return s.sandboxID
}

// Snapshot returns a consistent copy of the session for status reads.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:          s.state,
		SandboxID:      s.sandboxID,
		BoundProjectID: s.boundProjectID,
		CreatedAt:      s.createdAt,
		TrackedFiles:   len(s.trackedFiles),
	}
}

// Track records that a path exists remotely with the given content hash.
func (s *Session) Track(path, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackedFiles[path] = hash
}

// Tracked returns the recorded hash for a path and whether it is tracked.
func (s *Session) Tracked(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.trackedFiles[path]
	return h, ok
}
