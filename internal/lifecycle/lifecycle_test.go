package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/slipway-build/slipway/internal/config"
	"github.com/slipway-build/slipway/internal/errors"
	"github.com/slipway-build/slipway/internal/project"
	"github.com/slipway-build/slipway/internal/provider"
	"github.com/slipway-build/slipway/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			APIURL: "https://api.mock.test",
			APIKey: "test-key",
		},
	}
}

func newTestManager(t *testing.T) (*Manager, *provider.MockClient, project.Store) {
	t.Helper()
	store, err := project.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	mock := provider.NewMockClient()
	m := NewManager(store, mock, session.New(), testConfig())
	return m, mock, store
}

func seedProject(t *testing.T, store project.Store, id string, files map[string]string) {
	t.Helper()
	err := store.Create(context.Background(), &project.Project{
		ID:      id,
		OwnerID: "owner-1",
		Files:   files,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func appFiles() map[string]string {
	return map[string]string{
		"package.json": `{"name":"app","dependencies":{"vite":"^5.0.0"}}`,
		"index.html":   "<!doctype html>",
		"src/App.jsx":  "export default function App() { return null }",
	}
}

func TestEnsureSandbox_CreatesAndPersists(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	res, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatalf("EnsureSandbox: %v", err)
	}
	if res.Reused {
		t.Error("Reused = true on first provision")
	}
	if res.SandboxID == "" || res.PreviewURL == "" {
		t.Errorf("incomplete result: %+v", res)
	}
	if res.RemainingMinutes < 29 || res.RemainingMinutes > 30 {
		t.Errorf("RemainingMinutes = %d, want ~30", res.RemainingMinutes)
	}
	if got := mock.Calls("create"); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}

	// The record points at the live sandbox.
	proj, err := store.Load(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if proj.Sandbox == nil || proj.Sandbox.SandboxID != res.SandboxID {
		t.Errorf("persisted sandbox = %+v, want id %s", proj.Sandbox, res.SandboxID)
	}
	if proj.Sandbox.PreviewURL != res.PreviewURL {
		t.Errorf("persisted preview = %q, want %q", proj.Sandbox.PreviewURL, res.PreviewURL)
	}
}

func TestEnsureSandbox_IdempotentReuse(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	first, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if !second.Reused {
		t.Error("second call did not reuse")
	}
	if second.SandboxID != first.SandboxID {
		t.Errorf("sandbox changed: %s -> %s", first.SandboxID, second.SandboxID)
	}
	if got := mock.Calls("create"); got != 1 {
		t.Errorf("create calls = %d, want exactly 1", got)
	}
	if got := mock.Calls("destroy"); got != 0 {
		t.Errorf("destroy calls = %d, want 0", got)
	}
}

func TestEnsureSandbox_ReplacesExpired(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	first, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// Jump past the recorded expiry.
	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	second, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if second.Reused {
		t.Error("expired sandbox was reused")
	}
	if second.SandboxID == first.SandboxID {
		t.Error("expired sandbox id was not replaced")
	}
	if got := mock.Calls("destroy"); got != 1 {
		t.Errorf("destroy calls = %d, want 1", got)
	}
	if got := mock.Calls("create"); got != 2 {
		t.Errorf("create calls = %d, want 2", got)
	}
}

func TestEnsureSandbox_ReplacesOnIDMismatch(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	first, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// The provider reports a different live sandbox than the record holds.
	mock.InfoOverride = &provider.Info{SandboxID: "sbx-imposter", EndAt: time.Now().Add(time.Hour)}

	second, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if second.Reused {
		t.Error("mismatched sandbox was reused")
	}
	if second.SandboxID == first.SandboxID {
		t.Error("mismatched sandbox id was not replaced")
	}
	if got := mock.Calls("destroy"); got != 1 {
		t.Errorf("destroy calls = %d, want exactly 1", got)
	}
	if got := mock.Calls("create"); got != 2 {
		t.Errorf("create calls = %d, want exactly 2", got)
	}
}

func TestEnsureSandbox_ReplacesAfterRestart(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	if _, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{}); err != nil {
		t.Fatal(err)
	}

	// A new manager with a fresh session sees the persisted record but
	// holds no live handle for it.
	m2 := NewManager(store, mock, session.New(), testConfig())
	res, err := m2.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Reused {
		t.Error("orphaned record was reused without a live handle")
	}
	if got := mock.Calls("destroy"); got != 1 {
		t.Errorf("destroy calls = %d, want 1", got)
	}
}

func TestEnsureSandbox_CleanupOnFailure(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	mock.SetError("write", fmt.Errorf("io error"))

	_, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := mock.Calls("create"); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}
	if got := mock.Calls("destroy"); got != 1 {
		t.Errorf("destroy calls = %d, want 1 (cleanup)", got)
	}

	// Nothing was persisted for the failed sandbox.
	proj, err := store.Load(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if proj.Sandbox != nil {
		t.Errorf("record persisted despite failure: %+v", proj.Sandbox)
	}

	// The session is released, so a retry can provision again.
	delete(mock.Errors, "write")
	if _, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{}); err != nil {
		t.Fatalf("retry after cleanup: %v", err)
	}
}

func TestEnsureSandbox_ConcurrentProjectsShareOneSession(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())
	seedProject(t, store, "proj-b", appFiles())

	errs := make(chan error, 2)
	for _, id := range []string{"proj-a", "proj-b"} {
		go func(id string) {
			_, err := m.EnsureSandbox(context.Background(), id, "owner-1", EnsureOptions{})
			errs <- err
		}(id)
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("EnsureSandbox: %v", err)
		}
	}

	// The process holds a single session, so the second provision must
	// tear down the first project's sandbox rather than orphan it.
	if got := len(mock.Sandboxes); got != 1 {
		t.Errorf("live sandboxes = %d, want 1", got)
	}
	if got := mock.Calls("create"); got != 2 {
		t.Errorf("create calls = %d, want 2", got)
	}
	if got := mock.Calls("destroy"); got != 1 {
		t.Errorf("destroy calls = %d, want 1", got)
	}
}

// failingStore fails every sandbox-record persist.
type failingStore struct {
	project.Store
}

func (s failingStore) SaveSandboxInfo(ctx context.Context, projectID string, info *project.SandboxInfo) error {
	return fmt.Errorf("disk full")
}

func TestEnsureSandbox_CleanupOnPersistFailure(t *testing.T) {
	store, err := project.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	seedProject(t, store, "proj-a", appFiles())
	mock := provider.NewMockClient()
	m := NewManager(failingStore{store}, mock, session.New(), testConfig())

	_, err = m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := mock.Calls("create"); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}
	if got := mock.Calls("destroy"); got != 1 {
		t.Errorf("destroy calls = %d, want 1 (cleanup)", got)
	}
	if got := len(mock.Sandboxes); got != 0 {
		t.Errorf("live sandboxes = %d, want 0", got)
	}

	// The session is released, so a manager with a working store can
	// provision again.
	m2 := NewManager(store, mock, m.sess, testConfig())
	if _, err := m2.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{}); err != nil {
		t.Fatalf("retry after cleanup: %v", err)
	}
}

func TestGetStatus_RefreshSkippedWhileProjectBusy(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	res, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	before, err := store.Load(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}

	// The provider now reports a later expiry for the same sandbox.
	later := time.Now().Add(2 * time.Hour)
	mock.InfoOverride = &provider.Info{SandboxID: res.SandboxID, EndAt: later}

	// While another operation holds the project lock, the read path must
	// not write the record.
	lock := m.projectLock("proj-a")
	lock.Lock()
	st, err := m.GetStatus(context.Background(), "proj-a", "owner-1")
	lock.Unlock()
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StatusRunning {
		t.Fatalf("State = %s, want running", st.State)
	}
	held, err := store.Load(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if !held.Sandbox.EndTime.Equal(before.Sandbox.EndTime) {
		t.Errorf("record written while project was busy: EndTime %v -> %v",
			before.Sandbox.EndTime, held.Sandbox.EndTime)
	}

	// Uncontended, the refresh is persisted.
	if _, err := m.GetStatus(context.Background(), "proj-a", "owner-1"); err != nil {
		t.Fatal(err)
	}
	after, err := store.Load(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if !after.Sandbox.EndTime.Equal(later) {
		t.Errorf("EndTime = %v, want refreshed to %v", after.Sandbox.EndTime, later)
	}
}

func TestEnsureSandbox_ScaffoldsEmptyProject(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-empty", nil)

	res, err := m.EnsureSandbox(context.Background(), "proj-empty", "owner-1", EnsureOptions{ScaffoldOnEmpty: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Scaffolded {
		t.Error("Scaffolded = false")
	}

	proj, err := store.Load(context.Background(), "proj-empty", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := proj.Files["package.json"]; !ok {
		t.Error("scaffold not persisted")
	}

	// The scaffold reached the sandbox too.
	if _, ok := mock.Files[res.SandboxID]["/home/user/app/package.json"]; !ok {
		t.Error("scaffold not written to sandbox")
	}
}

func TestEnsureSandbox_EmptyProjectRejected(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-empty", nil)

	_, err := m.EnsureSandbox(context.Background(), "proj-empty", "owner-1", EnsureOptions{ScaffoldOnEmpty: false})
	if !errors.IsEmptyProject(err) {
		t.Fatalf("error = %v, want empty project", err)
	}
	if got := mock.Calls("create"); got != 0 {
		t.Errorf("create calls = %d, want 0", got)
	}
}

func TestEnsureSandbox_UnknownProject(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.EnsureSandbox(context.Background(), "no-such", "owner-1", EnsureOptions{})
	if !errors.IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestEnsureSandbox_WrongOwner(t *testing.T) {
	m, _, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	_, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-2", EnsureOptions{})
	if !errors.IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestEnsureSandbox_CreateFailure(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	mock.SetError("create", fmt.Errorf("503"))
	_, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if !errors.IsProviderUnavailable(err) {
		t.Fatalf("error = %v, want provider unavailable", err)
	}

	// Session was released; a retry works.
	delete(mock.Errors, "create")
	if _, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{}); err != nil {
		t.Fatalf("retry after create failure: %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	// No sandbox yet.
	st, err := m.GetStatus(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StatusNotFound {
		t.Errorf("State = %s, want not_found", st.State)
	}

	res, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}

	st, err = m.GetStatus(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StatusRunning {
		t.Errorf("State = %s, want running", st.State)
	}
	if st.SandboxID != res.SandboxID || st.PreviewURL != res.PreviewURL {
		t.Errorf("status = %+v, want sandbox %s", st, res.SandboxID)
	}

	// Provider unreachability degrades to expired, never an error.
	mock.SetError("info", fmt.Errorf("timeout"))
	st, err = m.GetStatus(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatalf("GetStatus errored on provider failure: %v", err)
	}
	if st.State != StatusExpired {
		t.Errorf("State = %s, want expired", st.State)
	}
}

func TestWriteFiles(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	// No live sandbox yet.
	_, err := m.WriteFiles(context.Background(), "proj-a", "owner-1", map[string]string{"a.txt": "x"})
	if !errors.IsNotFound(err) {
		t.Fatalf("error = %v, want no active sandbox", err)
	}

	res, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}

	wr, err := m.WriteFiles(context.Background(), "proj-a", "owner-1", map[string]string{
		"src/App.jsx": "updated",
		"src/new.css": "a { }",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(wr.Written) != 2 {
		t.Errorf("written = %v, want 2 paths", wr.Written)
	}

	if got := mock.Files[res.SandboxID]["/home/user/app/src/App.jsx"]; got != "updated" {
		t.Errorf("sandbox content = %q, want updated", got)
	}

	// Files merged into the record, existing ones kept.
	proj, err := store.Load(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if proj.Files["src/App.jsx"] != "updated" {
		t.Errorf("record content = %q, want updated", proj.Files["src/App.jsx"])
	}
	if _, ok := proj.Files["index.html"]; !ok {
		t.Error("merge dropped an existing file")
	}
	if _, ok := proj.Files["src/new.css"]; !ok {
		t.Error("new file not persisted")
	}
}

func TestDestroySandbox(t *testing.T) {
	m, mock, store := newTestManager(t)
	seedProject(t, store, "proj-a", appFiles())

	res, err := m.EnsureSandbox(context.Background(), "proj-a", "owner-1", EnsureOptions{})
	if err != nil {
		t.Fatal(err)
	}

	existed, err := m.DestroySandbox(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Error("existed = false, want true")
	}
	if _, ok := mock.Sandboxes[res.SandboxID]; ok {
		t.Error("sandbox still live at provider")
	}

	proj, err := store.Load(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if proj.Sandbox != nil {
		t.Errorf("record not cleared: %+v", proj.Sandbox)
	}

	st, err := m.GetStatus(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StatusNotFound {
		t.Errorf("State = %s, want not_found", st.State)
	}

	// Destroying again is a no-op.
	existed, err = m.DestroySandbox(context.Background(), "proj-a", "owner-1")
	if err != nil {
		t.Fatalf("second destroy: %v", err)
	}
	if existed {
		t.Error("existed = true on second destroy, want false")
	}
}
