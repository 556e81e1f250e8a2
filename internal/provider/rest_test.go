package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// rewriteTransport sends every request to the test server regardless of the
// request host, so data-plane URLs like https://sbx-1.mock.test resolve in
// tests.
type rewriteTransport struct {
	server *httptest.Server
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target, _ := url.Parse(t.server.URL)
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.Handler) (*RESTClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewRESTClient(RESTConfig{
		APIURL:     server.URL,
		APIKey:     "sk-test",
		Template:   "node22",
		HTTPClient: &http.Client{Transport: &rewriteTransport{server: server}},
	})
	if err != nil {
		t.Fatalf("NewRESTClient() error = %v", err)
	}
	return client, server
}

func TestRESTClient_Create(t *testing.T) {
	endAt := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)

	var gotKey, gotTemplate string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sandboxes" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("X-API-Key")

		var req createSandboxRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		gotTemplate = req.TemplateID

		json.NewEncoder(w).Encode(createSandboxResponse{
			SandboxID:   "sbx-abc",
			Domain:      "sandbox.test",
			AccessToken: "tok-1",
			EndAt:       endAt.Format(time.RFC3339),
		})
	}))

	sb, err := client.Create(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if gotKey != "sk-test" {
		t.Errorf("API key header = %q, want sk-test", gotKey)
	}
	if gotTemplate != "node22" {
		t.Errorf("template = %q, want node22", gotTemplate)
	}
	if sb.ID != "sbx-abc" {
		t.Errorf("sandbox ID = %q, want sbx-abc", sb.ID)
	}
	if !sb.EndAt.Equal(endAt) {
		t.Errorf("EndAt = %v, want %v", sb.EndAt, endAt)
	}
}

func TestRESTClient_Create_MalformedEndAt(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createSandboxResponse{
			SandboxID: "sbx-abc",
			EndAt:     "not-a-time",
		})
	}))

	if _, err := client.Create(context.Background(), time.Minute); err == nil {
		t.Error("Create() should fail on malformed endAt")
	}
}

func TestRESTClient_Info_MissingFields(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sandboxID": "sbx-abc"})
	}))

	if _, err := client.Info(context.Background(), "sbx-abc"); err == nil {
		t.Error("Info() should fail when endAt is missing")
	}
}

func TestRESTClient_Destroy_AlreadyGone(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	if err := client.Destroy(context.Background(), "sbx-gone"); err != nil {
		t.Errorf("Destroy() on missing sandbox should be nil, got %v", err)
	}
}

func TestRESTClient_Destroy_ServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	if err := client.Destroy(context.Background(), "sbx-abc"); err == nil {
		t.Error("Destroy() should propagate non-404 failures")
	}
}

func TestRESTClient_WriteReadRoundTrip(t *testing.T) {
	// Content with quotes, backslashes, newlines, and control characters
	// must survive the transport byte for byte.
	content := "const s = \"a\\\"b\\\\c\";\nline2\ttab\x01\n"

	stored := make(map[string]string)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sandboxes":
			json.NewEncoder(w).Encode(createSandboxResponse{
				SandboxID: "sbx-abc",
				Domain:    "sandbox.test",
				EndAt:     time.Now().Add(time.Hour).Format(time.RFC3339),
			})
		case r.Method == http.MethodPost && r.URL.Path == "/files":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatal(err)
			}
			f, _, err := r.FormFile("file")
			if err != nil {
				t.Fatal(err)
			}
			data, _ := io.ReadAll(f)
			stored[r.URL.Query().Get("path")] = string(data)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/files":
			io.WriteString(w, stored[r.URL.Query().Get("path")])
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	ctx := context.Background()
	sb, err := client.Create(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	path := "/home/user/app/src/App.jsx"
	if err := client.WriteFile(ctx, sb.ID, path, content); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := client.ReadFile(ctx, sb.ID, path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got != content {
		t.Errorf("round-trip mismatch:\ngot  %q\nwant %q", got, content)
	}
}

func TestRESTClient_Run(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/sandboxes":
			json.NewEncoder(w).Encode(createSandboxResponse{
				SandboxID: "sbx-abc",
				Domain:    "sandbox.test",
				EndAt:     time.Now().Add(time.Hour).Format(time.RFC3339),
			})
		case r.URL.Path == "/commands/run":
			var req runCommandRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatal(err)
			}
			if req.Cmd != "npm" || len(req.Args) != 1 || req.Args[0] != "install" {
				t.Errorf("unexpected command: %q %v", req.Cmd, req.Args)
			}
			if req.Cwd != "/home/user/app" {
				t.Errorf("cwd = %q", req.Cwd)
			}
			json.NewEncoder(w).Encode(runCommandResponse{Stdout: "ok", ExitCode: 0})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	ctx := context.Background()
	sb, err := client.Create(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	res, err := client.Run(ctx, sb.ID, Command{
		Path:    "npm",
		Args:    []string{"install"},
		Dir:     "/home/user/app",
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "ok" || res.ExitCode != 0 {
		t.Errorf("Run() = %+v", res)
	}
}

func TestRESTClient_Run_UnknownSandbox(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	if _, err := client.Run(context.Background(), "sbx-nope", Command{Path: "true"}); err == nil {
		t.Error("Run() should fail for an untracked sandbox")
	}
}

func TestRESTClient_EndpointURL(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createSandboxResponse{
			SandboxID: "sbx-abc",
			Domain:    "sandbox.test",
			EndAt:     time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	}))

	ctx := context.Background()
	sb, err := client.Create(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	got, err := client.EndpointURL(ctx, sb.ID, 5173)
	if err != nil {
		t.Fatal(err)
	}
	want := "https://5173-sbx-abc.sandbox.test"
	if got != want {
		t.Errorf("EndpointURL() = %q, want %q", got, want)
	}
}

func TestRESTClient_Probe(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Even an error response means something bound the port.
		http.Error(w, "starting up", http.StatusBadGateway)
	}))

	if err := client.Probe(context.Background(), server.URL); err != nil {
		t.Errorf("Probe() should accept any HTTP response, got %v", err)
	}
}

func TestNewRESTClient_Validation(t *testing.T) {
	if _, err := NewRESTClient(RESTConfig{APIKey: "k"}); err == nil {
		t.Error("missing API URL should fail")
	}
	if _, err := NewRESTClient(RESTConfig{APIURL: "https://api.test"}); err == nil {
		t.Error("missing API key should fail")
	}
	c, err := NewRESTClient(RESTConfig{APIURL: "https://api.test", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewRESTClient() error = %v", err)
	}
	if c.cfg.Template != "base" {
		t.Errorf("template = %q, want default base", c.cfg.Template)
	}
}
