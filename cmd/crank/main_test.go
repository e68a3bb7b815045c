package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

// writeTestConfig writes a config using a sqlite file in a temp dir and
// pointing every remote service at baseURL.
func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
log:
  level: error
locator:
  router_url: %s/router
  gateway_url: %s/gw
  rate_per_second: 1000
  burst: 100
signer:
  url: %s
compute:
  url: %s
`, filepath.Join(dir, "crank.db"), baseURL, baseURL, baseURL, baseURL)
	path := filepath.Join(dir, "crank.yaml")
	if err := writeTestFile(path, cfg); err != nil {
		t.Fatal(err)
	}
	return path
}

// newFakeNetwork serves the router, scheduler, gateway, signer and compute
// endpoints. Ids starting with "wallet-" are unknown to the gateway.
func newFakeNetwork(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	var signed atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/router", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"url":"http://%s/su","address":"su-addr"}`, r.Host)
	})
	mux.HandleFunc("/su/processes/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/su/processes/")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"process_id":%q,"tags":[{"name":"Module","value":"mod-1"}]}`, id)
	})
	mux.HandleFunc("/gw/tx/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(strings.TrimPrefix(r.URL.Path, "/gw/tx/"), "wallet-") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/sign", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProcessID string `json:"processId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"tx-%d","processId":%q}`, signed.Add(1), req.ProcessID)
	})
	mux.HandleFunc("/results/", func(w http.ResponseWriter, r *http.Request) {
		page, ok := results[strings.TrimPrefix(r.URL.Path, "/results/")]
		if !ok || r.URL.Query().Get("from") != "" {
			page = `{"edges":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(page))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "crank dev") {
		t.Errorf("expected output to contain 'crank dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	for _, want := range []string{"crank 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := runCmd(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"serve", "db", "trace", "monitor", "run", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q, got: %s", sub, out)
		}
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"version"})
	if code := execute(cmd); code != 0 {
		t.Errorf("execute(version) = %d, want 0", code)
	}

	cmd = newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"no-such-command"})
	if code := execute(cmd); code != 1 {
		t.Errorf("execute(unknown) = %d, want 1", code)
	}
}

func TestCommands_MissingConfig(t *testing.T) {
	tests := [][]string{
		{"db", "migrate"},
		{"trace", "list"},
		{"monitor", "list"},
		{"monitor", "add", "proc-1"},
		{"monitor", "remove", "proc-1"},
		{"monitor", "poll"},
		{"serve"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := runCmd(t, append(args, "--config", "/nonexistent/crank.yaml")...)
			if err == nil {
				t.Fatal("expected error for missing config file")
			}
			if !strings.Contains(err.Error(), "load config") {
				t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
			}
		})
	}
}

func TestCommands_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crank.yaml")
	if err := writeTestFile(path, "invalid: true\n"); err != nil {
		t.Fatal(err)
	}
	_, err := runCmd(t, "db", "migrate", "--config", path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "router_url") {
		t.Errorf("error = %q, want to mention router_url", err.Error())
	}
}
