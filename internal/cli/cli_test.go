package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
	"github.com/nhle/accomplishment-tracker/internal/store"
	"github.com/nhle/accomplishment-tracker/tests/testutil"
)

// sqliteConfig writes a config selecting the sqlite driver and seeds the
// database with rows for the local viewer alice.
func sqliteConfig(t *testing.T, titles ...string) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "accomplishments.db")
	cfgPath = filepath.Join(dir, "config.yaml")

	yaml := "backend:\n" +
		"  driver: sqlite\n" +
		"  sqlite_path: " + dbPath + "\n" +
		"  local_viewer: alice\n" +
		"log:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	testutil.Seed(t, st, "alice", titles...)
	require.NoError(t, st.Close())
	return cfgPath, dbPath
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestExportToStdout(t *testing.T) {
	cfg, _ := sqliteConfig(t, "Shipped billing", "Mentored interns")

	out, _, err := execute(t, "--config", cfg, "export", "--out", "-")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Title,Description,Date,Created At", lines[0])
	assert.Contains(t, out, "Shipped billing,Notes on Shipped billing,2024-03-01,")
	assert.Contains(t, out, "Mentored interns,Notes on Mentored interns,2024-03-02,")
}

func TestExportToFile(t *testing.T) {
	cfg, _ := sqliteConfig(t, "Shipped billing")
	path := filepath.Join(t.TempDir(), "out.csv")

	_, errOut, err := execute(t, "--config", cfg, "export", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Exported 1 accomplishments to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Title,Description,Date,Created At\n"))
}

func TestLoginThenMailExport(t *testing.T) {
	cfg, _ := sqliteConfig(t, "Shipped billing")

	out, _, err := execute(t, "--config", cfg, "login", "--email", "alice@example.com", "--password", "x")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as alice@example.com\n", out)

	path := filepath.Join(t.TempDir(), "review.eml")
	_, _, err = execute(t, "--config", cfg, "export", "--mail-to", "boss@example.com", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "boss@example.com")
	assert.Contains(t, string(data), "alice@example.com")
	assert.Contains(t, string(data), "text/csv")
}

func TestLoginRequiresCredentials(t *testing.T) {
	cfg, _ := sqliteConfig(t)

	_, _, err := execute(t, "--config", cfg, "login")
	assert.ErrorContains(t, err, "pass --code or --email")
}

func TestLoginWithCodeOnSQLite(t *testing.T) {
	cfg, _ := sqliteConfig(t)

	_, _, err := execute(t, "--config", cfg, "login", "--code", "abc")
	assert.ErrorContains(t, err, "auth codes are not supported")
}

func TestLogoutOnSQLite(t *testing.T) {
	cfg, _ := sqliteConfig(t)

	out, _, err := execute(t, "--config", cfg, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out\n", out)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  driver: carrier-pigeon\n"), 0o600))

	_, _, err := execute(t, "--config", path, "export", "--out", "-")
	assert.ErrorContains(t, err, `unknown backend driver "carrier-pigeon"`)
}

func TestConfigInitWritesUsableConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "nested", "config.yaml")
	db := filepath.Join(dir, "local.db")

	out, _, err := execute(t, "--config", cfg, "config", "init", "--driver", "sqlite", "--sqlite-path", db)
	require.NoError(t, err)
	assert.Equal(t, "Wrote "+cfg+"\n", out)

	loaded, err := model.LoadConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, model.DriverSQLite, loaded.Backend.Driver)
	assert.Equal(t, db, loaded.Backend.SQLitePath)
	assert.Equal(t, 5, loaded.Display.PageSize)

	out, _, err = execute(t, "--config", cfg, "export", "--out", "-")
	require.NoError(t, err)
	assert.Equal(t, "Title,Description,Date,Created At\n", out)

	_, _, err = execute(t, "--config", cfg, "config", "init", "--driver", "sqlite", "--sqlite-path", db)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = execute(t, "--config", cfg, "config", "init", "--force", "--url", "https://x.supabase.co/", "--anon-key", "k")
	require.NoError(t, err)
	loaded, err = model.LoadConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://x.supabase.co", loaded.Backend.URL)
}

func TestConfigInitRejectsUnknownDriver(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	_, _, err := execute(t, "--config", cfg, "config", "init", "--driver", "carrier-pigeon")
	assert.ErrorContains(t, err, "unknown backend driver")
	_, statErr := os.Stat(cfg)
	assert.True(t, os.IsNotExist(statErr))
}

// hostedConfig writes a config for the supabase driver pointing at url.
func hostedConfig(t *testing.T, url string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "backend:\n" +
		"  driver: supabase\n" +
		"  url: " + url + "\n" +
		"  anon_key: anon\n" +
		"server:\n" +
		"  public_url: https://tracker.example.com\n" +
		"log:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestMagicLinkLoginKeepsVerifierForCode(t *testing.T) {
	var mu sync.Mutex
	var challenge, redirect string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/otp", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		challenge, _ = body["code_challenge"].(string)
		redirect = r.URL.Query().Get("redirect_to")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{}"))
	})
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var grant struct {
			AuthCode     string `json:"auth_code"`
			CodeVerifier string `json:"code_verifier"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&grant))
		mu.Lock()
		ok := challenge != "" && oauth2.S256ChallengeFromVerifier(grant.CodeVerifier) == challenge
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code verifier mismatch"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,` +
			`"user":{"id":"u1","email":"ada@example.com"}}`))
	})
	idp := httptest.NewServer(mux)
	defer idp.Close()

	store := session.NewMemory(nil)
	run := func(args ...string) (string, error) {
		cmd := newRootCmd(&App{sessions: func() (session.Store, error) { return store, nil }})
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}
	cfg := hostedConfig(t, idp.URL)

	_, err := run("--config", cfg, "login", "--code", "link-code")
	assert.ErrorContains(t, err, "code verifier mismatch", "no sign-in was started")

	out, err := run("--config", cfg, "login", "--email", "ada@example.com", "--magic-link")
	require.NoError(t, err)
	assert.Contains(t, out, "Sign-in link sent to ada@example.com")
	mu.Lock()
	assert.Equal(t, "https://tracker.example.com/auth/callback", redirect)
	mu.Unlock()
	require.NotEmpty(t, store.CodeVerifier())

	out, err = run("--config", cfg, "login", "--code", "link-code")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as ada@example.com\n", out)
	assert.Empty(t, store.CodeVerifier())
}

func TestMagicLinkOnSQLite(t *testing.T) {
	cfg, _ := sqliteConfig(t)

	_, _, err := execute(t, "--config", cfg, "login", "--email", "a@example.com", "--magic-link")
	assert.ErrorContains(t, err, "does not support sign-in links")

	_, _, err = execute(t, "--config", cfg, "login", "--code", "x", "--magic-link")
	assert.ErrorContains(t, err, "--magic-link needs --email")
}

func TestCallbackURL(t *testing.T) {
	assert.Equal(t, "https://x.example.com/auth/callback",
		callbackURL(model.ServerConfig{PublicURL: "https://x.example.com/", Addr: "localhost:3000"}))
	assert.Equal(t, "http://localhost:3000/auth/callback", callbackURL(model.ServerConfig{Addr: "localhost:3000"}))
}

func TestMillis(t *testing.T) {
	assert.Zero(t, millis(0))
	assert.Zero(t, millis(-5))
	assert.Equal(t, "300ms", millis(300).String())
}

func TestViewerLabel(t *testing.T) {
	assert.Equal(t, "a@example.com", viewerLabel(model.Viewer{ID: "a", Email: "a@example.com"}))
	assert.Equal(t, "a", viewerLabel(model.Viewer{ID: "a"}))
}
