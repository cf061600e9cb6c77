package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLocaleDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-03-07", "3/7/2024"},
		{"2024-12-25", "12/25/2024"},
		{" 2024-01-01 ", "1/1/2024"},
		{"not a date", "not a date"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLocaleDate(tt.in), tt.in)
	}
	assert.Equal(t, "2/29/2024", Accomplishment{Date: "2024-02-29"}.LocaleDate())
}

func TestViewerAndSession(t *testing.T) {
	assert.True(t, Viewer{}.IsZero())
	assert.False(t, Viewer{ID: "a"}.IsZero())

	now := mustDate(t, "2024-03-07")
	var nilSession *Session
	assert.True(t, nilSession.Expired(now))
	assert.False(t, (&Session{}).Expired(now), "zero expiry never expires")
	assert.True(t, (&Session{ExpiresAt: now}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(1)}).Expired(now))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DriverSupabase, cfg.Backend.Driver)
	assert.Equal(t, "local", cfg.Backend.LocalViewer)
	assert.Equal(t, 5, cfg.Display.PageSize)
	assert.Equal(t, 300, cfg.Display.SearchDebounceMS)
	assert.Equal(t, "dark", cfg.Display.Theme)
	assert.Equal(t, "localhost:3000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://project.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://project.supabase.co", cfg.Backend.URL)
	assert.Equal(t, "anon", cfg.Backend.AnonKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveThenLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.Backend.Driver = DriverSQLite
	cfg.Backend.SQLitePath = "/tmp/a.db"
	cfg.Display.PageSize = 10

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, got.Backend.Driver)
	assert.Equal(t, "/tmp/a.db", got.Backend.SQLitePath)
	assert.Equal(t, 10, got.Display.PageSize)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		c := DefaultAppConfig()
		c.Backend.URL = "https://x.supabase.co"
		c.Backend.AnonKey = "k"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid supabase", func(*AppConfig) {}, ""},
		{"missing url", func(c *AppConfig) { c.Backend.URL = "" }, "backend.url"},
		{"missing key", func(c *AppConfig) { c.Backend.AnonKey = "" }, "backend.anon_key"},
		{"sqlite without path", func(c *AppConfig) {
			c.Backend.Driver = DriverSQLite
			c.Backend.SQLitePath = ""
		}, "backend.sqlite_path"},
		{"sqlite needs no url", func(c *AppConfig) {
			c.Backend.Driver = DriverSQLite
			c.Backend.URL = ""
		}, ""},
		{"unknown driver", func(c *AppConfig) { c.Backend.Driver = "mysql" }, "unknown backend driver"},
		{"bad page size", func(c *AppConfig) { c.Display.PageSize = 0 }, "page_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
