package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Backend drivers.
const (
	DriverSupabase = "supabase"
	DriverSQLite   = "sqlite"
)

// BackendConfig selects and configures the data gateway.
type BackendConfig struct {
	// Driver is "supabase" (hosted) or "sqlite" (local, offline).
	Driver string `mapstructure:"driver" yaml:"driver"`

	// URL is the root URL of the hosted project.
	URL string `mapstructure:"url" yaml:"url"`

	// AnonKey is the public API key sent with every request.
	AnonKey string `mapstructure:"anon_key" yaml:"anon_key"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	// LocalViewer is the viewer id used by the sqlite driver, which has
	// no hosted auth.
	LocalViewer string `mapstructure:"local_viewer" yaml:"local_viewer"`

	// PollIntervalSec is how often the sqlite driver checks for rows
	// written by other processes. Zero disables the check.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// Theme is the glamour style for descriptions: dark, light or notty.
	Theme            string `mapstructure:"theme" yaml:"theme"`
	PageSize         int    `mapstructure:"page_size" yaml:"page_size"`
	SearchDebounceMS int    `mapstructure:"search_debounce_ms" yaml:"search_debounce_ms"`
	DeleteConfirmMS  int    `mapstructure:"delete_confirm_ms" yaml:"delete_confirm_ms"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	CacheTTLSec int    `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	PublicURL   string `mapstructure:"public_url" yaml:"public_url"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Validate checks that the selected driver has what it needs.
func (c *AppConfig) Validate() error {
	switch c.Backend.Driver {
	case DriverSupabase:
		if c.Backend.URL == "" {
			return errors.New("backend.url is required for the supabase driver")
		}
		if c.Backend.AnonKey == "" {
			return errors.New("backend.anon_key is required for the supabase driver")
		}
	case DriverSQLite:
		if c.Backend.SQLitePath == "" {
			return errors.New("backend.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown backend driver %q", c.Backend.Driver)
	}
	if c.Display.PageSize <= 0 {
		return fmt.Errorf("display.page_size must be positive, got %d", c.Display.PageSize)
	}
	return nil
}

// configDir returns ~/.config/accomplishments, falling back to the working
// directory when the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "accomplishments")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/accomplishments/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used for unset keys.
func DefaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		Backend: BackendConfig{
			Driver:          DriverSupabase,
			SQLitePath:      filepath.Join(dir, "accomplishments.db"),
			LocalViewer:     "local",
			PollIntervalSec: 5,
		},
		Display: DisplayConfig{
			Theme:            "dark",
			PageSize:         5,
			SearchDebounceMS: 300,
			DeleteConfirmMS:  3000,
		},
		Server: ServerConfig{
			Addr:        "localhost:3000",
			CacheTTLSec: 60,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "accomplish.log"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("backend.driver", d.Backend.Driver)
	v.SetDefault("backend.sqlite_path", d.Backend.SQLitePath)
	v.SetDefault("backend.local_viewer", d.Backend.LocalViewer)
	v.SetDefault("backend.poll_interval_sec", d.Backend.PollIntervalSec)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.page_size", d.Display.PageSize)
	v.SetDefault("display.search_debounce_ms", d.Display.SearchDebounceMS)
	v.SetDefault("display.delete_confirm_ms", d.Display.DeleteConfirmMS)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.cache_ttl_sec", d.Server.CacheTTLSec)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// bindEnv maps the backend URL and public key onto environment variables.
// The NEXT_PUBLIC_ names are accepted so an existing .env can be reused.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ACCOMPLISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("backend.url", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL")
	_ = v.BindEnv("backend.anon_key", "SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults and environment variables are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Backend.URL = strings.TrimRight(cfg.Backend.URL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("display", cfg.Display)
	v.Set("server", cfg.Server)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
