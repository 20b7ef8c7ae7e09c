package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("default base_url = %q", cfg.API.BaseURL)
	}
	if cfg.API.PageSize != 20 {
		t.Errorf("default page_size = %d, want 20", cfg.API.PageSize)
	}
	if cfg.PollInterval() != 45*time.Second {
		t.Errorf("default poll interval = %v, want 45s", cfg.PollInterval())
	}
	if cfg.RefreshInterval() != 5*time.Minute {
		t.Errorf("default refresh interval = %v, want 5m", cfg.RefreshInterval())
	}
	if !cfg.Poll.Enabled {
		t.Error("poll should be enabled by default")
	}
	if cfg.UI.DefaultCategory != "All" {
		t.Errorf("default category = %q, want All", cfg.UI.DefaultCategory)
	}
	if cfg.Auth.CallbackAddr != "127.0.0.1:8765" {
		t.Errorf("callback_addr = %q", cfg.Auth.CallbackAddr)
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	content := `
[api]
base_url = "https://triage.example.com"
timeout = "10s"

[poll]
interval = "50s"
enabled = false

[refresh]
interval = "0"

[ui]
default_category = "Job Posting"
theme = "mono"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.BaseURL != "https://triage.example.com" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.APITimeout() != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.APITimeout())
	}
	if cfg.PollInterval() != 50*time.Second || cfg.Poll.Enabled {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.RefreshInterval() != 0 {
		t.Errorf("refresh interval = %v, want disabled", cfg.RefreshInterval())
	}
	if cfg.UI.DefaultCategory != "Job Posting" || cfg.UI.Theme != "mono" {
		t.Errorf("ui = %+v", cfg.UI)
	}
	// Unset sections keep defaults.
	if cfg.API.PageSize != 20 {
		t.Errorf("page_size = %d, want default 20", cfg.API.PageSize)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
	if cfg.Poll.Interval != "45s" {
		t.Errorf("interval = %q, want default %q", cfg.Poll.Interval, "45s")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("not valid [[ toml"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load() should return error for invalid TOML")
	}
	if !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "failed to parse config")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[poll]\ninterval = \"soon\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "poll.interval") {
		t.Errorf("Load() error = %v, want poll.interval error", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIURL, "http://backend:9000")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.BaseURL != "http://backend:9000" {
		t.Errorf("base_url = %q, want env override", cfg.API.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want env override", cfg.Log.Level)
	}
}

func TestPollIntervalClamp(t *testing.T) {
	tests := []struct {
		interval string
		want     time.Duration
	}{
		{"5s", MinPollInterval},
		{"30s", 30 * time.Second},
		{"45s", 45 * time.Second},
		{"10m", MaxPollInterval},
		{"0", MinPollInterval},
	}
	for _, tt := range tests {
		cfg := defaults()
		cfg.Poll.Interval = tt.interval
		if got := cfg.PollInterval(); got != tt.want {
			t.Errorf("PollInterval(%q) = %v, want %v", tt.interval, got, tt.want)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	os.Unsetenv(EnvAPIURL)

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(EnvAPIURL+"=http://dotenv:8000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	if got := os.Getenv(EnvAPIURL); got != "http://dotenv:8000" {
		t.Errorf("%s = %q, want value from .env", EnvAPIURL, got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("LoadDotEnv() on missing file error: %v", err)
	}
}

func TestLogFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	cfg := defaults()
	if got := cfg.LogFile(); got != "/custom/data/mailtriage/mailtriage.log" {
		t.Errorf("LogFile() = %q", got)
	}
	cfg.Log.File = "/tmp/x.log"
	if got := cfg.LogFile(); got != "/tmp/x.log" {
		t.Errorf("LogFile() = %q", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		dir := ConfigDir()
		want := "/custom/config/mailtriage"
		if dir != want {
			t.Errorf("ConfigDir() = %q, want %q", dir, want)
		}
	})
	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		dir := ConfigDir()
		if !strings.HasSuffix(dir, filepath.Join(".config", "mailtriage")) {
			t.Errorf("ConfigDir() = %q, want suffix %q", dir, filepath.Join(".config", "mailtriage"))
		}
	})
}

func TestDataDir(t *testing.T) {
	t.Run("with XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/custom/data")
		dir := DataDir()
		want := "/custom/data/mailtriage"
		if dir != want {
			t.Errorf("DataDir() = %q, want %q", dir, want)
		}
	})
	t.Run("without XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		dir := DataDir()
		if !strings.HasSuffix(dir, filepath.Join(".local", "share", "mailtriage")) {
			t.Errorf("DataDir() = %q, want suffix %q", dir, filepath.Join(".local", "share", "mailtriage"))
		}
	})
}
