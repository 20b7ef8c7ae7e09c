package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Poll interval bounds.
const (
	MinPollInterval = 30 * time.Second
	MaxPollInterval = 60 * time.Second
)

// Environment overrides.
const (
	EnvAPIURL   = "MAILTRIAGE_API_URL"
	EnvLogLevel = "MAILTRIAGE_LOG_LEVEL"
)

// Config holds all mailtriage configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Poll    PollConfig    `toml:"poll"`
	Refresh RefreshConfig `toml:"refresh"`
	Auth    AuthConfig    `toml:"auth"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
}

// APIConfig points at the triage backend.
type APIConfig struct {
	BaseURL  string `toml:"base_url"`
	Timeout  string `toml:"timeout"`
	PageSize int    `toml:"page_size"`
}

// PollConfig controls the new-mail notifier.
type PollConfig struct {
	Enabled    bool   `toml:"enabled"`
	Interval   string `toml:"interval"`
	MaxResults int    `toml:"max_results"`
}

// RefreshConfig controls auto-refresh of the active tab. "0" disables it.
type RefreshConfig struct {
	Interval string `toml:"interval"`
}

// AuthConfig holds the local address that receives the login redirect.
type AuthConfig struct {
	CallbackAddr string `toml:"callback_addr"`
}

// UIConfig holds TUI display settings.
type UIConfig struct {
	DefaultCategory string `toml:"default_category"`
	Theme           string `toml:"theme"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:  "http://localhost:8000",
			Timeout:  "30s",
			PageSize: 20,
		},
		Poll: PollConfig{
			Enabled:    true,
			Interval:   "45s",
			MaxResults: 20,
		},
		Refresh: RefreshConfig{
			Interval: "5m",
		},
		Auth: AuthConfig{
			CallbackAddr: "127.0.0.1:8765",
		},
		UI: UIConfig{
			DefaultCategory: "All",
			Theme:           "default",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads config from path and applies environment overrides. A missing
// file yields defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is empty")
	}
	for name, v := range map[string]string{
		"api.timeout":      c.API.Timeout,
		"poll.interval":    c.Poll.Interval,
		"refresh.interval": c.Refresh.Interval,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// APITimeout returns the per-request timeout.
func (c *Config) APITimeout() time.Duration {
	d, _ := parseDuration(c.API.Timeout)
	return d
}

// PollInterval returns the notifier interval clamped to [MinPollInterval, MaxPollInterval].
func (c *Config) PollInterval() time.Duration {
	d, _ := parseDuration(c.Poll.Interval)
	return min(max(d, MinPollInterval), MaxPollInterval)
}

// RefreshInterval returns the auto-refresh interval; zero disables it.
func (c *Config) RefreshInterval() time.Duration {
	d, _ := parseDuration(c.Refresh.Interval)
	return d
}

// LogFile returns the configured log path, defaulting into DataDir.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(DataDir(), "mailtriage.log")
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// ConfigDir returns the mailtriage config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailtriage")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mailtriage")
}

// DataDir returns the mailtriage data directory path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailtriage")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "mailtriage")
}
