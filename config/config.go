// Package config handles application configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	appName        = "voxmemo"
	configFileName = "config.json"
)

// Transition policies.
const (
	TransitionOnSuccess = "on-success"
	TransitionAlways    = "always"
)

// Short recording policies.
const (
	ShortKeep    = "keep"
	ShortDiscard = "discard"
)

// Log stores.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Config represents the application configuration.
type Config struct {
	RecordingsDir string `json:"recordings_dir,omitempty" toml:"recordings_dir"`

	// Capture
	FFmpegPath  string `json:"ffmpeg_path,omitempty" toml:"ffmpeg_path"`
	InputFormat string `json:"input_format,omitempty" toml:"input_format"`
	InputDevice string `json:"input_device,omitempty" toml:"input_device"`

	// Playback
	PlayerPath string `json:"player_path,omitempty" toml:"player_path"`

	// Session behaviour
	TransitionPolicy string `json:"transition_policy,omitempty" toml:"transition_policy"`
	ShortRecordings  string `json:"short_recordings,omitempty" toml:"short_recordings"`
	MinRecordingMS   int    `json:"min_recording_ms,omitempty" toml:"min_recording_ms"`
	LogStore         string `json:"log_store,omitempty" toml:"log_store"`

	Hotkeys HotkeyConfig `json:"hotkeys" toml:"hotkeys"`

	LogLevel string `json:"log_level,omitempty" toml:"log_level"`

	path string
}

// HotkeyConfig configures the optional global hotkeys.
type HotkeyConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Toggle  string `json:"toggle,omitempty" toml:"toggle"`
	Play    string `json:"play,omitempty" toml:"play"`
}

// Load loads configuration from the default config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from path. Files ending in .toml are decoded
// as TOML, anything else as JSON. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	case isTOML(path):
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode toml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the configuration to the file it was loaded from, or to
// the default location.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := configPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("encode toml config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	c.path = path
	return nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string { return c.path }

// Validate checks the policy names and durations.
func (c *Config) Validate() error {
	switch c.TransitionPolicy {
	case TransitionOnSuccess, TransitionAlways:
	default:
		return fmt.Errorf("invalid transition_policy %q: want %q or %q", c.TransitionPolicy, TransitionOnSuccess, TransitionAlways)
	}
	switch c.ShortRecordings {
	case ShortKeep, ShortDiscard:
	default:
		return fmt.Errorf("invalid short_recordings %q: want %q or %q", c.ShortRecordings, ShortKeep, ShortDiscard)
	}
	switch c.LogStore {
	case StoreMemory, StoreBadger:
	default:
		return fmt.Errorf("invalid log_store %q: want %q or %q", c.LogStore, StoreMemory, StoreBadger)
	}
	if c.MinRecordingMS < 0 {
		return fmt.Errorf("invalid min_recording_ms %d: must not be negative", c.MinRecordingMS)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.RecordingsDir == "" {
		return errors.New("recordings_dir is empty")
	}
	return nil
}

// MinRecording returns the short recording threshold.
func (c *Config) MinRecording() time.Duration {
	return time.Duration(c.MinRecordingMS) * time.Millisecond
}

// ParseLevel parses a slog level name. The empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}

// Helper functions

func (c *Config) applyDefaults() {
	if c.RecordingsDir == "" {
		c.RecordingsDir = defaultRecordingsDir()
	}
	c.RecordingsDir = expandTilde(c.RecordingsDir)
	c.FFmpegPath = expandTilde(c.FFmpegPath)
	c.PlayerPath = expandTilde(c.PlayerPath)

	if c.TransitionPolicy == "" {
		c.TransitionPolicy = TransitionOnSuccess
	}
	if c.ShortRecordings == "" {
		c.ShortRecordings = ShortKeep
	}
	if c.LogStore == "" {
		c.LogStore = StoreMemory
	}
	if c.Hotkeys.Toggle == "" {
		c.Hotkeys.Toggle = "ctrl+shift+r"
	}
	if c.Hotkeys.Play == "" {
		c.Hotkeys.Play = "ctrl+shift+p"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXMEMO_RECORDINGS_DIR"); v != "" {
		cfg.RecordingsDir = v
	}
	if v := os.Getenv("VOXMEMO_INPUT_DEVICE"); v != "" {
		cfg.InputDevice = v
	}
	if v := os.Getenv("VOXMEMO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func configPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, configFileName), nil
}

func defaultConfig() *Config {
	return &Config{
		TransitionPolicy: TransitionOnSuccess,
		ShortRecordings:  ShortKeep,
		MinRecordingMS:   500,
		LogStore:         StoreMemory,
		LogLevel:         "info",
	}
}

func defaultRecordingsDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "recordings")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", appName, "recordings")
	}
	return filepath.Join(".", "recordings")
}

func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
