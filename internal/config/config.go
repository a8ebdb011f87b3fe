// Package config holds the runtime configuration for one Mission Control
// instance, loaded from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree.
type Config struct {
	// Workspace being served.
	Workspace WorkspaceConfig `yaml:"workspace"`

	// HTTP delivery layer.
	Server ServerConfig `yaml:"server"`

	// Watcher/debounce behavior.
	Watcher WatcherConfig `yaml:"watcher"`

	// Git analytics.
	Git GitConfig `yaml:"git"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`
}

// WorkspaceConfig names the workspace root and its source documents.
type WorkspaceConfig struct {
	Root            string `yaml:"root"`
	AgentsFile      string `yaml:"agents_file"`
	TasksFile       string `yaml:"tasks_file"`
	ProjectsFile    string `yaml:"projects_file"`
	PreferencesFile string `yaml:"preferences_file"`
	SnapshotPath    string `yaml:"snapshot_path"` // relative to root unless absolute
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Buffered events held per SSE subscriber before it is dropped.
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// WatcherConfig configures the debouncer. Durations are strings ("500ms")
// parsed at the point of use.
type WatcherConfig struct {
	QuietPeriod string `yaml:"quiet_period"`
}

// QuietDuration parses the quiet period, falling back to the default when
// unset or malformed.
func (w WatcherConfig) QuietDuration() time.Duration {
	if d, err := time.ParseDuration(w.QuietPeriod); err == nil && d > 0 {
		return d
	}
	return 500 * time.Millisecond
}

// GitConfig configures the analytics subprocess.
type GitConfig struct {
	Depth   int    `yaml:"depth"`
	Timeout string `yaml:"timeout"`
}

// TimeoutDuration parses the subprocess timeout, falling back to 5s.
func (g GitConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(g.Timeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Workspace: WorkspaceConfig{
			Root:            filepath.Join(home, "workspace"),
			AgentsFile:      "AGENTS.md",
			TasksFile:       "active-tasks.md",
			ProjectsFile:    "projects.md",
			PreferencesFile: "USER_PREFERENCES.md",
			SnapshotPath:    filepath.Join("mission-control", "data.json"),
		},
		Server: ServerConfig{
			Addr:             ":3001",
			SubscriberBuffer: 16,
		},
		Watcher: WatcherConfig{
			QuietPeriod: "500ms",
		},
		Git: GitConfig{
			Depth:   50,
			Timeout: "5s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, returning defaults when the
// file is absent. Environment variables override the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SnapshotPath resolves the snapshot location, honoring absolute overrides.
func (c *Config) SnapshotPath() string {
	if filepath.IsAbs(c.Workspace.SnapshotPath) {
		return c.Workspace.SnapshotPath
	}
	return filepath.Join(c.Workspace.Root, c.Workspace.SnapshotPath)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MISSIONCTL_WORKSPACE"); v != "" {
		c.Workspace.Root = v
	}
	if v := os.Getenv("MISSIONCTL_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MISSIONCTL_PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			c.Server.Addr = ":" + v
		}
	}
	if v := os.Getenv("MISSIONCTL_QUIET_PERIOD"); v != "" {
		c.Watcher.QuietPeriod = v
	}
	if v := os.Getenv("MISSIONCTL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
