package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Executor kinds
const (
	ExecutorLocal  = "local"
	ExecutorDocker = "docker"
)

// Storage backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// LocalConfig holds configuration for the CLI and the local daemon
type LocalConfig struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	Runner   RunnerConfig   `yaml:"runner"`
	Storage  StorageConfig  `yaml:"storage"`
	Missions MissionsConfig `yaml:"missions"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// Address returns the host:port the daemon listens on
func (d DaemonConfig) Address() string {
	return net.JoinHostPort(d.Bind, strconv.Itoa(d.Port))
}

// RunnerConfig holds code execution settings
type RunnerConfig struct {
	Executor       string             `yaml:"executor"`
	Python         string             `yaml:"python"`
	TimeoutSeconds int                `yaml:"timeout_seconds"`
	MaxConcurrent  int                `yaml:"max_concurrent"`
	Docker         DockerRunnerConfig `yaml:"docker"`
}

// DockerRunnerConfig holds Docker executor settings
type DockerRunnerConfig struct {
	Image      string  `yaml:"image"`
	MemoryMB   int     `yaml:"memory_mb"`
	CPULimit   float64 `yaml:"cpu_limit"`
	NetworkOff bool    `yaml:"network_off"`
}

// StorageConfig selects the progress backend. An empty Path means the
// pylab directory itself.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// MissionsConfig points at an on-disk mission catalog. An empty Path
// selects the built-in missions.
type MissionsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// PylabDir returns the path to ~/.pylab
func PylabDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".pylab"), nil
}

// EnsurePylabDir creates ~/.pylab and subdirectories if they don't exist
func EnsurePylabDir() (string, error) {
	dir, err := PylabDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"sessions",
		"progress",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7842,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Runner: RunnerConfig{
			Executor:       ExecutorLocal,
			Python:         "python3",
			TimeoutSeconds: 10,
			MaxConcurrent:  4,
			Docker: DockerRunnerConfig{
				Image:      "python:3.12-alpine",
				MemoryMB:   128,
				CPULimit:   0.5,
				NetworkOff: true,
			},
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
		},
	}
}

// Validate rejects settings the application cannot start with
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("%w: daemon.port %d out of range", ErrInvalidConfig, c.Daemon.Port)
	}
	switch c.Runner.Executor {
	case ExecutorLocal, ExecutorDocker:
	default:
		return fmt.Errorf("%w: runner.executor %q (want local or docker)", ErrInvalidConfig, c.Runner.Executor)
	}
	if c.Runner.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: runner.timeout_seconds must be positive", ErrInvalidConfig)
	}
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("%w: storage.backend %q (want json or sqlite)", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Missions.Watch && c.Missions.Path == "" {
		return fmt.Errorf("%w: missions.watch requires missions.path", ErrInvalidConfig)
	}
	return nil
}

// LoadLocalConfig loads ~/.pylab/config.yaml, then applies .env and
// PYLAB_* environment overrides
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := PylabDir()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadLocalConfigFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return nil, err
	}

	LoadDotEnv()
	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLocalConfigFile merges the YAML file at path over the defaults. A
// missing file yields the defaults.
func LoadLocalConfigFile(path string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveLocalConfig saves configuration to ~/.pylab/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsurePylabDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
