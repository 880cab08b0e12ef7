package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override config.yaml
const (
	EnvPort          = "PYLAB_PORT"
	EnvBind          = "PYLAB_BIND"
	EnvLogLevel      = "PYLAB_LOG_LEVEL"
	EnvExecutor      = "PYLAB_EXECUTOR"
	EnvPython        = "PYLAB_PYTHON"
	EnvTimeout       = "PYLAB_TIMEOUT_SECONDS"
	EnvMaxConcurrent = "PYLAB_MAX_CONCURRENT"
	EnvDockerImage   = "PYLAB_DOCKER_IMAGE"
	EnvDockerMemory  = "PYLAB_DOCKER_MEMORY_MB"
	EnvDockerCPU     = "PYLAB_DOCKER_CPU_LIMIT"
	EnvDockerNetwork = "PYLAB_DOCKER_NETWORK_OFF"
	EnvStorage       = "PYLAB_STORAGE_BACKEND"
	EnvStoragePath   = "PYLAB_STORAGE_PATH"
	EnvMissions      = "PYLAB_MISSIONS_PATH"
	EnvMissionsWatch = "PYLAB_MISSIONS_WATCH"
)

// LoadDotEnv loads .env files into the process environment. Variables
// that are already set win, and missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// ApplyEnv overrides cfg with any PYLAB_* variables that are set
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt(EnvPort, cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv(EnvBind, cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv(EnvLogLevel, cfg.Daemon.LogLevel)

	cfg.Runner.Executor = getEnv(EnvExecutor, cfg.Runner.Executor)
	cfg.Runner.Python = getEnv(EnvPython, cfg.Runner.Python)
	cfg.Runner.TimeoutSeconds = getEnvInt(EnvTimeout, cfg.Runner.TimeoutSeconds)
	cfg.Runner.MaxConcurrent = getEnvInt(EnvMaxConcurrent, cfg.Runner.MaxConcurrent)
	cfg.Runner.Docker.Image = getEnv(EnvDockerImage, cfg.Runner.Docker.Image)
	cfg.Runner.Docker.MemoryMB = getEnvInt(EnvDockerMemory, cfg.Runner.Docker.MemoryMB)
	cfg.Runner.Docker.CPULimit = getEnvFloat(EnvDockerCPU, cfg.Runner.Docker.CPULimit)
	cfg.Runner.Docker.NetworkOff = getEnvBool(EnvDockerNetwork, cfg.Runner.Docker.NetworkOff)

	cfg.Storage.Backend = getEnv(EnvStorage, cfg.Storage.Backend)
	cfg.Storage.Path = getEnv(EnvStoragePath, cfg.Storage.Path)

	cfg.Missions.Path = getEnv(EnvMissions, cfg.Missions.Path)
	cfg.Missions.Watch = getEnvBool(EnvMissionsWatch, cfg.Missions.Watch)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
