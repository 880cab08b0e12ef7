package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/pylab/internal/config"
	"github.com/felixgeelhaar/pylab/internal/mission"
	"github.com/felixgeelhaar/pylab/internal/runner"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var exportDir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize pylab (first-time setup)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdInit(cmd.OutOrStdout(), exportDir)
		},
	}
	cmd.Flags().StringVar(&exportDir, "export-missions", "", "Copy the built-in missions to this directory and load them from there")
	return cmd
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdDoctor(cmd.OutOrStdout())
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLocalConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			dir, _ := config.PylabDir()
			printConfig(cmd.OutOrStdout(), cfg, dir)
			return nil
		},
	}
}

// cmdInit initializes pylab for first-time use
func cmdInit(out io.Writer, exportDir string) error {
	fmt.Fprintln(out, "pylab - First-Time Setup")
	fmt.Fprintln(out, "========================")
	fmt.Fprintln(out)

	fmt.Fprint(out, "Creating ~/.pylab directory structure... ")
	pylabDir, err := config.EnsurePylabDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Fprintln(out, "✓")

	configPath := filepath.Join(pylabDir, "config.yaml")
	cfg, err := config.LoadLocalConfigFile(configPath)
	if err != nil {
		return err
	}

	if exportDir != "" {
		fmt.Fprintf(out, "Exporting built-in missions to %s... ", exportDir)
		if err := exportMissions(exportDir); err != nil {
			fmt.Fprintln(out, "✗")
			return err
		}
		fmt.Fprintln(out, "✓")

		abs, err := filepath.Abs(exportDir)
		if err != nil {
			return fmt.Errorf("resolve mission dir: %w", err)
		}
		cfg.Missions.Path = abs
		cfg.Missions.Watch = true
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) || exportDir != "" {
		fmt.Fprint(out, "Writing configuration... ")
		if err := config.SaveLocalConfig(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintln(out, "✓")
	} else {
		fmt.Fprintln(out, "Configuration already exists ✓")
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, "Checking Python... ")
	if err := checkPython(cfg.Runner.Python); err != nil {
		fmt.Fprintf(out, "⚠ %v\n", err)
	} else {
		fmt.Fprintln(out, "✓")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Setup Complete!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. pylab missions             # See available missions")
	fmt.Fprintln(out, "  2. pylab mission show 1_1     # Read the first briefing")
	fmt.Fprintln(out, "  3. pylab run 1_1 solution.py  # Run and validate your code")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "For editor integration:")
	fmt.Fprintln(out, "  - HTTP API: pylab start")
	fmt.Fprintln(out, "  - MCP:      configure 'pylab mcp' as a stdio server")

	return nil
}

// exportMissions writes the embedded mission packs to dir, which must not
// already contain them
func exportMissions(dir string) error {
	if err := os.CopyFS(dir, mission.Builtin()); err != nil {
		return fmt.Errorf("export missions: %w", err)
	}
	return nil
}

// cmdDoctor checks system requirements
func cmdDoctor(out io.Writer) error {
	fmt.Fprintln(out, "Checking system requirements...")

	allGood := true

	fmt.Fprint(out, "Directory: ")
	pylabDir, err := config.PylabDir()
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(pylabDir); os.IsNotExist(err) {
		fmt.Fprintln(out, "✗ not created (run 'pylab init')")
		allGood = false
	} else {
		fmt.Fprintf(out, "✓ %s\n", pylabDir)
	}

	fmt.Fprint(out, "Config:    ")
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		cfg = config.DefaultLocalConfig()
		allGood = false
	} else {
		fmt.Fprintln(out, "✓ loaded")
	}

	fmt.Fprint(out, "Python:    ")
	if err := checkPython(cfg.Runner.Python); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		allGood = false
	} else {
		fmt.Fprintf(out, "✓ %s\n", cfg.Runner.Python)
	}

	fmt.Fprint(out, "Docker:    ")
	if err := checkDocker(cfg); err != nil {
		if cfg.Runner.Executor == config.ExecutorDocker {
			fmt.Fprintf(out, "✗ %v\n", err)
			allGood = false
		} else {
			fmt.Fprintln(out, "- not available (local executor in use)")
		}
	} else {
		fmt.Fprintln(out, "✓ available")
	}

	fmt.Fprint(out, "Missions:  ")
	if count, err := countMissions(cfg); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		allGood = false
	} else {
		fmt.Fprintf(out, "✓ %d loaded\n", count)
	}

	fmt.Fprint(out, "\nDaemon:    ")
	if isRunning("http://" + cfg.Daemon.Address()) {
		fmt.Fprintln(out, "✓ running")
	} else {
		fmt.Fprintln(out, "✗ not running (run 'pylab start')")
	}

	fmt.Fprintln(out)
	if allGood {
		fmt.Fprintln(out, "All checks passed! ✓")
	} else {
		fmt.Fprintln(out, "Some checks failed. Please fix the issues above.")
	}

	return nil
}

func checkPython(python string) error {
	if !runner.NewLocalExecutor(runner.Config{Python: python}).Available() {
		return fmt.Errorf("%s not found in PATH", python)
	}
	return nil
}

func checkDocker(cfg *config.LocalConfig) error {
	docker, err := runner.NewDockerExecutor(runner.DockerConfig{Image: cfg.Runner.Docker.Image})
	if err != nil {
		return err
	}
	return docker.Close()
}

func countMissions(cfg *config.LocalConfig) (int, error) {
	registry, err := loadCatalog(cfg)
	if err != nil {
		return 0, err
	}
	return registry.Stats().MissionCount, nil
}

func printConfig(out io.Writer, cfg *config.LocalConfig, dir string) {
	fmt.Fprintln(out, "pylab Configuration")

	fmt.Fprintln(out, "Daemon:")
	fmt.Fprintf(out, "  bind: %s\n", cfg.Daemon.Address())
	fmt.Fprintf(out, "  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Fprintln(out, "\nRunner:")
	fmt.Fprintf(out, "  executor: %s\n", cfg.Runner.Executor)
	fmt.Fprintf(out, "  python: %s\n", cfg.Runner.Python)
	fmt.Fprintf(out, "  timeout: %ds\n", cfg.Runner.TimeoutSeconds)
	fmt.Fprintf(out, "  max_concurrent: %d\n", cfg.Runner.MaxConcurrent)
	if cfg.Runner.Executor == config.ExecutorDocker {
		fmt.Fprintf(out, "  image: %s\n", cfg.Runner.Docker.Image)
		fmt.Fprintf(out, "  memory: %dMB\n", cfg.Runner.Docker.MemoryMB)
		fmt.Fprintf(out, "  cpus: %.2f\n", cfg.Runner.Docker.CPULimit)
		fmt.Fprintf(out, "  network_off: %t\n", cfg.Runner.Docker.NetworkOff)
	}

	fmt.Fprintln(out, "\nStorage:")
	fmt.Fprintf(out, "  backend: %s\n", cfg.Storage.Backend)
	storagePath := cfg.Storage.Path
	if storagePath == "" {
		storagePath = dir
	}
	fmt.Fprintf(out, "  path: %s\n", storagePath)

	fmt.Fprintln(out, "\nMissions:")
	if cfg.Missions.Path == "" {
		fmt.Fprintln(out, "  source: built-in")
	} else {
		fmt.Fprintf(out, "  source: %s\n", cfg.Missions.Path)
		fmt.Fprintf(out, "  watch: %t\n", cfg.Missions.Watch)
	}

	fmt.Fprintf(out, "\nConfig path: %s\n", filepath.Join(dir, "config.yaml"))
}
