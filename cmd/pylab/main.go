package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/felixgeelhaar/pylab/internal/app"
	"github.com/felixgeelhaar/pylab/internal/config"
	"github.com/felixgeelhaar/pylab/internal/logging"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "pylabd.pid"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pylab",
		Short: "Python lab missions with visual validation",
		Long: `pylab - learn Python by steering simulations and plotting functions.

Missions ship with checks on your code, its output and the scene it draws.
Run a solution with 'pylab run', or start the daemon for editor integration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "", "Log level for local commands (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(),
		newDoctorCmd(),
		newConfigCmd(),
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newMissionsCmd(),
		newMissionCmd(),
		newRunCmd(),
		newCheckCmd(),
		newProgressCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pylab %s\n", Version)
		},
	}
}

// openApp loads the local configuration and wires the services the
// command-line tools share with the daemon. Logs go to stderr so stdout
// stays clean for command output and the MCP stdio transport.
func openApp(cmd *cobra.Command) (*app.App, error) {
	dir, err := config.EnsurePylabDir()
	if err != nil {
		return nil, fmt.Errorf("setup pylab directory: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelWarn
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = logging.ParseLevel(flag)
	}

	return app.New(commandContext(cmd), app.Options{
		Config:  cfg,
		DataDir: dir,
		Logger:  logging.NewConsoleLogger(cmd.ErrOrStderr(), level),
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}

// renderStars draws a score as filled and empty stars
func renderStars(score, total int) string {
	if score < 0 {
		score = 0
	}
	if score > total {
		score = total
	}
	return strings.Repeat("★", score) + strings.Repeat("☆", total-score)
}
