package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/felixgeelhaar/pylab/internal/config"
	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/felixgeelhaar/pylab/internal/mission"
	"github.com/felixgeelhaar/pylab/internal/protocol"
	"github.com/felixgeelhaar/pylab/internal/session"
	"github.com/felixgeelhaar/pylab/internal/validator"
	"github.com/spf13/cobra"
)

// errNotPassed gives a failed validation a non-zero exit status
var errNotPassed = errors.New("mission not passed")

func newRunCmd() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "run <mission-id> [file.py|-]",
		Short: "Run a solution and validate it against a mission",
		Long: `Run executes a Python file (or stdin with "-") with the configured
executor and validates the result. Without a file the mission's starter
code is run. A passing run is recorded in your progress.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := ""
			if len(args) == 2 {
				src, err := readSource(cmd.InOrStdin(), args[1])
				if err != nil {
					return err
				}
				code = src
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			sess, err := a.Sessions.Open(ctx, args[0])
			if err != nil {
				return err
			}
			if !keep {
				defer a.Sessions.Delete(ctx, sess.ID)
			}

			report, err := a.Sessions.Run(ctx, sess.ID, code)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printReport(out, report)
			if keep {
				fmt.Fprintf(out, "\nSession: %s\n", sess.ID)
			}
			if !report.Validation.Passed {
				return errNotPassed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the session for the daemon or MCP clients")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var (
		codeFile string
		failed   bool
	)
	cmd := &cobra.Command{
		Use:   "check <mission-id> <output-file|->",
		Short: "Validate captured program output without running it",
		Long: `Check extracts the visualization snapshot from output captured elsewhere
(for example an editor's run console) and validates it. Progress is not
recorded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLocalConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			m, err := catalog.Get(args[0])
			if err != nil {
				return err
			}

			output, err := readSource(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			code := ""
			if codeFile != "" {
				if code, err = readSource(cmd.InOrStdin(), codeFile); err != nil {
					return err
				}
			}

			result := checkOutput(m, code, output, !failed)

			out := cmd.OutOrStdout()
			printValidation(out, m, result)
			if !result.Passed {
				return errNotPassed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&codeFile, "code", "", "Source file the output came from (needed for code checks)")
	cmd.Flags().BoolVar(&failed, "failed", false, "The script raised; validate without a visualization")
	return cmd
}

// checkOutput validates captured output the same way a session run does
func checkOutput(m *domain.Mission, code, output string, success bool) domain.ValidationResult {
	ex := protocol.Extract(output)
	var vis domain.Visualization
	if success {
		vis = ex.Visualization()
	}
	return validator.Validate(m, code, protocol.Lines(ex.Cleaned), vis)
}

// loadCatalog loads the configured mission catalog without the rest of
// the application
func loadCatalog(cfg *config.LocalConfig) (*mission.Registry, error) {
	if cfg.Missions.Path == "" {
		return mission.NewBuiltinRegistry()
	}
	registry := mission.NewRegistry(mission.NewLoader(os.DirFS(cfg.Missions.Path)))
	if err := registry.Load(); err != nil {
		return nil, fmt.Errorf("load missions from %s: %w", cfg.Missions.Path, err)
	}
	return registry, nil
}

func readSource(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func printReport(out io.Writer, report *session.RunReport) {
	if len(report.Console) > 0 {
		fmt.Fprintln(out, "Console")
		fmt.Fprintln(out, strings.Repeat("─", 40))
		for _, line := range report.Console {
			prefix := "  "
			if line.Kind == session.LineError {
				prefix = "✗ "
			}
			fmt.Fprintf(out, "%s%s\n", prefix, line.Text)
		}
		fmt.Fprintln(out)
	}

	v := report.Validation
	if v.Passed {
		fmt.Fprintf(out, "Mission passed %s", renderStars(int(v.Score), int(domain.MaxScore)))
		if report.Stars != "" {
			fmt.Fprintf(out, "  %s", report.Stars)
		}
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, "Mission not passed")
	}
	printMessages(out, v)

	if report.NextID != "" {
		fmt.Fprintf(out, "\nNext mission: %s\n", report.NextID)
	}
	fmt.Fprintf(out, "Duration: %s\n", report.Run.Duration)
}

func printValidation(out io.Writer, m *domain.Mission, v domain.ValidationResult) {
	if v.Passed {
		fmt.Fprintf(out, "Mission passed %s", renderStars(int(v.Score), int(domain.MaxScore)))
		if desc := m.StarDescription(v.Score); desc != "" {
			fmt.Fprintf(out, "  %s", desc)
		}
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, "Mission not passed")
	}
	printMessages(out, v)
}

func printMessages(out io.Writer, v domain.ValidationResult) {
	for _, f := range v.Feedback {
		fmt.Fprintf(out, "  ✓ %s\n", f)
	}
	for _, e := range v.Errors {
		fmt.Fprintf(out, "  ✗ %s\n", e)
	}
}
