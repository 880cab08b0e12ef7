package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/felixgeelhaar/pylab/internal/progress"
	"github.com/spf13/cobra"
)

func newMissionsCmd() *cobra.Command {
	var module int
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "List missions with your progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			missions := a.Catalog.List()
			if cmd.Flags().Changed("module") {
				if _, err := a.Catalog.Module(module); err != nil {
					return err
				}
				missions = a.Catalog.ByModule(module)
			}

			return printMissionList(cmd, a.Progress, missions)
		},
	}
	cmd.Flags().IntVar(&module, "module", 0, "Only list missions of this module")
	return cmd
}

func printMissionList(cmd *cobra.Command, prog progress.ProgressService, missions []*domain.Mission) error {
	out := cmd.OutOrStdout()
	if len(missions) == 0 {
		fmt.Fprintln(out, "No missions found.")
		return nil
	}

	fmt.Fprintf(out, "%-8s  %-28s  %-12s  %-6s  %s\n", "ID", "Title", "Difficulty", "Time", "Stars")
	fmt.Fprintln(out, strings.Repeat("─", 68))

	ctx := commandContext(cmd)
	for _, m := range missions {
		rec, ok, err := prog.GetMissionProgress(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("get progress for %s: %w", m.ID, err)
		}
		stars := ""
		if ok && rec.Completed {
			stars = renderStars(int(rec.Score), int(domain.MaxScore))
		}
		fmt.Fprintf(out, "%-8s  %-28s  %-12s  %-6s  %s\n",
			m.ID, truncate(m.Title, 28), m.Metadata.Difficulty,
			fmt.Sprintf("%dm", m.Metadata.EstimatedTime), stars)
	}
	return nil
}

func newMissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mission",
		Short: "Inspect a single mission",
	}

	var starterOnly bool
	show := &cobra.Command{
		Use:   "show <mission-id>",
		Short: "Show a mission briefing, its checks and starter code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.Catalog.Get(args[0])
			if err != nil {
				return err
			}
			if starterOnly {
				fmt.Fprint(cmd.OutOrStdout(), m.StarterCode)
				return nil
			}
			printMission(cmd.OutOrStdout(), m)
			return nil
		},
	}
	show.Flags().BoolVar(&starterOnly, "starter", false, "Print only the starter code")

	cmd.AddCommand(show)
	return cmd
}

func printMission(out io.Writer, m *domain.Mission) {
	fmt.Fprintf(out, "%s  %s\n", m.ID, m.Title)
	fmt.Fprintln(out, strings.Repeat("=", len(m.ID)+len(m.Title)+2))
	fmt.Fprintf(out, "Module %d · %s · ~%d min\n", m.Module, m.Metadata.Difficulty, m.Metadata.EstimatedTime)
	if len(m.Metadata.Prerequisites) > 0 {
		fmt.Fprintf(out, "Requires: %s\n", strings.Join(m.Metadata.Prerequisites, ", "))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, m.Briefing.Situation)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Task: %s\n", m.Briefing.Task)
	if m.Briefing.Context != "" {
		fmt.Fprintf(out, "\n%s\n", m.Briefing.Context)
	}

	if len(m.Checks) > 0 {
		fmt.Fprintln(out, "\nChecks:")
		for _, c := range m.Checks {
			fmt.Fprintf(out, "  - %s\n", c.Kind())
		}
	}

	if len(m.Rewards.Stars) > 0 {
		fmt.Fprintln(out, "\nRewards:")
		for s := domain.ScoreThree; s >= domain.ScoreOne; s-- {
			if desc := m.StarDescription(s); desc != "" {
				fmt.Fprintf(out, "  %s  %s\n", renderStars(int(s), int(domain.MaxScore)), desc)
			}
		}
	}

	fmt.Fprintf(out, "\nHints available: %d\n", len(m.Hints))

	if m.StarterCode != "" {
		fmt.Fprintln(out, "\nStarter code:")
		fmt.Fprintln(out, strings.Repeat("-", 40))
		fmt.Fprint(out, m.StarterCode)
		if !strings.HasSuffix(m.StarterCode, "\n") {
			fmt.Fprintln(out)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
