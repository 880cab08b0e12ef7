package main

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/spf13/cobra"
)

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show mission progress per module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			overview, err := a.Progress.Overview(commandContext(cmd))
			if err != nil {
				return err
			}
			printOverview(cmd.OutOrStdout(), a.Catalog.Modules(), overview)
			return nil
		},
	}

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear all recorded progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset progress without --yes")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Progress.Reset(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Progress reset")
			return nil
		},
	}
	reset.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")

	stats := &cobra.Command{
		Use:   "stats <mission-id>",
		Short: "Show attempt statistics for a mission (sqlite storage)",
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
			st, err := a.Progress.AttemptStats(commandContext(cmd), m.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", m.ID, m.Title)
			fmt.Fprintf(out, "Attempts:   %d\n", st.Attempts)
			fmt.Fprintf(out, "Passes:     %d\n", st.Passes)
			fmt.Fprintf(out, "Mean score: %.2f\n", st.MeanScore)
			return nil
		},
	}

	cmd.AddCommand(reset, stats)
	return cmd
}

func printOverview(out io.Writer, modules []domain.ModuleInfo, overview []domain.ModuleProgress) {
	names := make(map[int]string, len(modules))
	for _, m := range modules {
		names[m.ID] = m.Name
	}

	fmt.Fprintln(out, "Mission Progress")
	fmt.Fprintln(out, "================")

	completed, total, stars, maxStars := 0, 0, 0, 0
	for _, p := range overview {
		name := names[p.Module]
		if name == "" {
			name = fmt.Sprintf("Module %d", p.Module)
		}
		fmt.Fprintf(out, "%d %-18s %s %d/%d  ★ %d/%d\n",
			p.Module, truncate(name, 18), renderProgressBar(p.Fraction(), 20),
			p.Completed, p.Total, p.Stars, p.MaxStars)

		completed += p.Completed
		total += p.Total
		stars += p.Stars
		maxStars += p.MaxStars
	}

	fmt.Fprintf(out, "\nTotal: %d/%d missions completed, %d/%d stars\n", completed, total, stars, maxStars)
}
