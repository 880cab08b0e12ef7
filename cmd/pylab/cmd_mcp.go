package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	mcpserver "github.com/felixgeelhaar/pylab/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server (stdio by default)",
		Long: `mcp serves the pylab tools (missions, start, run, hint, reset and
progress) to MCP clients such as editors and coding assistants. Logs are
written to stderr so stdout carries only protocol traffic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcpserver.NewServer(mcpserver.Config{
				Catalog:  a.Catalog,
				Sessions: a.Sessions,
				Progress: a.Progress,
				Version:  Version,
			})

			if httpAddr != "" {
				return ignoreCanceled(srv.ServeHTTP(ctx, httpAddr))
			}
			return ignoreCanceled(srv.ServeStdio(ctx))
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve over HTTP on this address instead of stdio")
	return cmd
}

// ignoreCanceled treats a signal-driven shutdown as a clean exit
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
