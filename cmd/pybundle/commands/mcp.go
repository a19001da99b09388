package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pybundle/pkg/mcp"
	"github.com/Sumatoshi-tech/pybundle/pkg/observability"
)

func newMCPCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes two tools:
  - python_bundle: inline the local imports of an entry script
  - python_strip: remove type annotations from inline code

Logs are written to stderr as JSON; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if global.logFormat == "" {
				global.logFormat = formatJSON
			}

			sess, err := global.open(cmd, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger: sess.logger(),
				Tracer: sess.providers.Tracer,
				Config: sess.cfg,
			})

			return srv.Run(cmd.Context())
		},
	}
}
