package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	mcpserver "github.com/MikeSquared-Agency/contextbridge/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing extract_handover,
get_handover and credential_status. Logs go to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, source, closeSource, err := bootstrap(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer closeSource()

	sess := newSessions(cfg, source, slog.Default()).Get("")
	srv := mcpserver.NewServer(sess, newExtractor(cfg, slog.Default()), cfg.AccountName, version, slog.Default())

	slog.Info("starting contextbridge MCP server over stdio")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
