package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lvillar/pdfmerge/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server communicates over stdio using JSON-RPC. Saved templates and
imported datasets can be referenced by ID and are listed as resources.

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "pdfmerge": {
        "command": "/path/to/pdfmerge",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	server := mcp.NewServer(appEngine, st, appLogger)
	return server.Serve(cmd.Context(), os.Stdin, os.Stdout)
}
