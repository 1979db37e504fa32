// Package mcp implements a Model Context Protocol (MCP) server that exposes
// the pdfmerge pipeline as tools and resources for AI assistants.
//
// The server speaks JSON-RPC 2.0 over stdio through mark3labs/mcp-go.
// Tools render single documents and batches, extract template fields and
// inspect produced PDFs. When a store is attached, saved templates and
// imported datasets can be referenced by ID and are listed as resources.
//
// # Usage with Claude Desktop
//
// Add to your claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "pdfmerge": {
//	      "command": "pdfmerge",
//	      "args": ["mcp", "serve"]
//	    }
//	  }
//	}
package mcp

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/store"
)

// Name and Version identify the server during the MCP handshake.
const (
	Name    = "pdfmerge"
	Version = "1.0.0"
)

// Server wires the pdfmerge engine into an MCP server.
type Server struct {
	mcp    *server.MCPServer
	engine *pdfmerge.Engine
	store  store.Store
	log    *zap.Logger
}

// NewServer creates a server with every tool registered. st may be nil, in
// which case tools only accept inline templates and datasets.
func NewServer(engine *pdfmerge.Engine, st store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp: server.NewMCPServer(
			Name,
			Version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, false),
		),
		engine: engine,
		store:  st,
		log:    logger.Named("mcp"),
	}
	s.registerTools()
	if st != nil {
		s.registerResources()
	}
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve processes newline-delimited JSON-RPC messages from in until it is
// exhausted or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("serving MCP over stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}
