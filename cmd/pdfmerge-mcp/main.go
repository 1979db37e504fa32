// Command pdfmerge-mcp is an MCP (Model Context Protocol) server that
// exposes template rendering and batch PDF generation to AI assistants.
// It is equivalent to "pdfmerge mcp serve".
//
// # Installation
//
//	go install github.com/lvillar/pdfmerge/cmd/pdfmerge-mcp@latest
//
// # Configuration for Claude Desktop
//
// Add to ~/.config/claude/claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "pdfmerge": {
//	      "command": "pdfmerge-mcp"
//	    }
//	  }
//	}
//
// # Available Tools
//
//   - extract_fields: List the placeholders of a template
//   - render_document: Render one PDF from a template and values
//   - render_batch: Render one PDF per dataset row
//   - inspect_pdf: Report pages, page size and images of a PDF
//
// # Available Resources
//
//   - pdfmerge://templates : Saved templates
//   - pdfmerge://imports : Imported datasets
//   - pdfmerge://artifacts : Generated documents
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lvillar/pdfmerge/internal/app"
	"github.com/lvillar/pdfmerge/internal/config"
	"github.com/lvillar/pdfmerge/internal/logging"
	"github.com/lvillar/pdfmerge/mcp"
	"github.com/lvillar/pdfmerge/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pdfmerge-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("PDFMERGE_CONFIG"))
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engine, release, err := app.NewEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	st, err := sqlite.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing database", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return mcp.NewServer(engine, st, logger).Serve(ctx, os.Stdin, os.Stdout)
}
