package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lvillar/pdfmerge/placeholder"
)

// Resource URIs served when a store is attached.
const (
	TemplatesURI = "pdfmerge://templates"
	ImportsURI   = "pdfmerge://imports"
	ArtifactsURI = "pdfmerge://artifacts"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(
		mcp.NewResource(TemplatesURI, "Saved templates",
			mcp.WithResourceDescription("Saved templates, most recently used first, with the fields each one uses"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleTemplatesResource,
	)
	s.mcp.AddResource(
		mcp.NewResource(ImportsURI, "Imported datasets",
			mcp.WithResourceDescription("Imported datasets, newest first, with their headers and row counts"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleImportsResource,
	)
	s.mcp.AddResource(
		mcp.NewResource(ArtifactsURI, "Generated documents",
			mcp.WithResourceDescription("Documents written by render_batch, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleArtifactsResource,
	)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}

func (s *Server) handleTemplatesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	type entry struct {
		ID       string    `json:"id"`
		Name     string    `json:"name"`
		Fields   []string  `json:"fields"`
		LastUsed time.Time `json:"lastUsed"`
	}
	out := make([]entry, 0, len(templates))
	for _, t := range templates {
		out = append(out, entry{ID: t.ID, Name: t.Name, Fields: placeholder.Extract(t.Content), LastUsed: t.LastUsed})
	}
	return jsonContents(request.Params.URI, out)
}

func (s *Server) handleImportsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	datasets, err := s.store.ListDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing imports: %w", err)
	}
	type entry struct {
		ID         string    `json:"id"`
		FileName   string    `json:"fileName"`
		Headers    []string  `json:"headers"`
		RowCount   int       `json:"rowCount"`
		ImportedAt time.Time `json:"importedAt"`
	}
	out := make([]entry, 0, len(datasets))
	for _, d := range datasets {
		out = append(out, entry{ID: d.ID, FileName: d.FileName, Headers: d.Headers, RowCount: d.RowCount, ImportedAt: d.ImportedAt})
	}
	return jsonContents(request.Params.URI, out)
}

func (s *Server) handleArtifactsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	artifacts, err := s.store.ListArtifacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	type entry struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Path      string    `json:"path"`
		Size      int64     `json:"size"`
		CreatedAt time.Time `json:"createdAt"`
	}
	out := make([]entry, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, entry{ID: a.ID, Name: a.Name, Path: a.FilePath, Size: a.Size, CreatedAt: a.CreatedAt})
	}
	return jsonContents(request.Params.URI, out)
}
