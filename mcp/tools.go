package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/binding"
	"github.com/lvillar/pdfmerge/inspect"
	"github.com/lvillar/pdfmerge/internal/archive"
	"github.com/lvillar/pdfmerge/placeholder"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool(
			"extract_fields",
			mcp.WithDescription("List the {{field}} placeholders of a template in order of first appearance, with how often each occurs."),
			mcp.WithString("template", mcp.Description("Template markup. Either this or templateId is required.")),
			mcp.WithString("templateId", mcp.Description("ID of a saved template")),
		),
		s.handleExtractFields,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"render_document",
			mcp.WithDescription("Render one PDF from a template and a row of values keyed by column name. Returns the PDF as base64 unless outputPath is given."),
			mcp.WithString("template", mcp.Description("Template markup with {{field}} placeholders. Either this or templateId is required.")),
			mcp.WithString("templateId", mcp.Description("ID of a saved template")),
			mcp.WithObject("values", mcp.Description("Row values keyed by column name")),
			mcp.WithObject("mapping", mcp.Description("Field to column mapping. Omit to bind each field to the column of the same name.")),
			mcp.WithString("outputPath", mcp.Description("Optional file path to save the PDF. If omitted, returns base64.")),
		),
		s.handleRenderDocument,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"render_batch",
			mcp.WithDescription("Render one PDF per selected dataset row. Rows that fail are reported and do not stop the others. Files are written to outputDir when given; otherwise the combined PDF is returned as base64."),
			mcp.WithString("template", mcp.Description("Template markup. Either this or templateId is required.")),
			mcp.WithString("templateId", mcp.Description("ID of a saved template")),
			mcp.WithString("templateName", mcp.Description("Name used for output files. Defaults to the saved template's name.")),
			mcp.WithString("importId", mcp.Description("ID of an imported dataset. Either this or headers and rows is required.")),
			mcp.WithArray("headers", mcp.Description("Column headers"), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("rows", mcp.Description("Rows of cell values aligned to headers"), mcp.Items(map[string]any{"type": "array"})),
			mcp.WithArray("selected", mcp.Required(), mcp.Description("Zero-based row indices in output order"), mcp.Items(map[string]any{"type": "number"})),
			mcp.WithObject("mapping", mcp.Required(), mcp.Description("Field to column mapping")),
			mcp.WithString("outputDir", mcp.Description("Directory to write one PDF per row into")),
			mcp.WithBoolean("combine", mcp.Description("Also write all documents merged into one PDF")),
		),
		s.handleRenderBatch,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"inspect_pdf",
			mcp.WithDescription("Report page count, first page size, image count and producer of a PDF."),
			mcp.WithString("path", mcp.Description("Path to the PDF file")),
			mcp.WithString("data", mcp.Description("Base64 encoded PDF, used when path is omitted")),
		),
		s.handleInspectPDF,
	)
}

func arguments(request mcp.CallToolRequest) (map[string]any, bool) {
	if request.Params.Arguments == nil {
		return map[string]any{}, true
	}
	args, ok := request.Params.Arguments.(map[string]any)
	return args, ok
}

// template resolves the template content and name from inline markup or a
// saved template ID.
func (s *Server) template(ctx context.Context, args map[string]any) (content, name, id string, err error) {
	content = cast.ToString(args["template"])
	name = cast.ToString(args["templateName"])
	id = cast.ToString(args["templateId"])
	if content != "" || id == "" {
		return content, name, "", nil
	}
	if s.store == nil {
		return "", "", "", errors.New("templateId given but no store is configured")
	}
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return "", "", "", fmt.Errorf("loading template %s: %w", id, err)
	}
	if name == "" {
		name = t.Name
	}
	return t.Content, name, t.ID, nil
}

func (s *Server) handleExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	content, _, _, err := s.template(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	counts := placeholder.Count(content)
	type field struct {
		Name        string `json:"name"`
		Occurrences int    `json:"occurrences"`
	}
	fields := []field{}
	for _, f := range placeholder.Extract(content) {
		fields = append(fields, field{Name: f, Occurrences: counts[f]})
	}
	jsonBytes, _ := json.MarshalIndent(map[string]any{"fields": fields}, "", "  ")
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRenderDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	content, _, id, err := s.template(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var mapping binding.Mapping
	if raw, ok := args["mapping"]; ok && raw != nil {
		mapping = cast.ToStringMapString(raw)
	}
	values := cast.ToStringMap(args["values"])

	doc, err := s.engine.RenderOne(ctx, content, mapping, values)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render: %v", err)), nil
	}
	s.touch(ctx, id)

	if outputPath := cast.ToString(args["outputPath"]); outputPath != "" {
		if err := os.WriteFile(outputPath, doc, 0o644); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to write file: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("PDF created successfully: %s (%d bytes)", outputPath, len(doc))), nil
	}
	encoded := base64.StdEncoding.EncodeToString(doc)
	return mcp.NewToolResultText(fmt.Sprintf("PDF created successfully (%d bytes). Base64 data:\n%s", len(doc), encoded)), nil
}

// batchReport is the render_batch response body.
type batchReport struct {
	pdfmerge.Summary
	Files    []string `json:"files,omitempty"`
	Combined string   `json:"combined,omitempty"`
}

func (s *Server) handleRenderBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	content, name, templateID, err := s.template(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	selected, err := cast.ToIntSliceE(args["selected"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter selected: %v", err)), nil
	}

	req := pdfmerge.BatchRequest{
		TemplateID:   templateID,
		TemplateName: name,
		Content:      content,
		Mapping:      cast.ToStringMapString(args["mapping"]),
		Headers:      args["headers"],
		Rows:         args["rows"],
		Selected:     selected,
	}
	importID := cast.ToString(args["importId"])
	if importID != "" {
		if s.store == nil {
			return mcp.NewToolResultError("importId given but no store is configured"), nil
		}
		d, err := s.store.GetDataset(ctx, importID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to load import %s: %v", importID, err)), nil
		}
		req.Headers, req.Rows = d.Headers, d.Data
	}

	res, err := s.engine.RenderBatch(ctx, req)
	if res == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid batch: %v", err)), nil
	}
	report := batchReport{Summary: res.Summary()}
	if err != nil {
		jsonBytes, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate any document: %v\n%s", err, jsonBytes)), nil
	}
	s.touch(ctx, templateID)

	if res.Group != nil {
		if dir := cast.ToString(args["outputDir"]); dir != "" {
			opts := archive.Options{ImportID: importID}
			if cast.ToBool(args["combine"]) {
				opts.CombinedName = archive.CombinedName(name)
			}
			w := &archive.Writer{Store: s.store, Log: s.log}
			files, err := w.WriteGroup(ctx, dir, res.Group, opts)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to write files: %v", err)), nil
			}
			report.Files = files
		} else {
			combined, err := res.Group.Combine()
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to combine documents: %v", err)), nil
			}
			report.Combined = base64.StdEncoding.EncodeToString(combined)
		}
	}

	jsonBytes, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) touch(ctx context.Context, templateID string) {
	if s.store == nil || templateID == "" {
		return
	}
	if err := s.store.TouchTemplate(ctx, templateID, time.Now().UTC()); err != nil {
		s.log.Warn("updating template last used time", zap.String("template", templateID), zap.Error(err))
	}
}

func (s *Server) handleInspectPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	var info *inspect.Info
	var err error
	if path := cast.ToString(args["path"]); path != "" {
		info, err = inspect.ReadFile(path)
	} else if data := cast.ToString(args["data"]); data != "" {
		raw, decErr := base64.StdEncoding.DecodeString(data)
		if decErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid base64 data: %v", decErr)), nil
		}
		info, err = inspect.ReadBytes(raw)
	} else {
		return mcp.NewToolResultError("Missing required parameter: path or data"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read PDF: %v", err)), nil
	}

	jsonBytes, _ := json.MarshalIndent(info, "", "  ")
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
