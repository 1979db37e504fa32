package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/inspect"
	"github.com/lvillar/pdfmerge/raster"
	"github.com/lvillar/pdfmerge/store"
	"github.com/lvillar/pdfmerge/store/memory"
)

type rpcResponse struct {
	Result map[string]any `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testEngine() *pdfmerge.Engine {
	r := raster.RasterizerFunc(func(ctx context.Context, markup string) (*raster.Bitmap, error) {
		return raster.NewBitmap(raster.PageWidth, 200), nil
	})
	return pdfmerge.New(pdfmerge.WithRasterizer(r))
}

func sendRequest(t *testing.T, s *Server, method string, id int, params any) rpcResponse {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	reqBytes, err := json.Marshal(req)
	require.NoError(t, err)

	msg := s.MCPServer().HandleMessage(context.Background(), reqBytes)
	respBytes, err := json.Marshal(msg)
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(respBytes, &resp), "response %s", respBytes)
	return resp
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text, res.IsError
	case *mcp.TextContent:
		return c.Text, res.IsError
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return "", false
}

func TestServerInitialize(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	resp := sendRequest(t, s, "initialize", 1, map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
	})
	require.Nil(t, resp.Error)
	serverInfo, ok := resp.Result["serverInfo"].(map[string]any)
	require.True(t, ok, "missing serverInfo")
	assert.Equal(t, Name, serverInfo["name"])
}

func TestServerToolsList(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	resp := sendRequest(t, s, "tools/list", 2, nil)
	require.Nil(t, resp.Error)

	tools, ok := resp.Result["tools"].([]any)
	require.True(t, ok, "tools is not an array")
	names := map[string]bool{}
	for _, tool := range tools {
		if tm, ok := tool.(map[string]any); ok {
			names[str(tm["name"])] = true
		}
	}
	for _, name := range []string{"extract_fields", "render_document", "render_batch", "inspect_pdf"} {
		assert.True(t, names[name], "tool %q not registered", name)
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func TestServerUnknownTool(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	resp := sendRequest(t, s, "tools/call", 3, map[string]any{
		"name":      "nonexistent_tool",
		"arguments": map[string]any{},
	})
	assert.NotNil(t, resp.Error)
}

func TestServerResources(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveTemplate(ctx, &store.Template{ID: "t1", Name: "Invoice", Content: "<p>{{Name}} {{Total}}</p>"}))

	s := NewServer(testEngine(), st, nil)
	resp := sendRequest(t, s, "resources/list", 4, nil)
	require.Nil(t, resp.Error)
	resources, ok := resp.Result["resources"].([]any)
	require.True(t, ok)
	assert.Len(t, resources, 3)

	resp = sendRequest(t, s, "resources/read", 5, map[string]any{"uri": TemplatesURI})
	require.Nil(t, resp.Error)
	contents, ok := resp.Result["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	text := str(contents[0].(map[string]any)["text"])
	assert.Contains(t, text, `"Invoice"`)
	assert.Contains(t, text, `"Total"`)
}

func TestExtractFields(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	text, isErr := callTool(t, s.handleExtractFields, map[string]any{
		"template": "<p>{{Name}} owes {{Total}}. Thanks {{Name}}!</p>",
	})
	require.False(t, isErr, text)

	var got struct {
		Fields []struct {
			Name        string `json:"name"`
			Occurrences int    `json:"occurrences"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	require.Len(t, got.Fields, 2)
	assert.Equal(t, "Name", got.Fields[0].Name)
	assert.Equal(t, 2, got.Fields[0].Occurrences)
	assert.Equal(t, "Total", got.Fields[1].Name)
}

func TestExtractFieldsUnknownTemplateID(t *testing.T) {
	s := NewServer(testEngine(), memory.New(), nil)
	text, isErr := callTool(t, s.handleExtractFields, map[string]any{"templateId": "missing"})
	assert.True(t, isErr)
	assert.Contains(t, text, "not found")
}

func TestRenderDocumentBase64(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	text, isErr := callTool(t, s.handleRenderDocument, map[string]any{
		"template": "<h1>Hello {{Name}}</h1>",
		"values":   map[string]any{"Name": "Ada"},
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "PDF created successfully")

	_, encoded, found := strings.Cut(text, "Base64 data:\n")
	require.True(t, found)
	doc, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	n, err := inspect.PageCount(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRenderDocumentOutputPath(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	out := filepath.Join(t.TempDir(), "hello.pdf")
	text, isErr := callTool(t, s.handleRenderDocument, map[string]any{
		"template":   "<p>{{who}}</p>",
		"mapping":    map[string]any{"who": "Name"},
		"values":     map[string]any{"Name": "Grace"},
		"outputPath": out,
	})
	require.False(t, isErr, text)
	info, err := inspect.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
}

func TestRenderDocumentEmptyTemplate(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	text, isErr := callTool(t, s.handleRenderDocument, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, text, "no template")
}

func TestRenderBatchToDirectory(t *testing.T) {
	st := memory.New()
	s := NewServer(testEngine(), st, nil)
	dir := t.TempDir()

	text, isErr := callTool(t, s.handleRenderBatch, map[string]any{
		"template":     "<p>{{Customer}}</p>",
		"templateName": "Q1 Invoice",
		"headers":      []any{"Name", "Amount"},
		"rows":         []any{[]any{"Ada", 1.0}, []any{"Grace", 2.0}, []any{"Linus", 3.0}},
		"selected":     []any{2.0, 0.0},
		"mapping":      map[string]any{"Customer": "Name"},
		"outputDir":    dir,
		"combine":      true,
	})
	require.False(t, isErr, text)

	var report struct {
		GroupName string   `json:"groupName"`
		Files     []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, "Q1 Invoice Batch (2 PDFs)", report.GroupName)
	require.Len(t, report.Files, 3)
	assert.Equal(t, filepath.Join(dir, "q1-invoice-3.pdf"), report.Files[0])
	assert.Equal(t, filepath.Join(dir, "q1-invoice-1.pdf"), report.Files[1])

	combined, err := os.ReadFile(filepath.Join(dir, "q1-invoice-batch.pdf"))
	require.NoError(t, err)
	n, err := inspect.PageCount(combined)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := st.ListArtifacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRenderBatchFromStore(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	tpl := &store.Template{Name: "Letter", Content: "<p>Dear {{Name}}</p>"}
	require.NoError(t, st.SaveTemplate(ctx, tpl))
	ds := store.NewDataset("people.csv", []string{"Name"}, [][]any{{"Ada"}, {"Grace"}})
	require.NoError(t, st.SaveDataset(ctx, &ds))

	s := NewServer(testEngine(), st, nil)
	text, isErr := callTool(t, s.handleRenderBatch, map[string]any{
		"templateId": tpl.ID,
		"importId":   ds.ID,
		"selected":   []any{1.0},
		"mapping":    map[string]any{"Name": "Name"},
	})
	require.False(t, isErr, text)

	var report struct {
		GroupName string `json:"groupName"`
		Combined  string `json:"combined"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, "letter-2.pdf", report.GroupName)
	assert.NotEmpty(t, report.Combined)
}

func TestRenderBatchInvalid(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	text, isErr := callTool(t, s.handleRenderBatch, map[string]any{
		"template": "<p>{{Name}}</p>",
		"headers":  []any{"Name"},
		"rows":     []any{[]any{"Ada"}},
		"selected": []any{4.0},
		"mapping":  map[string]any{"Name": "Name"},
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "out of range")
}

func TestInspectPDF(t *testing.T) {
	s := NewServer(testEngine(), nil, nil)
	doc, err := testEngine().RenderOne(context.Background(), "<p>x</p>", nil, nil)
	require.NoError(t, err)

	text, isErr := callTool(t, s.handleInspectPDF, map[string]any{
		"data": base64.StdEncoding.EncodeToString(doc),
	})
	require.False(t, isErr, text)
	var info inspect.Info
	require.NoError(t, json.Unmarshal([]byte(text), &info))
	assert.Equal(t, 1, info.Pages)
	assert.Equal(t, 1, info.Images)

	_, isErr = callTool(t, s.handleInspectPDF, map[string]any{})
	assert.True(t, isErr)
}
