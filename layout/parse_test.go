package layout

import (
	"errors"
	"strings"
	"testing"
)

func TestParseParagraphs(t *testing.T) {
	doc, err := Parse("Hello <b>Ada</b>,\n   total:   <i>42</i><p>Second</p>")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2: %+v", len(doc.Blocks), doc.Blocks)
	}

	first := doc.Blocks[0]
	if first.Kind != Paragraph {
		t.Fatalf("first block kind = %v", first.Kind)
	}
	if got := PlainText(first.Runs); got != "Hello Ada, total: 42" {
		t.Fatalf("text = %q", got)
	}
	if !first.Runs[1].Bold || first.Runs[1].Text != "Ada" {
		t.Fatalf("bold run = %+v", first.Runs[1])
	}
	if !first.Runs[3].Italic {
		t.Fatalf("italic run = %+v", first.Runs[3])
	}
	if got := PlainText(doc.Blocks[1].Runs); got != "Second" {
		t.Fatalf("second paragraph = %q", got)
	}
}

func TestParseHeadingsAndAlign(t *testing.T) {
	doc, err := Parse(`<h2 style="text-align: center">Invoice</h2><div align="right"><p>Right</p></div><p>Left</p>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Blocks) != 3 {
		t.Fatalf("got %d blocks: %+v", len(doc.Blocks), doc.Blocks)
	}
	h := doc.Blocks[0]
	if h.Kind != Heading || h.Level != 2 || h.Align != AlignCenter {
		t.Fatalf("heading = %+v", h)
	}
	if !h.Runs[0].Bold {
		t.Fatal("heading runs should be bold")
	}
	if doc.Blocks[1].Align != AlignRight {
		t.Fatalf("nested paragraph align = %v", doc.Blocks[1].Align)
	}
	if doc.Blocks[2].Align != AlignLeft {
		t.Fatalf("align leaked to sibling: %v", doc.Blocks[2].Align)
	}
}

func TestParseBreaks(t *testing.T) {
	doc, err := Parse("line one<br>line two<br/>")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := PlainText(doc.Blocks[0].Runs); got != "line one\nline two" {
		t.Fatalf("text = %q", got)
	}
}

func TestParseListRuleImage(t *testing.T) {
	doc, err := Parse(`<ol><li>One</li><li>Two <b>bold</b></li></ol><hr><img src="logo.png" width="120px" style="height: 40px" alt="Logo">`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Blocks) != 3 {
		t.Fatalf("got %d blocks: %+v", len(doc.Blocks), doc.Blocks)
	}
	list := doc.Blocks[0]
	if list.Kind != List || !list.Ordered || len(list.Items) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if PlainText(list.Items[1]) != "Two bold" {
		t.Fatalf("item = %q", PlainText(list.Items[1]))
	}
	if doc.Blocks[1].Kind != Rule {
		t.Fatalf("expected rule, got %v", doc.Blocks[1].Kind)
	}
	img := doc.Blocks[2]
	if img.Kind != Image || img.Src != "logo.png" || img.Width != 120 || img.Height != 40 || img.Alt != "Logo" {
		t.Fatalf("image = %+v", img)
	}
}

func TestParseTable(t *testing.T) {
	doc, err := Parse(`<table>
		<thead><tr><th>Item</th><th>Qty</th></tr></thead>
		<tr><td>Widget</td><td>10</td></tr>
		<tr><td>Gadget</td></tr>
	</table>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Blocks) != 1 || doc.Blocks[0].Kind != Table {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	tbl := doc.Blocks[0]
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows = %d", len(tbl.Rows))
	}
	if !tbl.Rows[0].Header || tbl.Rows[1].Header {
		t.Fatalf("header flags = %v %v", tbl.Rows[0].Header, tbl.Rows[1].Header)
	}
	if tbl.Columns() != 2 {
		t.Fatalf("columns = %d", tbl.Columns())
	}
	if PlainText(tbl.Rows[1].Cells[0]) != "Widget" {
		t.Fatalf("cell = %q", PlainText(tbl.Rows[1].Cells[0]))
	}
}

func TestParseBarcode(t *testing.T) {
	doc, err := Parse(`<barcode type="code128" value="INV-0001" width="200" height="50"></barcode><p>after</p>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	bc := doc.Blocks[0]
	if bc.Kind != Barcode || bc.Symbology != "code128" || bc.Value != "INV-0001" || bc.Width != 200 {
		t.Fatalf("barcode = %+v", bc)
	}

	doc, err = Parse(`<barcode>https://example.com</barcode>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Blocks[0].Symbology != "qr" || doc.Blocks[0].Value != "https://example.com" {
		t.Fatalf("barcode = %+v", doc.Blocks[0])
	}
}

func TestParseSkipsScriptsAndEmpty(t *testing.T) {
	doc, err := Parse(`<script>alert(1)</script><style>p{}</style>   <p>  </p>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Blocks) != 0 {
		t.Fatalf("expected no blocks, got %+v", doc.Blocks)
	}
}

func TestParseTooDeep(t *testing.T) {
	markup := strings.Repeat("<span>", MaxDepth+10) + "x"
	_, err := Parse(markup)
	if !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"#fff", Color{255, 255, 255}, true},
		{"#1E40AF", Color{0x1e, 0x40, 0xaf}, true},
		{"rgb(10, 20, 30)", Color{10, 20, 30}, true},
		{"Navy", Color{0, 0, 128}, true},
		{"#12345", Color{}, false},
		{"rgb(300,0,0)", Color{}, false},
		{"", Color{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseColor(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseColor(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseInlineColor(t *testing.T) {
	doc, err := Parse(`<p>plain <span style="color:#ff0000">red</span></p>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	runs := doc.Blocks[0].Runs
	if runs[0].Color != nil {
		t.Fatalf("plain run has color %v", runs[0].Color)
	}
	if runs[1].Color == nil || *runs[1].Color != (Color{255, 0, 0}) {
		t.Fatalf("red run color = %v", runs[1].Color)
	}
}
