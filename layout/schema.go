// Package layout turns resolved template markup into a flat sequence of
// blocks that both the bitmap rasterizer and the vector renderer can draw.
//
// The supported markup is the subset document templates use in practice:
//
//	<h1>..<h6>              headings
//	<p>, <div>, <section>   paragraphs (any unknown block flows as a paragraph)
//	<b> <strong> <i> <em>   inline emphasis, <code> for monospace
//	<span style="color">    inline color
//	<br>                    line break
//	<ul>, <ol>, <li>        lists
//	<hr>                    horizontal rule
//	<img src width height>  images (http, https, data: and local files)
//	<table>                 tables, <th> or <thead> rows render as headers
//	<barcode type value>    qr, code128 or pdf417 symbols
//
// Alignment comes from the align attribute or the text-align style and is
// inherited by nested blocks.
package layout

// Kind identifies the type of a Block.
type Kind int

const (
	Paragraph Kind = iota
	Heading
	List
	Rule
	Image
	Table
	Barcode
)

func (k Kind) String() string {
	switch k {
	case Paragraph:
		return "paragraph"
	case Heading:
		return "heading"
	case List:
		return "list"
	case Rule:
		return "rule"
	case Image:
		return "image"
	case Table:
		return "table"
	case Barcode:
		return "barcode"
	}
	return "unknown"
}

// Align is horizontal text alignment.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Color is an RGB color.
type Color struct {
	R, G, B uint8
}

// Black is the default text color.
var Black = Color{}

// Document is the parsed form of one resolved template.
type Document struct {
	Blocks []Block
}

// Block is one vertically stacked element. Kind determines which other
// fields are relevant.
type Block struct {
	Kind  Kind
	Align Align

	// Paragraph, Heading
	Runs  []Run
	Level int // heading level 1-6

	// List
	Items   [][]Run
	Ordered bool

	// Image, Barcode. Width and Height are CSS pixels, 0 means natural size.
	Src    string
	Alt    string
	Width  float64
	Height float64

	// Barcode
	Symbology string // qr, code128, pdf417
	Value     string

	// Table
	Rows []TableRow
}

// Run is a span of text sharing one style. A Run with Break set ends the
// current line and carries no text.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
	Mono   bool
	Color  *Color
	Break  bool
}

// TableRow is one row of a table block.
type TableRow struct {
	Header bool
	Cells  [][]Run
}

// PlainText concatenates the text of runs, turning breaks into newlines.
func PlainText(runs []Run) string {
	n := 0
	for _, r := range runs {
		n += len(r.Text) + 1
	}
	b := make([]byte, 0, n)
	for _, r := range runs {
		if r.Break {
			b = append(b, '\n')
			continue
		}
		b = append(b, r.Text...)
	}
	return string(b)
}

// Columns returns the widest cell count across the table's rows.
func (b *Block) Columns() int {
	n := 0
	for _, r := range b.Rows {
		if len(r.Cells) > n {
			n = len(r.Cells)
		}
	}
	return n
}
