package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxDepth is the deepest element nesting Parse accepts.
const MaxDepth = 256

// ErrTooDeep is returned for markup nested deeper than MaxDepth.
var ErrTooDeep = errors.New("layout: markup nested too deeply")

// style is the inherited inline and block state while walking the tree.
type style struct {
	bold, italic, mono, pre bool
	color                   *Color
	align                   Align
}

type parser struct {
	doc   *Document
	runs  []Run
	align Align
}

// Parse reads resolved template markup into a Document. Markup is parsed as
// the content of a <body> element, so fragments and full pages both work.
func Parse(markup string) (*Document, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("layout: parsing markup: %w", err)
	}

	p := &parser{doc: &Document{}}
	for _, n := range nodes {
		if err := p.walk(n, style{}, 0); err != nil {
			return nil, err
		}
	}
	p.flush()
	return p.doc, nil
}

func (p *parser) walk(n *html.Node, st style, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}

	switch n.Type {
	case html.TextNode:
		p.runs = appendText(p.runs, n.Data, st)
		return nil
	case html.DocumentNode:
		return p.walkChildren(n, st, depth)
	case html.ElementNode:
	default:
		return nil
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Title, atom.Template, atom.Noscript:
		return nil
	case atom.Br:
		p.runs = append(p.runs, Run{Break: true})
		return nil
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		p.flush()
		st = applyStyle(n, st)
		st.bold = true
		runs, err := collect(n, st, depth)
		if err != nil {
			return err
		}
		runs = trimRuns(runs)
		if len(runs) > 0 {
			level := int(n.Data[1] - '0')
			p.doc.Blocks = append(p.doc.Blocks, Block{Kind: Heading, Level: level, Runs: runs, Align: st.align})
		}
		return nil
	case atom.Ul, atom.Ol:
		p.flush()
		return p.list(n, applyStyle(n, st), depth)
	case atom.Hr:
		p.flush()
		p.doc.Blocks = append(p.doc.Blocks, Block{Kind: Rule, Align: st.align})
		return nil
	case atom.Img:
		p.flush()
		st = applyStyle(n, st)
		w, h := dimensions(n)
		p.doc.Blocks = append(p.doc.Blocks, Block{
			Kind:   Image,
			Align:  st.align,
			Src:    attr(n, "src"),
			Alt:    attr(n, "alt"),
			Width:  w,
			Height: h,
		})
		return nil
	case atom.Table:
		p.flush()
		return p.table(n, applyStyle(n, st), depth)
	case atom.Pre:
		p.flush()
		st = applyStyle(n, st)
		st.pre, st.mono = true, true
		outer := p.align
		p.align = st.align
		if err := p.walkChildren(n, st, depth); err != nil {
			return err
		}
		p.flush()
		p.align = outer
		return nil
	case atom.B, atom.Strong:
		st.bold = true
	case atom.I, atom.Em, atom.Cite, atom.Var:
		st.italic = true
	case atom.Code, atom.Kbd, atom.Samp:
		st.mono = true
	}

	if n.DataAtom == 0 && n.Data == "barcode" {
		p.flush()
		p.doc.Blocks = append(p.doc.Blocks, barcodeBlock(n, applyStyle(n, st)))
		if attr(n, "value") == "" {
			return nil
		}
		// A self-closed <barcode/> swallows the markup after it as children.
		return p.walkChildren(n, st, depth)
	}

	if isBlock(n.DataAtom) {
		p.flush()
		outer := p.align
		st = applyStyle(n, st)
		p.align = st.align
		if err := p.walkChildren(n, st, depth); err != nil {
			return err
		}
		p.flush()
		p.align = outer
		return nil
	}

	return p.walkChildren(n, applyStyle(n, st), depth)
}

func (p *parser) walkChildren(n *html.Node, st style, depth int) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := p.walk(c, st, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// flush turns pending inline runs into a paragraph block.
func (p *parser) flush() {
	runs := trimRuns(p.runs)
	p.runs = nil
	if len(runs) == 0 {
		return
	}
	p.doc.Blocks = append(p.doc.Blocks, Block{Kind: Paragraph, Runs: runs, Align: p.align})
}

func (p *parser) list(n *html.Node, st style, depth int) error {
	b := Block{Kind: List, Ordered: n.DataAtom == atom.Ol, Align: st.align}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		runs, err := collect(c, applyStyle(c, st), depth+1)
		if err != nil {
			return err
		}
		b.Items = append(b.Items, trimRuns(runs))
	}
	if len(b.Items) > 0 {
		p.doc.Blocks = append(p.doc.Blocks, b)
	}
	return nil
}

func (p *parser) table(n *html.Node, st style, depth int) error {
	b := Block{Kind: Table, Align: st.align}
	var visit func(n *html.Node, inHead bool, depth int) error
	visit = func(n *html.Node, inHead bool, depth int) error {
		if depth > MaxDepth {
			return ErrTooDeep
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead:
				if err := visit(c, true, depth+1); err != nil {
					return err
				}
			case atom.Tbody, atom.Tfoot:
				if err := visit(c, inHead, depth+1); err != nil {
					return err
				}
			case atom.Tr:
				row := TableRow{Header: inHead}
				allTH := true
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode || (cell.DataAtom != atom.Td && cell.DataAtom != atom.Th) {
						continue
					}
					cst := applyStyle(cell, st)
					if cell.DataAtom == atom.Th {
						cst.bold = true
					} else {
						allTH = false
					}
					runs, err := collect(cell, cst, depth+2)
					if err != nil {
						return err
					}
					row.Cells = append(row.Cells, trimRuns(runs))
				}
				if len(row.Cells) == 0 {
					continue
				}
				row.Header = row.Header || allTH
				b.Rows = append(b.Rows, row)
			}
		}
		return nil
	}
	if err := visit(n, false, depth+1); err != nil {
		return err
	}
	if len(b.Rows) > 0 {
		p.doc.Blocks = append(p.doc.Blocks, b)
	}
	return nil
}

// collect gathers the inline content of n. Nested blocks are separated by
// line breaks.
func collect(n *html.Node, st style, depth int) ([]Run, error) {
	var runs []Run
	var visit func(n *html.Node, st style, depth int) error
	visit = func(n *html.Node, st style, depth int) error {
		if depth > MaxDepth {
			return ErrTooDeep
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				runs = appendText(runs, c.Data, st)
				continue
			case html.ElementNode:
			default:
				continue
			}
			cst := applyStyle(c, st)
			switch c.DataAtom {
			case atom.Script, atom.Style:
				continue
			case atom.Br:
				runs = append(runs, Run{Break: true})
				continue
			case atom.B, atom.Strong:
				cst.bold = true
			case atom.I, atom.Em, atom.Cite, atom.Var:
				cst.italic = true
			case atom.Code, atom.Kbd, atom.Samp:
				cst.mono = true
			}
			block := isBlock(c.DataAtom) || c.DataAtom == atom.Li
			if block && len(runs) > 0 && !runs[len(runs)-1].Break {
				runs = append(runs, Run{Break: true})
			}
			if err := visit(c, cst, depth+1); err != nil {
				return err
			}
			if block && len(runs) > 0 && !runs[len(runs)-1].Break {
				runs = append(runs, Run{Break: true})
			}
		}
		return nil
	}
	err := visit(n, st, depth+1)
	return runs, err
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer,
		atom.Main, atom.Aside, atom.Nav, atom.Blockquote, atom.Address, atom.Figure,
		atom.Figcaption, atom.Center, atom.Body, atom.Html, atom.Li, atom.Dl, atom.Dt, atom.Dd,
		atom.Form, atom.Fieldset:
		return true
	}
	return false
}

// appendText adds text to runs, collapsing whitespace outside <pre>.
func appendText(runs []Run, text string, st style) []Run {
	if st.pre {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			if i > 0 {
				runs = append(runs, Run{Break: true})
			}
			if line != "" {
				runs = append(runs, newRun(line, st))
			}
		}
		return runs
	}

	text = collapseSpace(text)
	if text == "" {
		return runs
	}
	if text[0] == ' ' && (len(runs) == 0 || runs[len(runs)-1].Break || strings.HasSuffix(runs[len(runs)-1].Text, " ")) {
		text = text[1:]
		if text == "" {
			return runs
		}
	}
	return append(runs, newRun(text, st))
}

func newRun(text string, st style) Run {
	return Run{Text: text, Bold: st.bold, Italic: st.italic, Mono: st.mono, Color: st.color}
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

// trimRuns drops leading and trailing breaks and whitespace.
func trimRuns(runs []Run) []Run {
	for len(runs) > 0 {
		first := &runs[0]
		if first.Break {
			runs = runs[1:]
			continue
		}
		first.Text = strings.TrimLeft(first.Text, " ")
		if first.Text == "" {
			runs = runs[1:]
			continue
		}
		break
	}
	for len(runs) > 0 {
		last := &runs[len(runs)-1]
		if last.Break {
			runs = runs[:len(runs)-1]
			continue
		}
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text == "" {
			runs = runs[:len(runs)-1]
			continue
		}
		break
	}
	if len(runs) == 0 {
		return nil
	}
	return runs
}

func barcodeBlock(n *html.Node, st style) Block {
	value := attr(n, "value")
	if value == "" {
		value = strings.TrimSpace(textContent(n))
	}
	sym := strings.ToLower(attr(n, "type"))
	if sym == "" {
		sym = "qr"
	}
	w, h := dimensions(n)
	return Block{Kind: Barcode, Align: st.align, Symbology: sym, Value: value, Width: w, Height: h}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// applyStyle folds the element's align attribute and inline style into st.
func applyStyle(n *html.Node, st style) style {
	if a, ok := parseAlign(attr(n, "align")); ok {
		st.align = a
	}
	if c, ok := ParseColor(attr(n, "color")); ok {
		st.color = &c
	}
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(val))
		switch prop {
		case "text-align":
			if a, ok := parseAlign(val); ok {
				st.align = a
			}
		case "color":
			if c, ok := ParseColor(val); ok {
				st.color = &c
			}
		case "font-weight":
			st.bold = val == "bold" || val == "bolder" || val == "600" || val == "700" || val == "800" || val == "900"
		case "font-style":
			st.italic = val == "italic" || val == "oblique"
		case "font-family":
			st.mono = strings.Contains(val, "mono") || strings.Contains(val, "courier")
		}
	}
	return st
}

func parseAlign(s string) (Align, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "start", "justify":
		return AlignLeft, true
	case "center", "middle":
		return AlignCenter, true
	case "right", "end":
		return AlignRight, true
	}
	return AlignLeft, false
}

// dimensions reads width and height in CSS pixels from attributes or style.
func dimensions(n *html.Node) (w, h float64) {
	w = parsePx(attr(n, "width"))
	h = parsePx(attr(n, "height"))
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(prop)) {
		case "width":
			if v := parsePx(val); v > 0 {
				w = v
			}
		case "height":
			if v := parsePx(val); v > 0 {
				h = v
			}
		}
	}
	return w, h
}

func parsePx(s string) float64 {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "px")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

var namedColors = map[string]Color{
	"black":  {0, 0, 0},
	"white":  {255, 255, 255},
	"red":    {255, 0, 0},
	"green":  {0, 128, 0},
	"blue":   {0, 0, 255},
	"gray":   {128, 128, 128},
	"grey":   {128, 128, 128},
	"silver": {192, 192, 192},
	"navy":   {0, 0, 128},
	"maroon": {128, 0, 0},
	"orange": {255, 165, 0},
	"purple": {128, 0, 128},
	"teal":   {0, 128, 128},
}

// ParseColor understands #rgb, #rrggbb, rgb(r, g, b) and a few color names.
func ParseColor(s string) (Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Color{}, false
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return Color{}, false
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, false
		}
		return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
	}
	if inner, ok := strings.CutPrefix(s, "rgb("); ok {
		inner = strings.TrimSuffix(inner, ")")
		parts := strings.Split(inner, ",")
		if len(parts) != 3 {
			return Color{}, false
		}
		var c [3]uint8
		for i, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || v < 0 || v > 255 {
				return Color{}, false
			}
			c[i] = uint8(v)
		}
		return Color{R: c[0], G: c[1], B: c[2]}, true
	}
	return Color{}, false
}
