package vector

import (
	"github.com/lvillar/pdfmerge/layout"
)

// rgb is a fill, text or border color.
type rgb struct {
	R, G, B int
}

// cellStyle is the resolved appearance of one cell.
type cellStyle struct {
	fill   *rgb
	border rgb
}

var (
	headerFill  = rgb{241, 245, 249}
	borderColor = rgb{203, 213, 225}
)

// grid draws a table block as a grid of equal width columns. Header rows
// are repeated at the top of each page the table continues on.
type grid struct {
	w      *writer
	block  *layout.Block
	widths []float64
	lineH  float64
}

func newGrid(w *writer, b *layout.Block) *grid {
	return &grid{w: w, block: b, lineH: bodySize * lineSpacing}
}

func (g *grid) render() error {
	cols := g.block.Columns()
	if cols == 0 {
		return nil
	}
	g.widths = g.calculateWidths(cols)

	n := 0
	for n < len(g.block.Rows) && g.block.Rows[n].Header {
		n++
	}
	header := g.block.Rows[:n]

	pdf := g.w.pdf
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i, r := range g.block.Rows {
		rowH := g.rowHeight(r)
		// Leading header rows never start a page; they repeat after a break.
		if i >= len(header) && pdf.GetY()+rowH > pageH-bottom {
			pdf.AddPage()
			for _, hr := range header {
				g.renderRow(hr)
			}
		}
		g.renderRow(r)
	}
	return pdf.Error()
}

func (g *grid) calculateWidths(cols int) []float64 {
	pageW, _ := g.w.pdf.GetPageSize()
	left, _, right, _ := g.w.pdf.GetMargins()
	each := (pageW - left - right) / float64(cols)
	widths := make([]float64, cols)
	for i := range widths {
		widths[i] = each
	}
	return widths
}

func (g *grid) cellText(r layout.TableRow, i int) (string, layout.Run) {
	if i >= len(r.Cells) {
		return "", layout.Run{}
	}
	return g.w.tr(layout.PlainText(r.Cells[i])), firstText(r.Cells[i])
}

// rowHeight computes the height needed for a row based on cell content.
func (g *grid) rowHeight(r layout.TableRow) float64 {
	pdf := g.w.pdf
	maxH := g.lineH
	for i, width := range g.widths {
		text, style := g.cellText(r, i)
		g.w.setRunStyle(style, bodySize)
		contentW := max(width-2*cellPadding, 1)
		lines := pdf.SplitLines([]byte(text), contentW)
		maxH = max(maxH, float64(len(lines))*g.lineH)
	}
	return maxH + 2*cellPadding
}

func (g *grid) resolveStyle(r layout.TableRow) cellStyle {
	s := cellStyle{border: borderColor}
	if r.Header {
		s.fill = &headerFill
	}
	return s
}

func (g *grid) renderRow(r layout.TableRow) {
	pdf := g.w.pdf
	rowH := g.rowHeight(r)
	style := g.resolveStyle(r)
	left, _, _, _ := pdf.GetMargins()
	x, y := left, pdf.GetY()

	pdf.SetDrawColor(style.border.R, style.border.G, style.border.B)
	pdf.SetLineWidth(pxToPt)
	for i, width := range g.widths {
		if style.fill != nil {
			pdf.SetFillColor(style.fill.R, style.fill.G, style.fill.B)
			pdf.Rect(x, y, width, rowH, "F")
		}
		pdf.Rect(x, y, width, rowH, "D")

		text, run := g.cellText(r, i)
		g.w.setRunStyle(run, bodySize)
		pdf.SetXY(x+cellPadding, y+cellPadding)
		pdf.MultiCell(width-2*cellPadding, g.lineH, text, "", alignStr(g.block.Align), false)
		x += width
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(left, y+rowH)
}
