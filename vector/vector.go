// Package vector renders resolved template markup straight to PDF drawing
// operators instead of a bitmap. Text stays selectable, the output is much
// smaller, and content that is taller than a page flows onto new pages.
//
// Text uses the PDF core fonts (Helvetica, and Courier for monospace) with
// the cp1252 code page, so characters outside it are not representable.
package vector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"github.com/boombuler/barcode/qr"
	"github.com/phpdave11/gofpdf"
	"github.com/phpdave11/gofpdf/contrib/barcode"

	"github.com/lvillar/pdfmerge/layout"
	"github.com/lvillar/pdfmerge/raster"
)

// Page geometry in points. The margin matches the bitmap renderer's padding.
const (
	pxToPt      = 0.75
	margin      = raster.Padding * pxToPt
	bodySize    = 16 * pxToPt
	lineSpacing = 1.2
	paraSpacing = 16 * pxToPt
	ruleSpacing = 8 * pxToPt
	listIndent  = 40 * pxToPt
	markerGap   = 8 * pxToPt
	cellPadding = 6 * pxToPt
	captionSize = 9.0
)

var headingSizes = [...]float64{24, 18, 14.04, 12, 9.96, 8.04}

// Options configures a Renderer.
type Options struct {
	// Strict turns unavailable images and invalid barcodes into errors.
	Strict bool
	// Fetcher loads images. Nil serves data: and remote URLs only.
	Fetcher *raster.Fetcher
	// ResourceTimeout bounds each image fetch. Zero means
	// raster.DefaultResourceTimeout.
	ResourceTimeout time.Duration
	// CreationDate fixes the document date, which makes output reproducible.
	CreationDate time.Time
	Title        string
}

// Renderer turns markup into paginated vector PDFs. It is safe for
// concurrent use.
type Renderer struct {
	opts Options
}

// New returns a Renderer.
func New(opts Options) *Renderer {
	if opts.Fetcher == nil {
		opts.Fetcher = &raster.Fetcher{}
	}
	if opts.ResourceTimeout <= 0 {
		opts.ResourceTimeout = raster.DefaultResourceTimeout
	}
	return &Renderer{opts: opts}
}

// Render parses markup and returns the PDF.
func (r *Renderer) Render(ctx context.Context, markup string) ([]byte, error) {
	doc, err := layout.Parse(markup)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := r.Write(ctx, &buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders doc and writes the PDF to w.
func (r *Renderer) Write(ctx context.Context, w io.Writer, doc *layout.Document) error {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetProducer("pdfmerge", false)
	if r.opts.Title != "" {
		pdf.SetTitle(r.opts.Title, true)
	}
	if !r.opts.CreationDate.IsZero() {
		pdf.SetCreationDate(r.opts.CreationDate)
		pdf.SetCatalogSort(true)
	}
	pdf.AddPage()

	wr := &writer{
		ctx:  ctx,
		opts: &r.opts,
		pdf:  pdf,
		tr:   pdf.UnicodeTranslatorFromDescriptor(""),
	}
	for i := range doc.Blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wr.block(&doc.Blocks[i]); err != nil {
			return err
		}
		if pdf.Err() {
			return fmt.Errorf("vector: %w", pdf.Error())
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("vector: writing PDF: %w", err)
	}
	return nil
}

// writer holds the state of one rendering.
type writer struct {
	ctx  context.Context
	opts *Options
	pdf  *gofpdf.Fpdf
	tr   func(string) string

	spacing float64 // bottom spacing of the previous block, not yet applied
	started bool
	images  int
}

func (w *writer) block(b *layout.Block) error {
	switch b.Kind {
	case layout.Paragraph:
		w.open(paraSpacing)
		w.text(b.Runs, bodySize, b.Align)
		w.close(paraSpacing)
	case layout.Heading:
		lvl := min(max(b.Level, 1), 6) - 1
		size := headingSizes[lvl]
		w.open(size * 0.67)
		w.text(b.Runs, size, b.Align)
		w.close(size * 0.67)
	case layout.List:
		w.open(paraSpacing)
		w.list(b)
		w.close(paraSpacing)
	case layout.Rule:
		w.open(ruleSpacing)
		left, _, right, _ := w.pdf.GetMargins()
		pageW, _ := w.pdf.GetPageSize()
		y := w.pdf.GetY()
		w.pdf.SetDrawColor(209, 213, 219)
		w.pdf.SetLineWidth(pxToPt)
		w.pdf.Line(left, y, pageW-right, y)
		w.pdf.SetDrawColor(0, 0, 0)
		w.pdf.SetY(y + pxToPt)
		w.close(ruleSpacing)
	case layout.Image:
		return w.image(b)
	case layout.Barcode:
		return w.barcode(b)
	case layout.Table:
		w.open(paraSpacing)
		if err := newGrid(w, b).render(); err != nil {
			return err
		}
		w.close(paraSpacing)
	}
	return nil
}

// open applies the larger of the pending spacing and top. Spacing is
// dropped at the top of the document.
func (w *writer) open(top float64) {
	gap := max(w.spacing, top)
	if !w.started {
		gap = top
		w.started = true
	}
	w.pdf.SetY(w.pdf.GetY() + gap)
	w.spacing = 0
}

func (w *writer) close(bottom float64) {
	w.spacing = bottom
}

func fontStyle(r layout.Run) (family, style string) {
	family = "Helvetica"
	if r.Mono {
		family = "Courier"
	}
	if r.Bold {
		style += "B"
	}
	if r.Italic {
		style += "I"
	}
	return family, style
}

func (w *writer) setRunStyle(r layout.Run, size float64) {
	family, style := fontStyle(r)
	w.pdf.SetFont(family, style, size)
	if r.Color != nil {
		w.pdf.SetTextColor(int(r.Color.R), int(r.Color.G), int(r.Color.B))
	} else {
		w.pdf.SetTextColor(0, 0, 0)
	}
}

// text flows runs from the left margin. Mixed styles are only kept for left
// aligned text; centered and right aligned blocks use the first run's style.
func (w *writer) text(runs []layout.Run, size float64, a layout.Align) {
	if len(runs) == 0 {
		return
	}
	lineH := size * lineSpacing
	left, _, _, _ := w.pdf.GetMargins()
	w.pdf.SetX(left)

	if a != layout.AlignLeft {
		w.setRunStyle(firstText(runs), size)
		w.pdf.MultiCell(0, lineH, w.tr(layout.PlainText(runs)), "", alignStr(a), false)
		w.pdf.SetTextColor(0, 0, 0)
		return
	}
	for _, r := range runs {
		if r.Break {
			w.pdf.Ln(lineH)
			continue
		}
		w.setRunStyle(r, size)
		w.pdf.Write(lineH, w.tr(r.Text))
	}
	w.pdf.Ln(lineH)
	w.pdf.SetTextColor(0, 0, 0)
}

func firstText(runs []layout.Run) layout.Run {
	for _, r := range runs {
		if !r.Break {
			return r
		}
	}
	return layout.Run{}
}

func alignStr(a layout.Align) string {
	switch a {
	case layout.AlignCenter:
		return "C"
	case layout.AlignRight:
		return "R"
	}
	return "L"
}

func (w *writer) list(b *layout.Block) {
	left, top, right, _ := w.pdf.GetMargins()
	lineH := bodySize * lineSpacing
	w.pdf.SetLeftMargin(left + listIndent)
	defer w.pdf.SetMargins(left, top, right)

	for i, item := range b.Items {
		label := "•"
		if b.Ordered {
			label = fmt.Sprintf("%d.", i+1)
		}
		w.pdf.SetFont("Helvetica", "", bodySize)
		w.pdf.SetTextColor(0, 0, 0)
		y := w.pdf.GetY()
		w.pdf.SetXY(left, y)
		w.pdf.CellFormat(listIndent-markerGap, lineH, w.tr(label), "", 0, "R", false, 0, "")
		w.pdf.SetXY(left+listIndent, y)
		if len(item) == 0 {
			w.pdf.Ln(lineH)
			continue
		}
		w.text(item, bodySize, b.Align)
	}
}

// place reserves a box of w x h points at the current position, starting a
// new page when it does not fit, and returns its top left corner.
func (w *writer) place(a layout.Align, bw, bh float64) (x, y float64) {
	left, _, right, bottom := w.pdf.GetMargins()
	pageW, pageH := w.pdf.GetPageSize()
	y = w.pdf.GetY()
	if y+bh > pageH-bottom && y > margin {
		w.pdf.AddPage()
		y = w.pdf.GetY()
	}
	x = left
	switch a {
	case layout.AlignCenter:
		x = left + (pageW-left-right-bw)/2
	case layout.AlignRight:
		x = pageW - right - bw
	}
	w.pdf.SetY(y + bh)
	return x, y
}

// boxSize converts CSS pixels to points, keeping within the content width.
func (w *writer) boxSize(bw, bh float64) (float64, float64) {
	left, _, right, _ := w.pdf.GetMargins()
	pageW, _ := w.pdf.GetPageSize()
	bw, bh = bw*pxToPt, bh*pxToPt
	if limit := pageW - left - right; bw > limit {
		bh = bh * limit / bw
		bw = limit
	}
	return bw, bh
}

func (w *writer) image(b *layout.Block) error {
	ctx, cancel := context.WithTimeout(w.ctx, w.opts.ResourceTimeout)
	img, err := w.opts.Fetcher.Fetch(ctx, b.Src)
	cancel()
	if err != nil {
		if cerr := w.ctx.Err(); cerr != nil {
			return cerr
		}
		if w.opts.Strict {
			return err
		}
		w.placeholder(b, b.Width, b.Height, b.Alt)
		return nil
	}

	bw, bh := b.Width, b.Height
	nat := img.Bounds()
	if nat.Dx() == 0 || nat.Dy() == 0 {
		return nil
	}
	switch {
	case bw > 0 && bh > 0:
	case bw > 0:
		bh = bw * float64(nat.Dy()) / float64(nat.Dx())
	case bh > 0:
		bw = bh * float64(nat.Dx()) / float64(nat.Dy())
	default:
		bw, bh = float64(nat.Dx()), float64(nat.Dy())
	}
	bw, bh = w.boxSize(bw, bh)

	name, err := w.register(img)
	if err != nil {
		return err
	}
	w.open(0)
	x, y := w.place(b.Align, bw, bh)
	w.pdf.ImageOptions(name, x, y, bw, bh, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	w.close(0)
	return nil
}

func (w *writer) register(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("vector: encoding image: %w", err)
	}
	w.images++
	name := fmt.Sprintf("img%d", w.images)
	w.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
	return name, nil
}

func (w *writer) barcode(b *layout.Block) error {
	cw, ch := raster.BarcodeSize(b.Symbology, b.Width, b.Height)
	// Validate first: the contrib registrars report failures on the document
	// itself, which would abort the whole render.
	if _, err := raster.EncodeBarcode(b.Symbology, b.Value); err != nil {
		if w.opts.Strict {
			return err
		}
		w.placeholder(b, cw, ch, b.Value)
		return nil
	}

	var key string
	switch b.Symbology {
	case "code128":
		key = barcode.RegisterCode128(w.pdf, b.Value)
	case "pdf417":
		key = barcode.RegisterPdf417(w.pdf, b.Value, 6, 2)
	default:
		key = barcode.RegisterQR(w.pdf, b.Value, qr.M, qr.Auto)
	}
	bw, bh := w.boxSize(cw, ch)
	w.open(0)
	x, y := w.place(b.Align, bw, bh)
	barcode.Barcode(w.pdf, key, x, y, bw, bh, false)
	w.close(0)
	return nil
}

// placeholder stands in for an image or barcode that could not be drawn.
func (w *writer) placeholder(b *layout.Block, bw, bh float64, label string) {
	if bw <= 0 && bh <= 0 {
		if label == "" {
			return
		}
		grey := layout.Color{R: 0x6b, G: 0x72, B: 0x80}
		w.open(0)
		w.text([]layout.Run{{Text: label, Color: &grey}}, bodySize, b.Align)
		w.close(0)
		return
	}
	if bw <= 0 {
		bw = bh
	}
	if bh <= 0 {
		bh = bw
	}
	bw, bh = w.boxSize(bw, bh)

	w.open(0)
	x, y := w.place(b.Align, bw, bh)
	w.pdf.SetFillColor(229, 231, 235)
	w.pdf.Rect(x, y, bw, bh, "F")
	if label != "" {
		w.pdf.SetFont("Helvetica", "", captionSize)
		w.pdf.SetTextColor(0x6b, 0x72, 0x80)
		w.pdf.SetXY(x, y)
		w.pdf.CellFormat(bw, bh, w.tr(label), "", 0, "CM", false, 0, "")
		w.pdf.SetTextColor(0, 0, 0)
	}
	w.pdf.SetXY(x, y+bh)
	w.close(0)
}
