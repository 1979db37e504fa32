package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/lvillar/pdfmerge/layout"
)

// Options configures a Text rasterizer.
type Options struct {
	// Strict turns unavailable images and invalid barcodes into errors.
	// Otherwise they are drawn as placeholders.
	Strict bool
	// MaxHeight caps the device height of a bitmap. Zero means DefaultMaxHeight.
	MaxHeight int
	// ResourceTimeout bounds each image fetch. Zero means DefaultResourceTimeout.
	ResourceTimeout time.Duration
	// PoolSize is the number of renders that may run at once. Zero means
	// GOMAXPROCS.
	PoolSize int
	// Fetcher loads images. Nil serves data: and remote URLs only.
	Fetcher *Fetcher
}

// Text is a pure Go Rasterizer. It understands the markup subset described
// in the layout package and lays it out the way a browser would with default
// styles.
type Text struct {
	opts  Options
	pool  *Pool
	fetch *Fetcher
}

// NewText returns a Text rasterizer.
func NewText(opts Options) *Text {
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DefaultMaxHeight
	}
	if opts.ResourceTimeout <= 0 {
		opts.ResourceTimeout = DefaultResourceTimeout
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = runtime.GOMAXPROCS(0)
	}
	f := opts.Fetcher
	if f == nil {
		f = &Fetcher{}
	}
	return &Text{opts: opts, pool: NewPool(opts.PoolSize), fetch: f}
}

// Pool returns the slot pool bounding concurrent renders.
func (t *Text) Pool() *Pool { return t.pool }

// Rasterize lays out markup and paints it onto a new bitmap.
func (t *Text) Rasterize(ctx context.Context, markup string) (*Bitmap, error) {
	doc, err := layout.Parse(markup)
	if err != nil {
		return nil, err
	}
	var bm *Bitmap
	err = t.pool.Do(ctx, func(s *Surface) error {
		e := &engine{
			ctx:   ctx,
			opts:  &t.opts,
			fetch: t.fetch,
			faces: s.fontFaces(),
			y:     Padding * px,
		}
		if err := e.document(doc); err != nil {
			return err
		}
		var err error
		bm, err = e.paint()
		return err
	})
	if err != nil {
		return nil, err
	}
	return bm, nil
}

// Layout metrics. Sizes are CSS pixels unless they end in device units.
const (
	px           = DeviceScale
	contentLeft  = Padding * px
	contentWidth = (PageWidth - 2*Padding) * px

	bodySize     = 16.0
	lineSpacing  = 1.2
	paraMargin   = 16 * px
	listIndent   = 40 * px
	markerGap    = 8 * px
	ruleMargin   = 8 * px
	cellPadding  = 6 * px
	borderWidth  = 1 * px
	captionSize  = 12.0
	captionInset = 8 * px
)

var (
	headingSizes   = [...]float64{32, 24, 18.72, 16, 13.28, 10.72}
	headingMargins = [...]float64{0.67, 0.83, 1, 1.33, 1.67, 2.33}

	ruleColor       = color.RGBA{0xd1, 0xd5, 0xdb, 0xff}
	borderColor     = color.RGBA{0xcb, 0xd5, 0xe1, 0xff}
	headerFill      = color.RGBA{0xf1, 0xf5, 0xf9, 0xff}
	placeholderFill = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	muted           = layout.Color{R: 0x6b, G: 0x72, B: 0x80}
)

type op interface {
	paint(dst *image.RGBA)
}

type fillOp struct {
	r image.Rectangle
	c color.RGBA
}

func (o fillOp) paint(dst *image.RGBA) {
	draw.Draw(dst, o.r, image.NewUniform(o.c), image.Point{}, draw.Src)
}

type textOp struct {
	face font.Face
	dot  fixed.Point26_6
	text string
	c    color.RGBA
}

func (o textOp) paint(dst *image.RGBA) {
	d := font.Drawer{Dst: dst, Src: image.NewUniform(o.c), Face: o.face, Dot: o.dot}
	d.DrawString(o.text)
}

type imageOp struct {
	src image.Image
	r   image.Rectangle
	// Barcodes scale without interpolation to keep module edges sharp.
	sharp bool
}

func (o imageOp) paint(dst *image.RGBA) {
	var s draw.Scaler = draw.CatmullRom
	if o.sharp {
		s = draw.NearestNeighbor
	}
	s.Scale(dst, o.r, o.src, o.src.Bounds(), draw.Over, nil)
}

// engine lays out one document in device pixels and records paint ops.
type engine struct {
	ctx   context.Context
	opts  *Options
	fetch *Fetcher
	faces *faceCache

	ops    []op
	y      int
	margin int // bottom margin of the previous block, not yet applied
}

func (e *engine) document(doc *layout.Document) error {
	for i := range doc.Blocks {
		if err := e.ctx.Err(); err != nil {
			return err
		}
		b := &doc.Blocks[i]
		var err error
		switch b.Kind {
		case layout.Paragraph:
			err = e.paragraph(b.Runs, bodySize, paraMargin, b.Align)
		case layout.Heading:
			lvl := min(max(b.Level, 1), 6) - 1
			size := headingSizes[lvl]
			margin := int(math.Round(headingMargins[lvl] * size * px))
			err = e.paragraph(b.Runs, size, margin, b.Align)
		case layout.List:
			err = e.list(b)
		case layout.Rule:
			e.open(ruleMargin)
			e.fill(image.Rect(contentLeft, e.y, contentLeft+contentWidth, e.y+borderWidth), ruleColor)
			e.y += borderWidth
			e.close(ruleMargin)
		case layout.Image:
			err = e.image(b)
		case layout.Barcode:
			err = e.barcode(b)
		case layout.Table:
			err = e.table(b)
		}
		if err != nil {
			return err
		}
		if e.y > e.opts.MaxHeight {
			return fmt.Errorf("%w: more than %d device pixels", ErrTooTall, e.opts.MaxHeight)
		}
	}
	return nil
}

func (e *engine) paint() (*Bitmap, error) {
	h := e.y + e.margin + Padding*px
	if h > e.opts.MaxHeight {
		return nil, fmt.Errorf("%w: %d device pixels, limit %d", ErrTooTall, h, e.opts.MaxHeight)
	}
	bm := NewBitmap(PageWidth, (h+px-1)/px)
	for _, o := range e.ops {
		o.paint(bm.Image)
	}
	return bm, nil
}

// open starts a block with the given top margin, collapsing it with the
// previous block's bottom margin.
func (e *engine) open(top int) {
	e.y += max(e.margin, top)
	e.margin = 0
}

func (e *engine) close(bottom int) {
	e.margin = bottom
}

func (e *engine) fill(r image.Rectangle, c color.RGBA) {
	e.ops = append(e.ops, fillOp{r: r, c: c})
}

func (e *engine) alignX(a layout.Align, w int) int {
	switch a {
	case layout.AlignCenter:
		return contentLeft + (contentWidth-w)/2
	case layout.AlignRight:
		return contentLeft + contentWidth - w
	}
	return contentLeft
}

func (e *engine) paragraph(runs []layout.Run, size float64, margin int, a layout.Align) error {
	tb, err := e.setText(runs, size, fixed.I(contentWidth))
	if err != nil {
		return err
	}
	e.open(margin)
	e.drawText(tb, contentLeft, e.y, fixed.I(contentWidth), a)
	e.y += tb.height()
	e.close(margin)
	return nil
}

func (e *engine) list(b *layout.Block) error {
	marker, err := e.faces.face(fontStyle{}, bodySize*px)
	if err != nil {
		return err
	}
	e.open(paraMargin)
	width := fixed.I(contentWidth - listIndent)
	for i, item := range b.Items {
		tb, err := e.setText(item, bodySize, width)
		if err != nil {
			return err
		}
		label := "•"
		if b.Ordered {
			label = strconv.Itoa(i+1) + "."
		}
		x := fixed.I(contentLeft+listIndent-markerGap) - font.MeasureString(marker, label)
		e.ops = append(e.ops, textOp{
			face: marker,
			dot:  fixed.Point26_6{X: x, Y: fixed.I(e.y) + tb.base},
			text: label,
			c:    rgba(nil),
		})
		e.drawText(tb, contentLeft+listIndent, e.y, width, b.Align)
		e.y += max(tb.height(), tb.lineH)
	}
	e.close(paraMargin)
	return nil
}

func (e *engine) image(b *layout.Block) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.opts.ResourceTimeout)
	img, err := e.fetch.Fetch(ctx, b.Src)
	cancel()
	if err != nil {
		if cerr := e.ctx.Err(); cerr != nil {
			return cerr
		}
		if e.opts.Strict {
			return err
		}
		return e.placeholder(b, b.Width, b.Height, b.Alt)
	}

	w, h := imageSize(b.Width, b.Height, img.Bounds())
	if w == 0 || h == 0 {
		return nil
	}
	e.open(0)
	x := e.alignX(b.Align, w)
	e.ops = append(e.ops, imageOp{src: img, r: image.Rect(x, e.y, x+w, e.y+h)})
	e.y += h
	e.close(0)
	return nil
}

func (e *engine) barcode(b *layout.Block) error {
	w, h := BarcodeSize(b.Symbology, b.Width, b.Height)
	bc, err := EncodeBarcode(b.Symbology, b.Value)
	if err != nil {
		if e.opts.Strict {
			return err
		}
		return e.placeholder(b, w, h, b.Value)
	}
	dw, dh := deviceSize(w, h)
	e.open(0)
	x := e.alignX(b.Align, dw)
	e.ops = append(e.ops, imageOp{src: bc, r: image.Rect(x, e.y, x+dw, e.y+dh), sharp: true})
	e.y += dh
	e.close(0)
	return nil
}

// placeholder stands in for an image or barcode that could not be drawn.
// Without a size it falls back to the label as muted text.
func (e *engine) placeholder(b *layout.Block, w, h float64, label string) error {
	if w <= 0 && h <= 0 {
		if label == "" {
			return nil
		}
		return e.paragraph([]layout.Run{{Text: label, Color: &muted}}, bodySize, 0, b.Align)
	}
	if w <= 0 {
		w = h
	}
	if h <= 0 {
		h = w
	}
	dw, dh := deviceSize(w, h)

	e.open(0)
	x := e.alignX(b.Align, dw)
	e.fill(image.Rect(x, e.y, x+dw, e.y+dh), placeholderFill)
	if label != "" && dw > 2*captionInset {
		inner := fixed.I(dw - 2*captionInset)
		tb, err := e.setText([]layout.Run{{Text: label, Color: &muted}}, captionSize, inner)
		if err != nil {
			return err
		}
		if th := tb.height(); th <= dh {
			e.drawText(tb, x+captionInset, e.y+(dh-th)/2, inner, layout.AlignCenter)
		}
	}
	e.y += dh
	e.close(0)
	return nil
}

func (e *engine) table(b *layout.Block) error {
	cols := b.Columns()
	if cols == 0 {
		return nil
	}
	colW := contentWidth / cols
	inner := fixed.I(colW - 2*cellPadding)
	right := contentLeft + colW*cols

	e.open(paraMargin)
	top := e.y
	for _, row := range b.Rows {
		if err := e.ctx.Err(); err != nil {
			return err
		}
		cells := make([]*textBlock, cols)
		rowH := 0
		for i := range cells {
			var runs []layout.Run
			if i < len(row.Cells) {
				runs = row.Cells[i]
			}
			tb, err := e.setText(runs, bodySize, inner)
			if err != nil {
				return err
			}
			cells[i] = tb
			rowH = max(rowH, tb.height(), tb.lineH)
		}
		rowH += 2 * cellPadding

		if row.Header {
			e.fill(image.Rect(contentLeft, e.y, right, e.y+rowH), headerFill)
		}
		for i, tb := range cells {
			x := contentLeft + i*colW
			e.drawText(tb, x+cellPadding, e.y+cellPadding, inner, b.Align)
			e.fill(image.Rect(x, e.y, x+colW, e.y+borderWidth), borderColor)
			e.fill(image.Rect(x, e.y, x+borderWidth, e.y+rowH), borderColor)
		}
		e.y += rowH
	}
	e.fill(image.Rect(right-borderWidth, top, right, e.y), borderColor)
	e.fill(image.Rect(contentLeft, e.y-borderWidth, right, e.y), borderColor)
	e.close(paraMargin)
	return nil
}

// imageSize returns the device size of an image drawn at the given CSS size.
// Missing dimensions follow the natural aspect ratio, and images never
// overflow the content box.
func imageSize(w, h float64, nat image.Rectangle) (int, int) {
	nw, nh := float64(nat.Dx()), float64(nat.Dy())
	if nw == 0 || nh == 0 {
		return 0, 0
	}
	switch {
	case w > 0 && h > 0:
	case w > 0:
		h = w * nh / nw
	case h > 0:
		w = h * nw / nh
	default:
		w, h = nw, nh
	}
	return deviceSize(w, h)
}

func deviceSize(w, h float64) (int, int) {
	if limit := float64(PageWidth - 2*Padding); w > limit {
		h = h * limit / w
		w = limit
	}
	return int(math.Round(w * px)), int(math.Round(h * px))
}

func rgba(c *layout.Color) color.RGBA {
	if c == nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// Text setting.

type piece struct {
	text  string
	face  font.Face
	c     color.RGBA
	width fixed.Int26_6
	space bool
	brk   bool
}

func (p piece) sub(text string) piece {
	p.text = text
	p.width = font.MeasureString(p.face, text)
	return p
}

type line struct {
	pieces []piece
	width  fixed.Int26_6
	text   bool
}

func (l *line) add(p piece) {
	l.pieces = append(l.pieces, p)
	l.width += p.width
	if !p.space {
		l.text = true
	}
}

// textBlock is a run of wrapped lines ready to be placed.
type textBlock struct {
	lines []line
	lineH int
	base  fixed.Int26_6 // baseline offset from the top of a line
}

func (tb *textBlock) height() int { return len(tb.lines) * tb.lineH }

func (e *engine) setText(runs []layout.Run, size float64, width fixed.Int26_6) (*textBlock, error) {
	base, err := e.faces.face(fontStyle{}, size*px)
	if err != nil {
		return nil, err
	}
	pieces, err := e.pieces(runs, size)
	if err != nil {
		return nil, err
	}
	m := base.Metrics()
	lineH := int(math.Round(size * px * lineSpacing))
	half := (fixed.I(lineH) - m.Ascent - m.Descent) / 2
	return &textBlock{lines: wrap(pieces, width), lineH: lineH, base: half + m.Ascent}, nil
}

func (e *engine) pieces(runs []layout.Run, size float64) ([]piece, error) {
	var out []piece
	for _, r := range runs {
		if r.Break {
			out = append(out, piece{brk: true})
			continue
		}
		face, err := e.faces.face(fontStyle{bold: r.Bold, italic: r.Italic, mono: r.Mono}, size*px)
		if err != nil {
			return nil, err
		}
		c := rgba(r.Color)
		space := piece{text: " ", face: face, c: c, space: true, width: font.MeasureString(face, " ")}
		for i, word := range strings.Split(strings.ReplaceAll(r.Text, "\t", "    "), " ") {
			if i > 0 {
				out = append(out, space)
			}
			if word != "" {
				out = append(out, piece{face: face, c: c}.sub(word))
			}
		}
	}
	return out, nil
}

// wrap breaks pieces into lines no wider than width. Words longer than a
// line are split between characters. Spaces at a soft wrap are dropped.
func wrap(pieces []piece, width fixed.Int26_6) []line {
	var (
		lines []line
		cur   line
		soft  bool
	)
	flush := func(wrapped bool) {
		for n := len(cur.pieces); n > 0 && cur.pieces[n-1].space; n-- {
			cur.width -= cur.pieces[n-1].width
			cur.pieces = cur.pieces[:n-1]
		}
		lines = append(lines, cur)
		cur = line{}
		soft = wrapped
	}

	for _, p := range pieces {
		if p.brk {
			flush(false)
			continue
		}
		if p.space {
			if len(cur.pieces) == 0 && soft {
				continue
			}
			cur.add(p)
			continue
		}
		for cur.width+p.width > width {
			if cur.text {
				flush(true)
				continue
			}
			n := fit(p, width-cur.width)
			if n >= len(p.text) {
				break
			}
			cur.add(p.sub(p.text[:n]))
			flush(true)
			p = p.sub(p.text[n:])
		}
		cur.add(p)
	}
	if len(cur.pieces) > 0 {
		flush(false)
	}
	return lines
}

// fit returns how many bytes of p's text fit in avail, at least one rune.
func fit(p piece, avail fixed.Int26_6) int {
	var w fixed.Int26_6
	end := 0
	for i := 0; i < len(p.text); {
		r, size := utf8.DecodeRuneInString(p.text[i:])
		adv, _ := p.face.GlyphAdvance(r)
		if w+adv > avail && end > 0 {
			return end
		}
		w += adv
		i += size
		end = i
	}
	return end
}

func (e *engine) drawText(tb *textBlock, x0, y int, width fixed.Int26_6, a layout.Align) {
	for i, ln := range tb.lines {
		x := fixed.I(x0)
		if slack := width - ln.width; slack > 0 {
			switch a {
			case layout.AlignCenter:
				x += slack / 2
			case layout.AlignRight:
				x += slack
			}
		}
		dotY := fixed.I(y+i*tb.lineH) + tb.base
		for _, p := range ln.pieces {
			if !p.space {
				e.ops = append(e.ops, textOp{face: p.face, dot: fixed.Point26_6{X: x, Y: dotY}, text: p.text, c: p.c})
			}
			x += p.width
		}
	}
}
