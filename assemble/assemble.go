// Package assemble wraps rendered bitmaps into A4 PDF documents.
//
// The default mode places the whole bitmap on a single portrait page, scaled
// to the page width. Content taller than the page runs past its bottom edge.
// Paginate mode cuts the bitmap into page-height slices instead.
package assemble

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/lvillar/pdfmerge/raster"
)

// A4 portrait in points.
const (
	PageWidth  = 595.28
	PageHeight = 841.89
)

// DefaultQuality is the JPEG quality used when Options.Quality is zero.
const DefaultQuality = 92

// Mode selects how a bitmap is laid onto pages.
type Mode int

const (
	// SinglePage puts the bitmap on one page, overflowing when tall.
	SinglePage Mode = iota
	// Paginate splits the bitmap across as many pages as needed.
	Paginate
)

func (m Mode) String() string {
	if m == Paginate {
		return "paginate"
	}
	return "single"
}

// ParseMode maps "single" and "paginate" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "single":
		return SinglePage, nil
	case "paginate":
		return Paginate, nil
	}
	return SinglePage, fmt.Errorf("assemble: unknown page mode %q", s)
}

// Options configures an Assembler.
type Options struct {
	Mode Mode
	// Quality is the JPEG quality, 1 to 100.
	Quality int
	// CreationDate fixes the document date, which makes output reproducible.
	CreationDate time.Time
	Title        string
	// NoCompression disables stream compression.
	NoCompression bool
}

// Assembler turns bitmaps into PDFs. It is safe for concurrent use.
type Assembler struct {
	opts Options
}

// New returns an Assembler.
func New(opts Options) *Assembler {
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	if opts.Quality > 100 {
		opts.Quality = 100
	}
	return &Assembler{opts: opts}
}

// Mode returns the configured page mode.
func (a *Assembler) Mode() Mode { return a.opts.Mode }

// Assemble returns the PDF for bm.
func (a *Assembler) Assemble(bm *raster.Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Write(&buf, bm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes the PDF for bm to w.
func (a *Assembler) Write(w io.Writer, bm *raster.Bitmap) error {
	if bm == nil || bm.Image == nil || bm.Image.Bounds().Empty() {
		return fmt.Errorf("assemble: empty bitmap")
	}
	pdf := a.newDocument()

	src := bm.Image
	b := src.Bounds()
	switch a.opts.Mode {
	case Paginate:
		// Device pixels that fill one page at page-width scale.
		sliceH := int(float64(b.Dx()) * PageHeight / PageWidth)
		for n, y := 0, b.Min.Y; y < b.Max.Y; n, y = n+1, y+sliceH {
			r := image.Rect(b.Min.X, y, b.Max.X, min(y+sliceH, b.Max.Y))
			if err := a.place(pdf, fmt.Sprintf("slice%d", n), src.SubImage(r)); err != nil {
				return err
			}
		}
	default:
		if err := a.place(pdf, "page", src); err != nil {
			return err
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("assemble: writing PDF: %w", err)
	}
	return nil
}

func (a *Assembler) newDocument() *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(!a.opts.NoCompression)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetProducer("pdfmerge", false)
	if a.opts.Title != "" {
		pdf.SetTitle(a.opts.Title, true)
	}
	if !a.opts.CreationDate.IsZero() {
		pdf.SetCreationDate(a.opts.CreationDate)
		pdf.SetCatalogSort(true)
	}
	return pdf
}

// place adds a page showing img at full page width.
func (a *Assembler) place(pdf *gofpdf.Fpdf, name string, img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: a.opts.Quality}); err != nil {
		return fmt.Errorf("assemble: encoding JPEG: %w", err)
	}
	b := img.Bounds()
	h := PageWidth * float64(b.Dy()) / float64(b.Dx())

	pdf.AddPage()
	opt := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(name, opt, &buf)
	pdf.ImageOptions(name, 0, 0, PageWidth, h, false, opt, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	return nil
}
