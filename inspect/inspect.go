// Package inspect reads back the structure of a produced PDF: page count,
// page size and the number of embedded images.
package inspect

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
)

// Info summarizes a PDF document.
type Info struct {
	Pages int `json:"pages"`
	// Size of the first page in points.
	PageWidth  float64 `json:"pageWidth"`
	PageHeight float64 `json:"pageHeight"`
	// Images counts image XObjects drawn on all pages, including those
	// inside form XObjects.
	Images   int    `json:"images"`
	Producer string `json:"producer,omitempty"`
}

// maxFormDepth bounds recursion into nested form XObjects.
const maxFormDepth = 8

// Read parses the PDF in r.
func Read(r io.ReaderAt, size int64) (info *Info, err error) {
	// The parser panics on some malformed input.
	defer func() {
		if p := recover(); p != nil {
			info, err = nil, fmt.Errorf("inspect: malformed PDF: %v", p)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("inspect: %w", err)
	}

	info = &Info{Pages: doc.NumPage()}
	if producer := doc.Trailer().Key("Info").Key("Producer"); !producer.IsNull() {
		info.Producer = producer.Text()
	}
	for i := 1; i <= info.Pages; i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		if i == 1 {
			info.PageWidth, info.PageHeight = mediaBox(page.V)
		}
		info.Images += countImages(page.Resources(), 0)
	}
	return info, nil
}

// ReadBytes parses an in-memory PDF.
func ReadBytes(b []byte) (*Info, error) {
	return Read(bytes.NewReader(b), int64(len(b)))
}

// ReadFile parses the PDF at path.
func ReadFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inspect: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("inspect: %w", err)
	}
	return Read(f, st.Size())
}

// PageCount returns the number of pages of an in-memory PDF.
func PageCount(b []byte) (int, error) {
	info, err := ReadBytes(b)
	if err != nil {
		return 0, err
	}
	return info.Pages, nil
}

// mediaBox returns the page size, following inherited attributes.
func mediaBox(page pdf.Value) (w, h float64) {
	for v := page; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() != pdf.Array || box.Len() < 4 {
			continue
		}
		w = box.Index(2).Float64() - box.Index(0).Float64()
		h = box.Index(3).Float64() - box.Index(1).Float64()
		return w, h
	}
	return 0, 0
}

func countImages(res pdf.Value, depth int) int {
	if res.IsNull() || depth > maxFormDepth {
		return 0
	}
	xobjs := res.Key("XObject")
	n := 0
	for _, name := range xobjs.Keys() {
		x := xobjs.Key(name)
		switch x.Key("Subtype").Name() {
		case "Image":
			n++
		case "Form":
			n += countImages(x.Key("Resources"), depth+1)
		}
	}
	return n
}
