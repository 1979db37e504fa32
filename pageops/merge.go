// Package pageops combines existing PDF documents page by page.
//
// Pages are imported as templates with gofpdi and drawn onto new pages of
// the same size, so the content of each source page is carried over as is.
package pageops

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/phpdave11/gofpdf"
	"github.com/phpdave11/gofpdf/contrib/gofpdi"

	"github.com/lvillar/pdfmerge/inspect"
)

// ErrNoInput is returned when there is nothing to merge.
var ErrNoInput = errors.New("pageops: no input documents")

// Merge concatenates the pages of docs, in order, and writes the result to w.
func Merge(w io.Writer, docs ...[]byte) (err error) {
	if len(docs) == 0 {
		return ErrNoInput
	}
	// gofpdi panics on sources it cannot parse.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pageops: importing pages: %v", p)
		}
	}()

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetProducer("pdfmerge", false)

	// One importer for every source keeps template names unique.
	imp := gofpdi.NewImporter()
	for i, doc := range docs {
		if err := appendDoc(pdf, imp, doc); err != nil {
			return fmt.Errorf("pageops: document %d: %w", i+1, err)
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pageops: writing PDF: %w", err)
	}
	return nil
}

// MergeBytes is Merge into memory.
func MergeBytes(docs ...[]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Merge(&buf, docs...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MergeFiles combines the PDF files at inputPaths into outputPath.
func MergeFiles(outputPath string, inputPaths ...string) error {
	if len(inputPaths) == 0 {
		return ErrNoInput
	}
	docs := make([][]byte, 0, len(inputPaths))
	for _, p := range inputPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("pageops: %w", err)
		}
		docs = append(docs, b)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("pageops: creating %s: %w", outputPath, err)
	}
	if err := Merge(f, docs...); err != nil {
		f.Close()
		os.Remove(outputPath)
		return err
	}
	return f.Close()
}

// appendDoc imports every page of data into pdf.
func appendDoc(pdf *gofpdf.Fpdf, imp *gofpdi.Importer, data []byte) error {
	n, err := inspect.PageCount(data)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("document has no pages")
	}

	var rs io.ReadSeeker = bytes.NewReader(data)
	for page := 1; page <= n; page++ {
		tpl := imp.ImportPageFromStream(pdf, &rs, page, "/MediaBox")
		w, h := pageSize(imp, page)
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(pdf, tpl, 0, 0, w, h)
	}
	return pdf.Error()
}

// pageSize returns the media box of an imported page, defaulting to A4.
func pageSize(imp *gofpdi.Importer, page int) (w, h float64) {
	if dims, ok := imp.GetPageSizes()[page]; ok {
		if mb, ok := dims["/MediaBox"]; ok {
			w, h = mb["w"], mb["h"]
		}
	}
	if w == 0 || h == 0 {
		w, h = 595.28, 841.89
	}
	return w, h
}
