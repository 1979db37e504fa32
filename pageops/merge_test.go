package pageops_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/phpdave11/gofpdf"

	"github.com/lvillar/pdfmerge/assemble"
	"github.com/lvillar/pdfmerge/inspect"
	"github.com/lvillar/pdfmerge/pageops"
	"github.com/lvillar/pdfmerge/raster"
)

// textPDF generates a simple PDF with the given number of pages.
func textPDF(t *testing.T, numPages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 14)
	for i := 1; i <= numPages; i++ {
		pdf.AddPage()
		pdf.Text(20, 30, fmt.Sprintf("Page %d of %d", i, numPages))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("creating test PDF: %v", err)
	}
	return buf.Bytes()
}

func TestMergePageCount(t *testing.T) {
	out, err := pageops.MergeBytes(textPDF(t, 2), textPDF(t, 3))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	n, err := inspect.PageCount(out)
	if err != nil {
		t.Fatalf("reading merged PDF: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 pages, got %d", n)
	}
}

func TestMergeRenderedDocuments(t *testing.T) {
	a := assemble.New(assemble.Options{})
	var docs [][]byte
	for i := 0; i < 3; i++ {
		b, err := a.Assemble(raster.NewBitmap(raster.PageWidth, 400))
		if err != nil {
			t.Fatal(err)
		}
		docs = append(docs, b)
	}
	out, err := pageops.MergeBytes(docs...)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	info, err := inspect.ReadBytes(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Pages != 3 {
		t.Fatalf("pages = %d, want 3", info.Pages)
	}
	if info.Images != 3 {
		t.Fatalf("images = %d, want 3", info.Images)
	}
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "doc1.pdf")
	file2 := filepath.Join(dir, "doc2.pdf")
	output := filepath.Join(dir, "merged.pdf")
	if err := os.WriteFile(file1, textPDF(t, 1), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file2, textPDF(t, 2), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := pageops.MergeFiles(output, file1, file2); err != nil {
		t.Fatalf("merge: %v", err)
	}
	info, err := inspect.ReadFile(output)
	if err != nil {
		t.Fatalf("reading merged PDF: %v", err)
	}
	if info.Pages != 3 {
		t.Errorf("expected 3 pages, got %d", info.Pages)
	}
}

func TestMergeErrors(t *testing.T) {
	if err := pageops.Merge(&bytes.Buffer{}); err != pageops.ErrNoInput {
		t.Fatalf("no input: %v", err)
	}
	if _, err := pageops.MergeBytes([]byte("not a pdf")); err == nil {
		t.Fatal("expected error for invalid input")
	}
	if err := pageops.MergeFiles(filepath.Join(t.TempDir(), "out.pdf"), "/does/not/exist.pdf"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
