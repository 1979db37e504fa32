package vector_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/lvillar/pdfmerge/inspect"
	"github.com/lvillar/pdfmerge/raster"
	"github.com/lvillar/pdfmerge/vector"
)

func render(t *testing.T, r *vector.Renderer, markup string) *inspect.Info {
	t.Helper()
	out, err := r.Render(context.Background(), markup)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output does not start with %%PDF")
	}
	info, err := inspect.ReadBytes(out)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	return info
}

func TestRenderShortDocument(t *testing.T) {
	info := render(t, vector.New(vector.Options{}), `<h1 align="center">Invoice</h1>
		<p>Dear <b>Ada</b>, your total is <span style="color:#1e40af">42</span>.</p>
		<ul><li>One</li><li>Two</li></ul><hr><pre>code  block</pre>`)
	if info.Pages != 1 {
		t.Fatalf("pages = %d, want 1", info.Pages)
	}
	if info.Images != 0 {
		t.Fatalf("images = %d, want 0", info.Images)
	}
}

func TestRenderPaginates(t *testing.T) {
	markup := strings.Repeat("<p>A paragraph long enough to take a couple of lines on an A4 page once it wraps around the right margin.</p>", 60)
	info := render(t, vector.New(vector.Options{}), markup)
	if info.Pages < 2 {
		t.Fatalf("pages = %d, want at least 2", info.Pages)
	}
}

func TestRenderLongTable(t *testing.T) {
	var b strings.Builder
	b.WriteString("<table><thead><tr><th>Item</th><th>Qty</th></tr></thead>")
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&b, "<tr><td>Item %d</td><td>%d</td></tr>", i, i)
	}
	b.WriteString("</table>")
	info := render(t, vector.New(vector.Options{}), b.String())
	if info.Pages < 2 {
		t.Fatalf("pages = %d, want at least 2", info.Pages)
	}
}

func TestRenderBarcodes(t *testing.T) {
	info := render(t, vector.New(vector.Options{}),
		`<barcode type="qr" value="INV-1"></barcode><barcode type="code128" value="INV-1"></barcode>`)
	if info.Images != 2 {
		t.Fatalf("images = %d, want 2", info.Images)
	}

	_, err := vector.New(vector.Options{Strict: true}).Render(context.Background(), `<barcode type="ean99" value="1"></barcode>`)
	if !errors.Is(err, raster.ErrBarcode) {
		t.Fatalf("strict error = %v, want ErrBarcode", err)
	}
	render(t, vector.New(vector.Options{}), `<barcode type="ean99" value="1"></barcode>`)
}

func TestRenderImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	src := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	info := render(t, vector.New(vector.Options{}), `<img src="`+src+`" width="100"><img src="missing.png" alt="gone" width="50" height="20">`)
	if info.Images != 1 {
		t.Fatalf("images = %d, want 1", info.Images)
	}

	_, err := vector.New(vector.Options{Strict: true}).Render(context.Background(), `<img src="missing.png">`)
	if !errors.Is(err, raster.ErrResource) {
		t.Fatalf("strict error = %v, want ErrResource", err)
	}
}

func TestRenderReproducible(t *testing.T) {
	r := vector.New(vector.Options{CreationDate: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)})
	a, err := r.Render(context.Background(), "<p>same</p>")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Render(context.Background(), "<p>same</p>")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("output differs between runs")
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := vector.New(vector.Options{}).Render(ctx, "<p>x</p>")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
