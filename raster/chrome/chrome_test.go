package chrome

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/lvillar/pdfmerge/raster"
)

func browserPath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome or Chromium binary found")
	return ""
}

func TestDocument(t *testing.T) {
	doc := Document("<p>Hello</p>")
	if !strings.HasPrefix(doc, "<!DOCTYPE html>") {
		t.Fatalf("missing doctype: %.40s", doc)
	}
	if !strings.Contains(doc, "<body><p>Hello</p></body>") {
		t.Fatalf("markup not embedded in body: %s", doc)
	}
	if !strings.Contains(doc, "width: 794px") || !strings.Contains(doc, "padding: 40px") {
		t.Fatalf("page geometry missing: %s", doc)
	}
}

func TestNewDefaults(t *testing.T) {
	r := New(Options{})
	if r.opts.ResourceTimeout != raster.DefaultResourceTimeout {
		t.Fatalf("resource timeout = %v", r.opts.ResourceTimeout)
	}
	if r.opts.Timeout != time.Minute || r.opts.PoolSize != 4 {
		t.Fatalf("opts = %+v", r.opts)
	}
}

func TestWaitImagesBounded(t *testing.T) {
	script := waitImages(1500 * time.Millisecond)
	if !strings.HasPrefix(script, "Promise.race([") {
		t.Fatalf("image wait is not raced against a timer: %s", script)
	}
	if !strings.Contains(script, "setTimeout(done, 1500)") {
		t.Fatalf("timeout missing: %s", script)
	}
	if !strings.Contains(script, "!img.complete || img.naturalWidth === 0") {
		t.Fatalf("pending images are not counted as broken: %s", script)
	}
}

func TestDecodeNormalizesWidth(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 794, 100))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	src.Set(10, 10, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	bm, err := decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if bm.Width != raster.PageWidth {
		t.Fatalf("logical width = %d", bm.Width)
	}
	if bm.Bounds().Dx() != raster.PageWidth*raster.DeviceScale {
		t.Fatalf("device width = %d", bm.Bounds().Dx())
	}
	if bm.Height != 100 {
		t.Fatalf("logical height = %d, want 100", bm.Height)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := decode([]byte("not a png")); err == nil {
		t.Fatal("expected error")
	}
}

func TestRasterize(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a browser")
	}
	r := New(Options{ExecPath: browserPath(t), Timeout: 30 * time.Second})
	defer r.Close()

	bm, err := r.Rasterize(context.Background(), "<h1>Invoice</h1><p>Hello Ada</p>")
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if bm.Bounds().Dx() != raster.PageWidth*raster.DeviceScale {
		t.Fatalf("device width = %d", bm.Bounds().Dx())
	}
	if bm.Height < 2*raster.Padding {
		t.Fatalf("height = %d", bm.Height)
	}
}

func TestRasterizeHungImage(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a browser")
	}
	path := browserPath(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)
	markup := fmt.Sprintf(`<p>Logo</p><img src="%s/logo.png">`, srv.URL)

	r := New(Options{ExecPath: path, Timeout: 30 * time.Second, ResourceTimeout: 300 * time.Millisecond})
	defer r.Close()
	start := time.Now()
	if _, err := r.Rasterize(context.Background(), markup); err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Second {
		t.Fatalf("Rasterize took %v", elapsed)
	}

	strict := New(Options{ExecPath: path, Timeout: 30 * time.Second, ResourceTimeout: 300 * time.Millisecond, Strict: true})
	defer strict.Close()
	if _, err := strict.Rasterize(context.Background(), markup); !errors.Is(err, raster.ErrResource) {
		t.Fatalf("strict error = %v, want ErrResource", err)
	}
}
