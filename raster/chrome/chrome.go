// Package chrome renders markup by taking a full page screenshot in headless
// Chrome. It gives exact browser layout at the cost of an external process.
package chrome

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/lvillar/pdfmerge/raster"
)

// Options configures the Chrome backend.
type Options struct {
	// ExecPath is the browser binary. Empty uses $CHROME_PATH, then the
	// chromedp default lookup.
	ExecPath string
	// Timeout bounds one render including image loading. Zero means one minute.
	Timeout time.Duration
	// ResourceTimeout bounds the wait for images. Images still pending when
	// it elapses count as broken and the page is captured as it is. Zero
	// means raster.DefaultResourceTimeout.
	ResourceTimeout time.Duration
	// PoolSize is the number of tabs rendering at once. Zero means 4.
	PoolSize int
	// Strict fails renders whose images did not load.
	Strict bool
	// MaxHeight caps the device height. Zero means raster.DefaultMaxHeight.
	MaxHeight int
	Logger    *zap.Logger
}

// Rasterizer is a raster.Rasterizer backed by one shared browser process.
// Each render gets its own tab, closed when the render's slot is released.
type Rasterizer struct {
	opts Options
	pool *raster.Pool
	log  *zap.Logger

	startOnce sync.Once
	startErr  error
	browser   context.Context
	cancel    []context.CancelFunc
}

var _ raster.Rasterizer = (*Rasterizer)(nil)

// New returns a Rasterizer. The browser is started on first use.
func New(opts Options) *Rasterizer {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.ResourceTimeout <= 0 {
		opts.ResourceTimeout = raster.DefaultResourceTimeout
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 4
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = raster.DefaultMaxHeight
	}
	if opts.ExecPath == "" {
		opts.ExecPath = os.Getenv("CHROME_PATH")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Rasterizer{opts: opts, pool: raster.NewPool(opts.PoolSize), log: log.Named("chrome")}
}

func (r *Rasterizer) start() error {
	r.startOnce.Do(func() {
		flags := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("headless", true),
			chromedp.WSURLReadTimeout(60*time.Second),
		)
		if r.opts.ExecPath != "" {
			flags = append(flags, chromedp.ExecPath(r.opts.ExecPath))
		}
		alloc, allocCancel := chromedp.NewExecAllocator(context.Background(), flags...)
		browser, browserCancel := chromedp.NewContext(alloc,
			chromedp.WithLogf(r.log.Sugar().Debugf),
			chromedp.WithErrorf(r.log.Sugar().Warnf),
		)
		r.cancel = []context.CancelFunc{browserCancel, allocCancel}
		// The first Run launches the process.
		if err := chromedp.Run(browser); err != nil {
			r.startErr = fmt.Errorf("chrome: starting browser: %w", err)
			return
		}
		r.browser = browser
		r.log.Info("browser started", zap.String("exec_path", r.opts.ExecPath))
	})
	return r.startErr
}

// Close shuts the browser down.
func (r *Rasterizer) Close() error {
	for _, c := range r.cancel {
		c()
	}
	return nil
}

// Rasterize loads markup into a fresh tab and captures the full page.
func (r *Rasterizer) Rasterize(ctx context.Context, markup string) (*raster.Bitmap, error) {
	if err := r.start(); err != nil {
		return nil, err
	}
	var bm *raster.Bitmap
	err := r.pool.Do(ctx, func(s *raster.Surface) error {
		tab, cancelTab := chromedp.NewContext(r.browser)
		s.OnRelease(cancelTab)
		tab, cancelTimeout := context.WithTimeout(tab, r.opts.Timeout)
		s.OnRelease(cancelTimeout)
		stop := context.AfterFunc(ctx, cancelTab)
		s.OnRelease(func() { stop() })

		shot, err := r.capture(tab, markup)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return err
		}
		bm, err = decode(shot)
		if err != nil {
			return err
		}
		if h := bm.Bounds().Dy(); h > r.opts.MaxHeight {
			return fmt.Errorf("%w: %d device pixels, limit %d", raster.ErrTooTall, h, r.opts.MaxHeight)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bm, nil
}

// waitImages returns a script that settles once every image has loaded or
// failed, or after timeout, whichever comes first. It evaluates to the number
// of images without content.
func waitImages(timeout time.Duration) string {
	return fmt.Sprintf(`Promise.race([
	Promise.all(Array.from(document.images)
		.filter(img => !img.complete)
		.map(img => new Promise(done => { img.onload = img.onerror = done; }))),
	new Promise(done => setTimeout(done, %d))
]).then(() => Array.from(document.images).filter(img => !img.complete || img.naturalWidth === 0).length)`, timeout.Milliseconds())
}

func (r *Rasterizer) capture(tab context.Context, markup string) ([]byte, error) {
	var (
		broken int
		shot   []byte
	)
	err := chromedp.Run(tab,
		emulation.SetDeviceMetricsOverride(raster.PageWidth, 600, raster.DeviceScale, false),
		emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{R: 255, G: 255, B: 255, A: 1}),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, Document(markup)).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(waitImages(r.opts.ResourceTimeout), &broken, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.FullScreenshot(&shot, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome: rendering: %w", err)
	}
	if broken > 0 && r.opts.Strict {
		return nil, fmt.Errorf("%w: %d images failed to load", raster.ErrResource, broken)
	}
	r.log.Debug("captured page", zap.Int("bytes", len(shot)), zap.Int("broken_images", broken))
	return shot, nil
}

// Document wraps markup in the page used for capture: the body is
// raster.PageWidth wide with raster.Padding on every side.
func Document(markup string) string {
	var b strings.Builder
	b.Grow(len(markup) + 512)
	fmt.Fprintf(&b, `<!DOCTYPE html><html><head><meta charset="utf-8"><style>
html, body { margin: 0; background: #fff; }
body { width: %dpx; padding: %dpx; box-sizing: border-box; overflow-wrap: anywhere; font-family: sans-serif; }
img { max-width: 100%%; }
table { border-collapse: collapse; width: 100%%; }
th, td { border: 1px solid #cbd5e1; padding: 6px; }
th { background: #f1f5f9; }
</style></head><body>`, raster.PageWidth, raster.Padding)
	b.WriteString(markup)
	b.WriteString(`</body></html>`)
	return b.String()
}

// decode turns a screenshot into a bitmap exactly raster.PageWidth logical
// pixels wide.
func decode(shot []byte) (*raster.Bitmap, error) {
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("chrome: decoding screenshot: %w", err)
	}
	want := raster.PageWidth * raster.DeviceScale
	if b := img.Bounds(); b.Dx() != want && b.Dx() > 0 {
		h := b.Dy() * want / b.Dx()
		dst := image.NewRGBA(image.Rect(0, 0, want, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}
	return raster.FromImage(img), nil
}
