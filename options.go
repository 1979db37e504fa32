package pdfmerge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lvillar/pdfmerge/assemble"
	"github.com/lvillar/pdfmerge/raster"
	"github.com/lvillar/pdfmerge/vector"
)

// Defaults applied by New.
const (
	DefaultConcurrency    = 4
	DefaultRowTimeout     = 60 * time.Second
	DefaultMaxRows        = 10000
	DefaultMaxMarkupBytes = 5 << 20
)

// Assembler wraps a rendered bitmap into a PDF.
type Assembler interface {
	Assemble(bm *raster.Bitmap) ([]byte, error)
}

// DocumentRenderer renders resolved markup straight to a PDF, skipping the
// bitmap stage.
type DocumentRenderer interface {
	Render(ctx context.Context, markup string) ([]byte, error)
}

// Option is a functional option for configuring an Engine via New.
type Option func(*engineConfig)

type engineConfig struct {
	concurrency    int
	rowTimeout     time.Duration
	maxRows        int
	maxMarkupBytes int
	rasterizer     raster.Rasterizer
	assembler      Assembler
	documents      DocumentRenderer
	logger         *zap.Logger
	now            func() time.Time
	newID          func() string
}

// WithConcurrency sets how many rows render at once. Values below one are
// treated as one.
func WithConcurrency(n int) Option {
	return func(c *engineConfig) {
		c.concurrency = max(n, 1)
	}
}

// WithRowTimeout bounds the time one row may take, including resource
// fetches.
func WithRowTimeout(d time.Duration) Option {
	return func(c *engineConfig) {
		c.rowTimeout = d
	}
}

// WithMaxRows caps the number of selected rows accepted by RenderBatch.
func WithMaxRows(n int) Option {
	return func(c *engineConfig) {
		c.maxRows = n
	}
}

// WithMaxMarkupBytes caps the size of a template.
func WithMaxMarkupBytes(n int) Option {
	return func(c *engineConfig) {
		c.maxMarkupBytes = n
	}
}

// WithRasterizer sets the bitmap backend. The default is a raster.Text with
// one slot per concurrent row.
func WithRasterizer(r raster.Rasterizer) Option {
	return func(c *engineConfig) {
		c.rasterizer = r
	}
}

// WithAssembler sets how bitmaps become PDFs. The default is a single page
// assembler at JPEG quality 92.
func WithAssembler(a Assembler) Option {
	return func(c *engineConfig) {
		c.assembler = a
	}
}

// WithVectorOutput renders documents with the vector renderer instead of
// rasterizing them. Text stays selectable and tall content is paginated.
func WithVectorOutput(opts vector.Options) Option {
	return func(c *engineConfig) {
		c.documents = vector.New(opts)
	}
}

// WithDocumentRenderer sets a custom direct-to-PDF renderer. It takes
// precedence over the rasterizer and assembler.
func WithDocumentRenderer(r DocumentRenderer) Option {
	return func(c *engineConfig) {
		c.documents = r
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source used for artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) {
		c.now = now
	}
}

// WithIDGenerator sets how artifact and group IDs are made. The default is
// random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(c *engineConfig) {
		c.newID = fn
	}
}

func newConfig(opts []Option) engineConfig {
	cfg := engineConfig{
		concurrency:    DefaultConcurrency,
		rowTimeout:     DefaultRowTimeout,
		maxRows:        DefaultMaxRows,
		maxMarkupBytes: DefaultMaxMarkupBytes,
		logger:         zap.NewNop(),
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rasterizer == nil {
		cfg.rasterizer = raster.NewText(raster.Options{PoolSize: cfg.concurrency})
	}
	if cfg.assembler == nil {
		cfg.assembler = assemble.New(assemble.Options{})
	}
	return cfg
}
