// Package app builds the rendering engine described by a configuration.
package app

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/assemble"
	"github.com/lvillar/pdfmerge/internal/config"
	"github.com/lvillar/pdfmerge/raster"
	"github.com/lvillar/pdfmerge/raster/chrome"
	"github.com/lvillar/pdfmerge/vector"
)

// NewEngine assembles an engine from cfg. The returned func releases the
// browser when the chrome backend is used and must be called once the
// engine is no longer needed.
func NewEngine(cfg *config.Config, logger *zap.Logger) (*pdfmerge.Engine, func(), error) {
	r := cfg.Render
	fetcher := &raster.Fetcher{
		Client:  &http.Client{Timeout: r.ResourceTimeout},
		BaseDir: r.ResourceDir,
	}
	if r.ResourceRate > 0 {
		fetcher.Limiter = rate.NewLimiter(rate.Limit(r.ResourceRate), max(1, int(r.ResourceRate)))
	}

	mode, err := assemble.ParseMode(r.PageMode)
	if err != nil {
		return nil, nil, err
	}

	opts := []pdfmerge.Option{
		pdfmerge.WithConcurrency(r.Concurrency),
		pdfmerge.WithRowTimeout(r.RowTimeout),
		pdfmerge.WithMaxRows(r.MaxRows),
		pdfmerge.WithMaxMarkupBytes(r.MaxMarkupBytes),
		pdfmerge.WithLogger(logger),
		pdfmerge.WithAssembler(assemble.New(assemble.Options{Mode: mode, Quality: r.Quality})),
	}
	release := func() {}

	switch {
	case r.Vector:
		opts = append(opts, pdfmerge.WithVectorOutput(vector.Options{
			Strict:          r.Strict,
			Fetcher:         fetcher,
			ResourceTimeout: r.ResourceTimeout,
		}))
	case r.Backend == config.BackendChrome:
		c := chrome.New(chrome.Options{
			ExecPath:        r.ChromePath,
			Timeout:         r.RowTimeout,
			ResourceTimeout: r.ResourceTimeout,
			PoolSize:        r.Concurrency,
			Strict:          r.Strict,
			MaxHeight:       r.MaxHeight,
			Logger:          logger,
		})
		opts = append(opts, pdfmerge.WithRasterizer(c))
		release = func() {
			if err := c.Close(); err != nil {
				logger.Warn("closing browser", zap.Error(err))
			}
		}
	default:
		opts = append(opts, pdfmerge.WithRasterizer(raster.NewText(raster.Options{
			Strict:          r.Strict,
			MaxHeight:       r.MaxHeight,
			ResourceTimeout: r.ResourceTimeout,
			PoolSize:        r.Concurrency,
			Fetcher:         fetcher,
		})))
	}

	logger.Debug("engine configured",
		zap.String("backend", r.Backend),
		zap.Bool("vector", r.Vector),
		zap.Stringer("page_mode", mode),
		zap.Int("concurrency", r.Concurrency),
	)
	return pdfmerge.New(opts...), release, nil
}
