// Package pdfmerge generates PDF documents from templates with {{field}}
// placeholders and rows of tabular data.
//
// An Engine runs the whole pipeline for one row (RenderOne) or for a batch of
// selected rows (RenderBatch): placeholders are extracted, bound to row
// values through a field to column mapping, substituted into the template,
// and the resolved markup is rendered to a PDF. Rendering goes through a
// rasterizer and an assembler by default, or straight to vector output when
// configured with WithVectorOutput.
//
// Basic usage:
//
//	eng := pdfmerge.New(pdfmerge.WithConcurrency(4))
//	res, err := eng.RenderBatch(ctx, pdfmerge.BatchRequest{
//		TemplateName: "Invoice",
//		Content:      "<h1>{{Name}}</h1>",
//		Mapping:      binding.Mapping{"Name": "Customer"},
//		Headers:      []string{"Customer"},
//		Rows:         [][]any{{"Ada"}, {"Grace"}},
//		Selected:     []int{0, 1},
//	})
package pdfmerge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lvillar/pdfmerge/binding"
	"github.com/lvillar/pdfmerge/placeholder"
)

// Engine renders templates to PDFs. It is safe for concurrent use.
type Engine struct {
	cfg engineConfig
	log *zap.Logger
}

// New returns an Engine configured by opts.
func New(opts ...Option) *Engine {
	cfg := newConfig(opts)
	return &Engine{cfg: cfg, log: cfg.logger.Named("pdfmerge")}
}

// Concurrency returns how many rows a batch renders at once.
func (e *Engine) Concurrency() int { return e.cfg.concurrency }

// RenderOne renders content for a single row given as column-keyed values.
// Fields are resolved through mapping; a nil mapping binds every field to the
// column of the same name.
func (e *Engine) RenderOne(ctx context.Context, content string, mapping binding.Mapping, values map[string]any) ([]byte, error) {
	if content == "" {
		return nil, invalid(ErrNoTemplate, "empty template content")
	}
	if e.cfg.maxMarkupBytes > 0 && len(content) > e.cfg.maxMarkupBytes {
		return nil, invalid(ErrMarkupTooLarge, "%d bytes, limit %d", len(content), e.cfg.maxMarkupBytes)
	}
	fields := placeholder.Extract(content)
	if mapping == nil {
		mapping = binding.Mapping{}
		for _, f := range fields {
			mapping[f] = f
		}
	}
	markup := placeholder.Materialize(content, fields, binding.ForValues(mapping, values))
	if e.cfg.rowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.rowTimeout)
		defer cancel()
	}
	return e.renderRow(ctx, -1, markup)
}

// render turns resolved markup into PDF bytes.
func (e *Engine) render(ctx context.Context, row int, markup string) ([]byte, error) {
	if e.cfg.documents != nil {
		doc, err := e.cfg.documents.Render(ctx, markup)
		if err != nil {
			return nil, newRenderError("render", row, err)
		}
		return doc, nil
	}

	bm, err := e.cfg.rasterizer.Rasterize(ctx, markup)
	if err != nil {
		return nil, newRenderError("rasterize", row, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, newRenderError("rasterize", row, err)
	}
	doc, err := e.cfg.assembler.Assemble(bm)
	if err != nil {
		return nil, newRenderError("assemble", row, err)
	}
	return doc, nil
}

// renderRow renders one row, converting a panic in a backend into an error
// so one bad row cannot take the batch down.
func (e *Engine) renderRow(ctx context.Context, row int, markup string) (doc []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newRenderError("render", row, fmt.Errorf("panic: %v", r))
		}
	}()
	return e.render(ctx, row, markup)
}

// reason is the short failure text reported for a row.
func reason(err error) string {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Err.Error()
	}
	return err.Error()
}
