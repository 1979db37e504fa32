package pdfmerge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lvillar/pdfmerge/binding"
	"github.com/lvillar/pdfmerge/pageops"
	"github.com/lvillar/pdfmerge/placeholder"
)

// BatchRequest describes one batch generation.
type BatchRequest struct {
	TemplateID   string
	TemplateName string
	Content      string
	Mapping      binding.Mapping
	// Headers and Rows accept structured slices or their JSON text, see
	// binding.DecodeHeaders and binding.DecodeRows.
	Headers any
	Rows    any
	// Selected lists dataset row indices in output order. Duplicates are
	// rendered once per occurrence.
	Selected []int
}

// Artifact is one generated document.
type Artifact struct {
	ID         string
	Name       string
	TemplateID string
	RowIndex   int
	CreatedAt  time.Time
	Bytes      []byte
}

// Group collects the artifacts of one batch in selection order.
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Members   []Artifact
}

// Combine concatenates the members into a single PDF.
func (g *Group) Combine() ([]byte, error) {
	docs := make([][]byte, len(g.Members))
	for i, m := range g.Members {
		docs[i] = m.Bytes
	}
	return pageops.MergeBytes(docs...)
}

// RowFailure records why one selected row produced no document.
type RowFailure struct {
	RowIndex int
	Reason   string
	Err      error
}

// BatchResult is the outcome of RenderBatch.
type BatchResult struct {
	// Group is nil when no row succeeded.
	Group     *Group
	Failures  []RowFailure
	Succeeded int
	Failed    int
	// Skipped counts rows never started because the batch was cancelled.
	Skipped   int
	Cancelled bool
}

// Summary is the reportable shape of a BatchResult.
type Summary struct {
	GroupName string            `json:"groupName"`
	Artifacts []ArtifactSummary `json:"artifacts"`
	Failures  []FailureSummary  `json:"failures"`
	Skipped   int               `json:"skipped,omitempty"`
	Cancelled bool              `json:"cancelled,omitempty"`
}

// ArtifactSummary names one artifact and its size.
type ArtifactSummary struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

// FailureSummary reports one failed row.
type FailureSummary struct {
	RowIndex int    `json:"rowIndex"`
	Reason   string `json:"reason"`
}

// Summary returns the names and sizes of the artifacts and the failures.
func (r *BatchResult) Summary() Summary {
	s := Summary{
		Artifacts: []ArtifactSummary{},
		Failures:  []FailureSummary{},
		Skipped:   r.Skipped,
		Cancelled: r.Cancelled,
	}
	if r.Group != nil {
		s.GroupName = r.Group.Name
		for _, a := range r.Group.Members {
			s.Artifacts = append(s.Artifacts, ArtifactSummary{Name: a.Name, Bytes: len(a.Bytes)})
		}
	}
	for _, f := range r.Failures {
		s.Failures = append(s.Failures, FailureSummary{RowIndex: f.RowIndex, Reason: f.Reason})
	}
	return s
}

// outcome is the state of one selected position after the run.
type outcome struct {
	started  bool
	artifact *Artifact
	err      error
}

// RenderBatch renders one document per selected row.
//
// Invalid input returns an error matching ErrValidation and renders nothing.
// A failing row is recorded in the result and never stops its siblings.
// Cancelling ctx stops new rows from starting; rows already running finish,
// and the result reports the rest as skipped with a nil error. When every
// row fails the result is returned together with an error matching
// ErrBatchFailed.
func (e *Engine) RenderBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	headers, rows, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	log := e.log.With(
		zap.String("template", req.TemplateName),
		zap.Int("rows", len(req.Selected)),
	)
	fields := placeholder.Extract(req.Content)
	if missing := placeholder.Unmapped(req.Content, req.Mapping); len(missing) > 0 {
		log.Warn("fields without a column mapping resolve to empty text", zap.Strings("fields", missing))
	}
	log.Info("batch started", zap.Int("fields", len(fields)), zap.Int("concurrency", e.cfg.concurrency))
	start := time.Now()

	results := make([]outcome, len(req.Selected))
	var g errgroup.Group
	g.SetLimit(e.cfg.concurrency)
	for pos, idx := range req.Selected {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Waiting for a free slot may outlast the batch.
			if ctx.Err() != nil {
				return nil
			}
			results[pos] = e.runRow(ctx, req, fields, headers, rows[idx], idx)
			return nil
		})
	}
	_ = g.Wait()

	res := e.collect(req, results)
	log.Info("batch finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("elapsed", time.Since(start)),
	)

	if res.Succeeded == 0 && !res.Cancelled {
		errs := []error{ErrBatchFailed}
		for _, f := range res.Failures {
			errs = append(errs, f.Err)
		}
		return res, errors.Join(errs...)
	}
	return res, nil
}

// runRow renders a single row. The row context is detached from batch
// cancellation so a started row runs to completion or its own timeout.
func (e *Engine) runRow(ctx context.Context, req BatchRequest, fields, headers []string, row []any, idx int) outcome {
	rctx := context.WithoutCancel(ctx)
	if e.cfg.rowTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, e.cfg.rowTimeout)
		defer cancel()
	}

	markup := placeholder.Materialize(req.Content, fields, binding.ForRecord(req.Mapping, headers, row))
	doc, err := e.renderRow(rctx, idx, markup)
	if err != nil {
		e.log.Warn("row failed", zap.Int("row", idx), zap.Error(err))
		return outcome{started: true, err: err}
	}

	a := &Artifact{
		ID:         e.cfg.newID(),
		Name:       ArtifactName(req.TemplateName, idx),
		TemplateID: req.TemplateID,
		RowIndex:   idx,
		CreatedAt:  e.cfg.now(),
		Bytes:      doc,
	}
	e.log.Debug("row rendered", zap.Int("row", idx), zap.String("name", a.Name), zap.Int("bytes", len(doc)))
	return outcome{started: true, artifact: a}
}

// collect folds per-position outcomes into a result, keeping selection order.
func (e *Engine) collect(req BatchRequest, results []outcome) *BatchResult {
	res := &BatchResult{}
	var members []Artifact
	for pos, o := range results {
		switch {
		case !o.started:
			res.Skipped++
		case o.err != nil:
			res.Failed++
			res.Failures = append(res.Failures, RowFailure{
				RowIndex: req.Selected[pos],
				Reason:   reason(o.err),
				Err:      o.err,
			})
		default:
			res.Succeeded++
			members = append(members, *o.artifact)
		}
	}
	res.Cancelled = res.Skipped > 0

	if len(members) > 0 {
		res.Group = &Group{
			ID:        e.cfg.newID(),
			Name:      GroupName(req.TemplateName, members),
			CreatedAt: e.cfg.now(),
			Members:   members,
		}
	}
	return res
}

// validate checks req and decodes its dataset.
func (e *Engine) validate(req BatchRequest) ([]string, [][]any, error) {
	if req.Content == "" {
		return nil, nil, invalid(ErrNoTemplate, "empty template content")
	}
	if e.cfg.maxMarkupBytes > 0 && len(req.Content) > e.cfg.maxMarkupBytes {
		return nil, nil, invalid(ErrMarkupTooLarge, "%d bytes, limit %d", len(req.Content), e.cfg.maxMarkupBytes)
	}

	headers, err := binding.DecodeHeaders(req.Headers)
	if err != nil {
		return nil, nil, invalid(ErrNoDataset, "%v", err)
	}
	rows, err := binding.DecodeRows(req.Rows)
	if err != nil {
		return nil, nil, invalid(ErrNoDataset, "%v", err)
	}
	if headers == nil || rows == nil {
		return nil, nil, invalid(ErrNoDataset, "missing headers or rows")
	}

	if len(req.Selected) == 0 {
		return nil, nil, invalid(ErrNoRows, "selection is empty")
	}
	if e.cfg.maxRows > 0 && len(req.Selected) > e.cfg.maxRows {
		return nil, nil, invalid(ErrTooManyRows, "%d selected, limit %d", len(req.Selected), e.cfg.maxRows)
	}
	for _, idx := range req.Selected {
		if idx < 0 || idx >= len(rows) {
			return nil, nil, invalid(ErrRowOutOfRange, "row %d, dataset has %d rows", idx, len(rows))
		}
	}
	return headers, rows, nil
}

// String implements fmt.Stringer for log and CLI output.
func (r *BatchResult) String() string {
	name := ""
	if r.Group != nil {
		name = r.Group.Name
	}
	return fmt.Sprintf("%q: %d succeeded, %d failed, %d skipped", name, r.Succeeded, r.Failed, r.Skipped)
}
