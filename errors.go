package pdfmerge

import (
	"errors"
	"fmt"
)

// Sentinel errors for batch validation and outcome. Validation failures wrap
// ErrValidation so callers can tell them apart from rendering failures.
var (
	ErrValidation     = errors.New("pdfmerge: invalid batch input")
	ErrNoTemplate     = errors.New("pdfmerge: no template selected")
	ErrNoDataset      = errors.New("pdfmerge: no dataset selected")
	ErrNoRows         = errors.New("pdfmerge: no rows selected")
	ErrRowOutOfRange  = errors.New("pdfmerge: selected row out of range")
	ErrTooManyRows    = errors.New("pdfmerge: too many rows selected")
	ErrMarkupTooLarge = errors.New("pdfmerge: template exceeds size limit")
	ErrBatchFailed    = errors.New("pdfmerge: no document could be generated")
)

// RenderError represents a failure of one pipeline stage for one row.
// It wraps the underlying error and records where it happened.
type RenderError struct {
	Op  string // pipeline stage, e.g. "rasterize", "assemble"
	Row int    // dataset row index, -1 for single renders
	Err error  // underlying error
}

func (e *RenderError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("pdfmerge.%s: row %d: %v", e.Op, e.Row, e.Err)
	}
	return fmt.Sprintf("pdfmerge.%s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func newRenderError(op string, row int, err error) *RenderError {
	return &RenderError{Op: op, Row: row, Err: err}
}

// validationError wraps a specific cause so it matches both ErrValidation
// and the cause with errors.Is.
type validationError struct {
	cause  error
	detail string
}

func (e *validationError) Error() string {
	if e.detail == "" {
		return e.cause.Error()
	}
	return e.cause.Error() + ": " + e.detail
}

func (e *validationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *validationError) Unwrap() error {
	return e.cause
}

func invalid(cause error, format string, args ...any) error {
	return &validationError{cause: cause, detail: fmt.Sprintf(format, args...)}
}
