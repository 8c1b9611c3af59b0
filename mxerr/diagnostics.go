package mxerr

import (
	"context"
	"errors"
	"log/slog"
)

// Diagnostics accumulates the non-fatal errors of one load or import.
// The zero value is ready to use. It is not safe for concurrent use.
type Diagnostics struct {
	errs []error
}

// Add appends err when it is non-nil.
func (d *Diagnostics) Add(err error) {
	if err != nil {
		d.errs = append(d.errs, err)
	}
}

// Append appends every non-nil error of errs.
func (d *Diagnostics) Append(errs ...error) {
	for _, err := range errs {
		d.Add(err)
	}
}

// Errors returns the collected errors in insertion order.
func (d *Diagnostics) Errors() []error {
	if d == nil || len(d.errs) == 0 {
		return nil
	}
	out := make([]error, len(d.errs))
	copy(out, d.errs)
	return out
}

// Len returns the number of collected errors.
func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	return len(d.errs)
}

// Count returns how many collected errors carry the given code.
func (d *Diagnostics) Count(code string) int {
	n := 0
	for _, err := range d.errs {
		if HasCode(err, code) {
			n++
		}
	}
	return n
}

// Err joins every collected error, or returns nil when there are none.
func (d *Diagnostics) Err() error {
	if d.Len() == 0 {
		return nil
	}
	return errors.Join(d.errs...)
}

// Log writes err to logger, at warn level for warnings and error level otherwise.
func Log(ctx context.Context, logger *slog.Logger, err error) {
	if err == nil || logger == nil {
		return
	}

	var e *Error
	if !errors.As(err, &e) {
		logger.ErrorContext(ctx, err.Error())
		return
	}

	attrs := []any{"op", e.Op, "code", e.Code}
	if e.Subject != "" {
		attrs = append(attrs, "subject", e.Subject)
	}
	if e.Cause != nil {
		attrs = append(attrs, "error", e.Cause)
	}
	for k, v := range e.Details {
		attrs = append(attrs, k, v)
	}

	if e.Severity == SeverityWarning {
		logger.WarnContext(ctx, e.Message, attrs...)
		return
	}
	logger.ErrorContext(ctx, e.Message, attrs...)
}
