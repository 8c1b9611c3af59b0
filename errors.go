package mxgraph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNodeTypeNotFound indicates the active catalog has no such node type.
	ErrNodeTypeNotFound = errors.New("node type not found")

	// ErrClosed indicates the library was closed.
	ErrClosed = errors.New("library closed")
)

// Error kinds categorize errors by their type.
const (
	KindNotFound      = "not_found"
	KindValidation    = "validation"
	KindConfiguration = "configuration"
	// KindNetwork covers failures to reach a publishing backend.
	KindNetwork  = "network"
	KindInternal = "internal"
)

// Error wraps an underlying error with the operation that failed and
// the category of the failure. It supports errors.Is and errors.As.
//
//	_, err := lib.NodeType("mx.hologram")
//	if errors.Is(err, mxgraph.ErrNodeTypeNotFound) {
//		...
//	}
type Error struct {
	// Op is the operation that failed (e.g., "Library.Load").
	Op string

	// Kind categorizes the error (e.g., KindNotFound).
	Kind string

	Err error

	// Context carries identifiers useful when debugging.
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mxgraph: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("mxgraph: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("mxgraph: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind (and Op when the target sets one),
// and otherwise defers to the wrapped error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok && t.Kind != "" && e.Kind == t.Kind {
		if t.Op == "" || e.Op == t.Op {
			return true
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of e with ctx merged into its context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	newErr.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		newErr.Context[k] = v
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

func newNotFoundError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

func newConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

func newNetworkError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNetwork, Err: err}
}

// CloseWithLog closes closer and logs a failure at warning level. It is
// meant for defer statements. If logger is nil, slog.Default() is used.
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource", "resource", name, "error", err)
	}
}
