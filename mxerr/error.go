// Package mxerr provides the structured diagnostic type shared by the schema
// loader, the property builder, the node-type synthesizer and the importer.
//
// None of the conditions represented here abort a load or an import. They are
// collected as diagnostics, logged, and returned next to whatever could be
// built, so a catalog is always usable even when parts of a library are broken.
package mxerr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard diagnostic codes.
const (
	// CodeSchemaParse indicates a malformed node definition record or source.
	CodeSchemaParse = "SCHEMA_PARSE"

	// CodeCoercion indicates a raw value that does not parse as its declared type.
	CodeCoercion = "COERCION"

	// CodeUnsupportedType indicates a type tag with no property mapping.
	CodeUnsupportedType = "UNSUPPORTED_TYPE"

	// CodeUnknownCategory indicates a document node whose category is not in the catalog.
	CodeUnknownCategory = "UNKNOWN_CATEGORY"

	// CodeMalformedConnection indicates a document connection that could not be wired.
	CodeMalformedConnection = "MALFORMED_CONNECTION"

	// CodeDuplicateIdentifier indicates two node types resolving to the same identifier.
	CodeDuplicateIdentifier = "DUPLICATE_IDENTIFIER"
)

// Sentinel errors, one per code, for errors.Is checks.
var (
	ErrSchemaParse         = errors.New("schema parse error")
	ErrCoercion            = errors.New("coercion error")
	ErrUnsupportedType     = errors.New("unsupported type")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrMalformedConnection = errors.New("malformed connection")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

var sentinels = map[string]error{
	CodeSchemaParse:         ErrSchemaParse,
	CodeCoercion:            ErrCoercion,
	CodeUnsupportedType:     ErrUnsupportedType,
	CodeUnknownCategory:     ErrUnknownCategory,
	CodeMalformedConnection: ErrMalformedConnection,
	CodeDuplicateIdentifier: ErrDuplicateIdentifier,
}

// Severity tells a host how prominently a diagnostic should be surfaced.
type Severity string

const (
	// SeverityWarning marks an omission the user may not notice (a dropped bound).
	SeverityWarning Severity = "warning"

	// SeverityError marks an omission of a whole record, property or node.
	SeverityError Severity = "error"
)

// Error is a structured diagnostic.
//
// Op names the stage that produced it ("load", "coerce", "build", "synthesize",
// "import"), Subject names the thing that was skipped or degraded (a source
// file, a nodedef, a port, a document node).
type Error struct {
	Op       string
	Code     string
	Subject  string
	Message  string
	Details  map[string]any
	Cause    error
	Severity Severity
}

// New creates a diagnostic with error severity.
func New(op, code, subject, message string) *Error {
	return &Error{
		Op:       op,
		Code:     code,
		Subject:  subject,
		Message:  message,
		Severity: SeverityError,
	}
}

// Newf is New with a formatted message.
func Newf(op, code, subject, format string, args ...any) *Error {
	return New(op, code, subject, fmt.Sprintf(format, args...))
}

// WithCause sets the underlying error and returns e for chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails merges extra context into e and returns e for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithSeverity overrides the severity and returns e for chaining.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Error formats the diagnostic as "op [code] subject: message: cause".
func (e *Error) Error() string {
	var parts []string

	head := fmt.Sprintf("%s [%s]", e.Op, e.Code)
	if e.Subject != "" {
		head += " " + e.Subject
	}
	parts = append(parts, head)

	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the code sentinel (errors.Is(err, ErrUnknownCategory)) and
// other *Error values carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code && (t.Op == "" || e.Op == t.Op)
	}
	if s, ok := sentinels[e.Code]; ok {
		return s == target
	}
	return false
}

// HasCode reports whether err is, or wraps, an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
