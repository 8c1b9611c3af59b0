package mxgraph

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "basic error",
			err:  &Error{Op: "Library.Load", Kind: KindConfiguration, Err: ErrInvalidConfig},
			want: "mxgraph: Library.Load (configuration): invalid configuration",
		},
		{
			name: "without underlying error",
			err:  &Error{Op: "Library.Load", Kind: KindInternal},
			want: "mxgraph: Library.Load: internal",
		},
		{
			name: "with context",
			err: (&Error{Op: "Library.NodeType", Kind: KindNotFound, Err: ErrNodeTypeNotFound}).
				WithContext(map[string]any{"id": "mx.add"}),
			want: "mxgraph: Library.NodeType (not_found): node type not found [context: map[id:mx.add]]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("load: %w", newNotFoundError("Library.NodeType", ErrNodeTypeNotFound))

	tests := []struct {
		name   string
		target error
		want   bool
	}{
		{"sentinel", ErrNodeTypeNotFound, true},
		{"kind", &Error{Kind: KindNotFound}, true},
		{"kind and op", &Error{Kind: KindNotFound, Op: "Library.NodeType"}, true},
		{"kind and other op", &Error{Kind: KindNotFound, Op: "Library.Load"}, false},
		{"other kind", &Error{Kind: KindNetwork}, false},
		{"other sentinel", ErrInvalidConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithContextCopies(t *testing.T) {
	base := &Error{Op: "op", Kind: KindValidation, Context: map[string]any{"a": 1}}
	derived := base.WithContext(map[string]any{"b": 2})

	if _, ok := base.Context["b"]; ok {
		t.Error("WithContext modified the original error")
	}
	if derived.Context["a"] != 1 || derived.Context["b"] != 2 {
		t.Errorf("derived context = %v", derived.Context)
	}
}

type failingCloser struct{ err error }

func (f failingCloser) Close() error { return f.err }

func TestCloseWithLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	CloseWithLog(nil, logger, "nothing")
	CloseWithLog(failingCloser{}, logger, "ok")
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}

	CloseWithLog(failingCloser{err: errors.New("broken pipe")}, logger, "redis")
	out := buf.String()
	if !strings.Contains(out, "failed to close resource") || !strings.Contains(out, "resource=redis") {
		t.Errorf("log output = %q", out)
	}
}
