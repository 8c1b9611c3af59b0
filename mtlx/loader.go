package mtlx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zero-day-ai/mxgraph/mxerr"
)

// Source is a named schema document. Open is called once per load.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type fileSource string

// FileSource returns a Source reading the file at path.
func FileSource(path string) Source { return fileSource(path) }

func (f fileSource) Name() string                 { return string(f) }
func (f fileSource) Open() (io.ReadCloser, error) { return os.Open(string(f)) }

type bytesSource struct {
	name string
	data []byte
}

// BytesSource returns a Source serving data under the given name.
func BytesSource(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (b bytesSource) Name() string { return b.name }
func (b bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// ReadFile parses the MaterialX document at path.
func ReadFile(path string) (*Document, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()
	return ReadDocument(path, f)
}

// ExpandPaths turns files, directories and glob patterns into file sources.
// Directories are walked for *.mtlx files in lexical order so that loads are
// reproducible. A pattern that matches nothing is an error.
func ExpandPaths(paths ...string) ([]Source, error) {
	var out []Source
	for _, p := range paths {
		matches := []string{p}
		if strings.ContainsAny(p, "*?[") {
			var err error
			matches, err = filepath.Glob(p)
			if err != nil {
				return nil, fmt.Errorf("invalid library pattern %q: %w", p, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("library pattern %q matched no files", p)
			}
			sort.Strings(matches)
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("library path %q: %w", m, err)
			}
			if !info.IsDir() {
				out = append(out, FileSource(m))
				continue
			}
			err = filepath.WalkDir(m, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".mtlx") {
					out = append(out, FileSource(path))
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk library directory %q: %w", m, err)
			}
		}
	}
	return out, nil
}

// Library is the result of a load: every valid definition across all
// sources in load order, and the diagnostics of everything skipped.
type Library struct {
	Defs        []*NodeDef
	Diagnostics []error
}

// Loader reads node definitions from schema sources.
type Loader struct {
	logger *slog.Logger
}

// NewLoader returns a Loader logging to logger (slog.Default when nil).
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With("component", "mtlx.loader")}
}

// Load reads every source in order. It never fails as a whole: unreadable
// sources and malformed records are logged, recorded as diagnostics and
// skipped. Definitions with the same node string are all kept.
func (l *Loader) Load(ctx context.Context, sources ...Source) *Library {
	lib := &Library{}
	var diags mxerr.Diagnostics

	for _, src := range sources {
		defs, errs := l.loadOne(src)
		lib.Defs = append(lib.Defs, defs...)
		diags.Append(errs...)

		l.logger.DebugContext(ctx, "loaded schema source",
			"source", src.Name(), "nodedefs", len(defs), "skipped", len(errs))
	}

	for _, err := range diags.Errors() {
		mxerr.Log(ctx, l.logger, err)
	}
	lib.Diagnostics = diags.Errors()
	return lib
}

func (l *Loader) loadOne(src Source) ([]*NodeDef, []error) {
	rc, err := src.Open()
	if err != nil {
		return nil, []error{mxerr.New("load", mxerr.CodeSchemaParse, src.Name(), "cannot open source").WithCause(err)}
	}
	defer rc.Close()

	doc, errs, err := ReadDocument(src.Name(), rc)
	if err != nil {
		return nil, []error{mxerr.New("load", mxerr.CodeSchemaParse, src.Name(), "cannot read source").WithCause(err)}
	}
	return doc.NodeDefs, errs
}
