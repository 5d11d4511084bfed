// Package importer turns external financial data into local accounts,
// categories and transactions. Parsers produce a model.Batch; the
// Reconciler applies it to a store under a per-run Policy.
package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/envelopes/internal/model"
)

// ErrMissingInput is returned when a required request field is empty.
var ErrMissingInput = errors.New("missing required input")

// ParseError reports a malformed import payload. Its message is the raw
// parser message.
type ParseError struct {
	Source model.ImportSource
	Err    error
}

func (e *ParseError) Error() string { return e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Options carries per-file parse inputs.
type Options struct {
	FileName string
	// AccountName names the single account that register and bank CSV
	// files import into.
	AccountName string
}

// Parser converts one uploaded file into a Batch.
type Parser interface {
	Parse(r io.Reader, opts Options) (*model.Batch, error)
	Source() model.ImportSource
}

// Registry holds parsers keyed by source.
type Registry struct {
	parsers map[model.ImportSource]Parser
}

// FileInfo describes a file in an import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[model.ImportSource]Parser)}
}

// Register adds a parser. Panics on duplicate source.
func (r *Registry) Register(p Parser) {
	key := p.Source()
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser source: " + string(key))
	}
	r.parsers[key] = p
}

// Get returns the parser for source, or nil.
func (r *Registry) Get(source model.ImportSource) Parser {
	return r.parsers[source]
}

// Sources lists registered sources in sorted order.
func (r *Registry) Sources() []model.ImportSource {
	out := make([]model.ImportSource, 0, len(r.parsers))
	for s := range r.parsers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultRegistry returns a registry with all built-in file parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(YNABJSONParser{})
	r.Register(YNABCSVParser{})
	r.Register(ActualParser{})
	r.Register(&ChaseParser{})
	return r
}

// processedDir is the subdirectory imported files are moved to.
const processedDir = "processed"

var importExts = []string{".json", ".csv"}

// Scan returns importable files directly inside dir, sorted by name.
// A missing directory yields no files.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !hasImportExt(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

func hasImportExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range importExts {
		if ext == e {
			return true
		}
	}
	return false
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
