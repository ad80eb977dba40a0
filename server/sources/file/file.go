// Package file serves delimited text and JSON files as sources.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/sources/frame"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
)

// SchemaSampleRows bounds the rows inspected for schema inference
const SchemaSampleRows = 10

var supportedExtensions = map[string]bool{
	".csv":    true,
	".tsv":    true,
	".json":   true,
	".jsonl":  true,
	".ndjson": true,
}

// Source is a file-backed table. The file is read once and assumed immutable
// for the lifetime of the source.
type Source struct {
	name       string
	kind       types.SourceType
	path       string
	ext        string
	delimiter  string
	encoding   string
	dataPath   string
	parseDates []string
	configErr  error
	logger     zerolog.Logger

	cache atomic.Pointer[frame.Frame]
}

// Option customizes a Source
type Option func(*Source)

// WithLogger sets the logger file loads are reported to
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// New creates a file source. Only a missing path fails here; everything else
// is reported by Validate.
func New(name string, kind types.SourceType, config map[string]any, opts ...Option) (*Source, error) {
	o := types.Options(config)
	path := o.String("path", "")
	if path == "" {
		return nil, types.NewValidation(name, "File source '%s' requires 'path' in config", name)
	}

	ext := strings.ToLower(filepath.Ext(path))
	defaultDelimiter := ","
	if ext == ".tsv" {
		defaultDelimiter = "\t"
	}

	s := &Source{
		name:      name,
		kind:      kind,
		path:      path,
		ext:       ext,
		delimiter: o.String("delimiter", defaultDelimiter),
		encoding:  o.String("encoding", "utf-8"),
		dataPath:  o.String("data_path", ""),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	dates, err := o.StringSlice("parse_dates")
	if err != nil {
		s.configErr = err
	}
	s.parseDates = dates
	return s, nil
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Type() types.SourceType {
	return s.kind
}

// Validate checks the file and its read options without loading it
func (s *Source) Validate(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return types.NewValidation(s.name, "File not found: %s", s.path).AddContext("path", s.path)
	}
	if err != nil {
		return types.NewValidation(s.name, "Cannot access file %s: %v", s.path, err).AddContext("path", s.path)
	}
	if info.IsDir() {
		return types.NewValidation(s.name, "Path is a directory, not a file: %s", s.path).AddContext("path", s.path)
	}
	if !supportedExtensions[s.ext] {
		return types.NewValidation(s.name, "Unsupported file type: %s", s.ext).AddContext("path", s.path)
	}
	if _, err := newDecoder(s.encoding); err != nil {
		return types.NewValidation(s.name, "Unknown encoding: %s", s.encoding).AddContext("encoding", s.encoding)
	}
	if isDelimited(s.ext) && utf8.RuneCountInString(s.delimiter) != 1 {
		return types.NewValidation(s.name, "Delimiter must be a single character, got %q", s.delimiter)
	}
	if s.configErr != nil {
		return types.NewValidation(s.name, "Invalid config: %v", s.configErr)
	}
	return nil
}

// Fetch filters and orders the whole table, then limits and projects it.
// The returned rows are fresh maps owned by the caller.
func (s *Source) Fetch(ctx context.Context, q types.Query) (*types.Result, error) {
	f, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out, err := f.Apply(q)
	if err != nil {
		return nil, errors.AsError(err, types.ErrSourceValidation).AddContext("source", s.name)
	}
	return out.Result(s.name), nil
}

// Schema infers column info from the first SchemaSampleRows rows
func (s *Source) Schema(ctx context.Context) (*types.Schema, error) {
	f, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return f.Head(SchemaSampleRows).Schema(s.name), nil
}

// Close drops the cached table
func (s *Source) Close() error {
	s.cache.Store(nil)
	return nil
}

// load returns the cached table, reading the file on first use. Concurrent
// first calls may each read the file; the last store wins and every result
// is equivalent.
func (s *Source) load(ctx context.Context) (*frame.Frame, error) {
	if f := s.cache.Load(); f != nil {
		return f, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, types.NewFetch(s.name, err, "loading %s cancelled", s.path)
	}

	start := time.Now()
	f, err := s.read()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to load file")
		return nil, err
	}
	s.cache.Store(f)
	s.logger.Debug().
		Str("path", s.path).
		Int("rows", f.Len()).
		Int("columns", len(f.Columns)).
		Dur("duration", time.Since(start)).
		Msg("File loaded")
	return f, nil
}

func (s *Source) read() (*frame.Frame, error) {
	if !supportedExtensions[s.ext] {
		return nil, types.NewFetch(s.name, nil, "Unsupported file type: %s", s.ext)
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to read %s", s.path)
	}

	dec, err := newDecoder(s.encoding)
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Unknown encoding: %s", s.encoding)
	}
	data, err := dec.Bytes(raw)
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to decode %s as %s", s.path, s.encoding)
	}

	var f *frame.Frame
	switch s.ext {
	case ".csv", ".tsv":
		delim, _ := utf8.DecodeRuneInString(s.delimiter)
		f, err = frame.ReadCSV(strings.NewReader(string(data)), delim)
	case ".json":
		f, err = frame.ReadJSON(data, s.dataPath)
	case ".jsonl", ".ndjson":
		f, err = frame.ReadJSONLines(data)
	}
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to parse %s", s.path)
	}

	if len(s.parseDates) > 0 {
		f = f.ConvertDates(s.parseDates)
	}
	return f, nil
}

func isDelimited(ext string) bool {
	return ext == ".csv" || ext == ".tsv"
}
