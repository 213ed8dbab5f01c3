// Package sink writes converted MIMIC-III records to immutable container
// files: Avro object container files (the default) or Parquet.
//
// Writers stage output under a temporary name in the destination directory
// and rename it into place on Close, so a failed conversion never leaves a
// partial file under the final name.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mimicpipe/mimic"
)

// Format selects the container format.
type Format string

const (
	FormatAvro    Format = "avro"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAvro, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want avro or parquet)", s)
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Writer is implemented by AvroWriter and ParquetWriter.
type Writer interface {
	// Write buffers one record.
	Write(rec mimic.Record) error
	// Count returns the number of records accepted so far.
	Count() int64
	// Close flushes buffered records and publishes the file.
	Close() error
	// Abort discards the staged file.
	Abort() error
}

// Options configures New.
type Options struct {
	Format    Format
	Codec     string // Avro block codec: null, deflate, snappy
	BatchSize int    // records buffered per append/row-group write
}

const defaultBatchSize = 10000

// New creates a writer for t at path.
func New(path string, t *mimic.Table, opts Options) (Writer, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	switch opts.Format {
	case FormatAvro, "":
		return NewAvroWriter(path, t, opts.Codec, opts.BatchSize)
	case FormatParquet:
		return NewParquetWriter(path, t, opts.BatchSize)
	}
	return nil, fmt.Errorf("unknown format %q", opts.Format)
}

// stagedFile is a file written under a temporary name and renamed on commit.
type stagedFile struct {
	*os.File
	final string
}

func createStaged(path string) (*stagedFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &stagedFile{File: f, final: path}, nil
}

func (s *stagedFile) commit() error {
	if err := s.File.Sync(); err != nil {
		s.discard()
		return fmt.Errorf("sync %s: %w", s.final, err)
	}
	if err := s.File.Close(); err != nil {
		os.Remove(s.Name())
		return fmt.Errorf("close %s: %w", s.final, err)
	}
	if err := os.Rename(s.Name(), s.final); err != nil {
		os.Remove(s.Name())
		return fmt.Errorf("publish %s: %w", s.final, err)
	}
	return nil
}

func (s *stagedFile) discard() error {
	s.File.Close()
	if err := os.Remove(s.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
