package sink

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"mimicpipe/mimic"
)

// Version is stamped into the Parquet created_by footer field.
var Version = "dev"

// ParquetWriter writes records of one table to a Parquet file for Hive
// STORED AS PARQUET tables: zstd, 8KB pages with page statistics, 64MB
// row groups.
type ParquetWriter struct {
	file  *stagedFile
	rows  parquetRows
	count int64
}

// parquetRows erases the record type so one ParquetWriter serves every table.
type parquetRows interface {
	write(rec mimic.Record) error
	close() error
}

type typedRows[T mimic.Record] struct {
	w   *parquet.GenericWriter[T]
	buf []T
	max int
}

func newTypedRows[T mimic.Record](out io.Writer, batchSize int) parquetRows {
	return &typedRows[T]{
		w: parquet.NewGenericWriter[T](out,
			parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
			parquet.PageBufferSize(8*1024),
			parquet.WriteBufferSize(64*1024*1024),
			parquet.DataPageStatistics(true),
			parquet.CreatedBy("mimicpipe", Version, ""),
		),
		buf: make([]T, 0, batchSize),
		max: batchSize,
	}
}

func (t *typedRows[T]) write(rec mimic.Record) error {
	row, ok := rec.(T)
	if !ok {
		var want T
		return fmt.Errorf("record is %T, want %T", rec, want)
	}
	t.buf = append(t.buf, row)
	if len(t.buf) >= t.max {
		return t.flush()
	}
	return nil
}

func (t *typedRows[T]) flush() error {
	if len(t.buf) == 0 {
		return nil
	}
	if _, err := t.w.Write(t.buf); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	t.buf = t.buf[:0]
	return nil
}

func (t *typedRows[T]) close() error {
	if err := t.flush(); err != nil {
		return err
	}
	if err := t.w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

var parquetLayouts = map[string]func(io.Writer, int) parquetRows{
	mimic.Patients.Name:     newTypedRows[mimic.Patient],
	mimic.Admissions.Name:   newTypedRows[mimic.Admission],
	mimic.ICUStays.Name:     newTypedRows[mimic.ICUStay],
	mimic.DiagnosesICD.Name: newTypedRows[mimic.Diagnosis],
}

// NewParquetWriter creates a Parquet writer for t.
func NewParquetWriter(path string, t *mimic.Table, batchSize int) (*ParquetWriter, error) {
	layout, ok := parquetLayouts[t.Name]
	if !ok {
		return nil, fmt.Errorf("no parquet layout for table %s", t.Name)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	file, err := createStaged(path)
	if err != nil {
		return nil, err
	}
	return &ParquetWriter{
		file: file,
		rows: layout(file, batchSize),
	}, nil
}

func (w *ParquetWriter) Write(rec mimic.Record) error {
	if err := w.rows.write(rec); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *ParquetWriter) Count() int64 { return w.count }

// Close writes the footer and publishes the file.
func (w *ParquetWriter) Close() error {
	if err := w.rows.close(); err != nil {
		w.file.discard()
		return err
	}
	return w.file.commit()
}

// Abort discards everything written so far.
func (w *ParquetWriter) Abort() error { return w.file.discard() }
