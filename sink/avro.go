package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/linkedin/goavro/v2"

	"mimicpipe/mimic"
)

const avroNull = "null"

// ParseCodec maps a codec name to the goavro compression label.
func ParseCodec(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "snappy":
		return goavro.CompressionSnappyLabel, nil
	case "deflate":
		return goavro.CompressionDeflateLabel, nil
	case "null", "none":
		return goavro.CompressionNullLabel, nil
	}
	return "", fmt.Errorf("unknown avro codec %q (want null, deflate or snappy)", s)
}

// AvroWriter writes records of one table to an Avro object container file
// using the table's fixed schema. Records are appended in blocks of
// batchSize; each Append call produces one OCF block.
type AvroWriter struct {
	file      *stagedFile
	buf       *bufio.Writer
	ocf       *goavro.OCFWriter
	table     *mimic.Table
	batch     []any
	batchSize int
	count     int64
}

// NewAvroWriter creates an Avro container file writer for t.
func NewAvroWriter(path string, t *mimic.Table, codec string, batchSize int) (*AvroWriter, error) {
	label, err := ParseCodec(codec)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	file, err := createStaged(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(file, 256*1024)

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               buf,
		Schema:          t.AvroSchema(),
		CompressionName: label,
	})
	if err != nil {
		file.discard()
		return nil, fmt.Errorf("create avro writer: %w", err)
	}

	return &AvroWriter{
		file:      file,
		buf:       buf,
		ocf:       ocf,
		table:     t,
		batch:     make([]any, 0, batchSize),
		batchSize: batchSize,
	}, nil
}

// Write converts rec to its Avro native form and buffers it.
func (w *AvroWriter) Write(rec mimic.Record) error {
	native, err := avroNative(w.table, rec.Values())
	if err != nil {
		return err
	}
	w.batch = append(w.batch, native)
	w.count++
	if len(w.batch) >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *AvroWriter) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	if err := w.ocf.Append(w.batch); err != nil {
		return fmt.Errorf("append avro block: %w", err)
	}
	w.batch = w.batch[:0]
	return nil
}

// Count returns the number of records written.
func (w *AvroWriter) Count() int64 { return w.count }

// Close flushes the final block and publishes the file.
func (w *AvroWriter) Close() error {
	if err := w.flush(); err != nil {
		w.file.discard()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		w.file.discard()
		return fmt.Errorf("flush avro file: %w", err)
	}
	return w.file.commit()
}

// Abort discards everything written so far.
func (w *AvroWriter) Abort() error { return w.file.discard() }

// avroNative builds the goavro native map for one record. Nullable columns
// are wrapped as unions; a nil value in a required column is an error.
func avroNative(t *mimic.Table, values []any) (map[string]any, error) {
	if len(values) != len(t.Columns) {
		return nil, fmt.Errorf("%s: record has %d values, schema has %d fields", t.Name, len(values), len(t.Columns))
	}
	native := make(map[string]any, len(values))
	for i, c := range t.Columns {
		v := values[i]
		switch {
		case !c.Nullable && v == nil:
			return nil, fmt.Errorf("%s.%s: null in required field", t.Name, c.Name)
		case !c.Nullable:
			native[c.Name] = v
		case v == nil:
			native[c.Name] = goavro.Union(avroNull, nil)
		default:
			native[c.Name] = goavro.Union(c.Kind.AvroType(), v)
		}
	}
	return native, nil
}

// AvroReader reads an Avro container file written by AvroWriter back into
// ordered column values.
type AvroReader struct {
	file  *os.File
	ocf   *goavro.OCFReader
	table *mimic.Table
}

// OpenAvro opens path for reading as records of t.
func OpenAvro(path string, t *mimic.Table) (*AvroReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open avro: %w", err)
	}
	ocf, err := goavro.NewOCFReader(bufio.NewReaderSize(file, 64<<10))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read avro header %s: %w", path, err)
	}
	return &AvroReader{file: file, ocf: ocf, table: t}, nil
}

// Schema returns the writer schema stored in the file header.
func (r *AvroReader) Schema() string { return r.ocf.Codec().Schema() }

// Next returns the next record's values in column order, unwrapping
// unions. Returns nil, io.EOF when done.
func (r *AvroReader) Next() ([]any, error) {
	if !r.ocf.Scan() {
		if err := r.ocf.Err(); err != nil {
			return nil, fmt.Errorf("scan avro: %w", err)
		}
		return nil, io.EOF
	}
	datum, err := r.ocf.Read()
	if err != nil {
		return nil, fmt.Errorf("read avro record: %w", err)
	}
	m, ok := datum.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("avro record is %T, want record", datum)
	}
	values := make([]any, len(r.table.Columns))
	for i, c := range r.table.Columns {
		v, ok := m[c.Name]
		if !ok {
			return nil, fmt.Errorf("avro record has no field %q", c.Name)
		}
		values[i] = unwrapUnion(v)
	}
	return values, nil
}

func (r *AvroReader) Close() error { return r.file.Close() }

// unwrapUnion turns goavro's {"long": 5} union encoding into 5.
func unwrapUnion(v any) any {
	u, ok := v.(map[string]any)
	if !ok || len(u) != 1 {
		return v
	}
	for _, inner := range u {
		return inner
	}
	return nil
}
