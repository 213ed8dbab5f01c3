package mimic

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVReader streams a MIMIC-III CSV extract and emits one typed Record per
// distinct data row. Rows whose fields are byte-identical to an earlier row
// are dropped and counted.
type CSVReader struct {
	file   *os.File
	gz     *gzip.Reader
	csv    *csv.Reader
	table  *Table
	colIdx map[string]int // lower-case header → column index
	rowNum int64          // physical CSV row, 1-based, header included

	seen       map[string]struct{}
	rows       int64
	duplicates int64
}

// NewCSVReader opens path (plain or .gz) and validates its header against t.
func NewCSVReader(path string, t *Table) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := newCSVReader(file, path, t)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func newCSVReader(file *os.File, path string, t *Table) (*CSVReader, error) {
	var src io.Reader = file
	var gz *gzip.Reader
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		var err error
		gz, err = gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		src = gz
	}

	bufReader := bufio.NewReaderSize(src, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	r := &CSVReader{
		file:   file,
		gz:     gz,
		csv:    reader,
		table:  t,
		colIdx: make(map[string]int),
		seen:   make(map[string]struct{}),
	}
	if err := r.readHeader(); err != nil {
		if gz != nil {
			gz.Close()
		}
		return nil, err
	}
	return r, nil
}

func (r *CSVReader) readHeader() error {
	header, err := r.csv.Read()
	if err == io.EOF {
		return fmt.Errorf("read header: empty file")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	r.rowNum++

	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := r.colIdx[h]; !dup {
			r.colIdx[h] = i
		}
	}

	var missing []string
	for _, c := range r.table.Columns {
		if _, ok := r.colIdx[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s header: missing columns %s", r.table.CSVFile, strings.Join(missing, ", "))
	}
	return nil
}

// Next returns the next distinct record. Returns nil, io.EOF when done.
func (r *CSVReader) Next() (Record, error) {
	for {
		fields, err := r.csv.Read()
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, fmt.Errorf("read CSV row %d: %w", r.rowNum+1, err)
			}
			return nil, err
		}
		r.rowNum++

		// Skip empty rows
		if len(fields) == 0 || (len(fields) == 1 && fields[0] == "") {
			continue
		}
		r.rows++

		key := strings.Join(fields, "\x00")
		if _, dup := r.seen[key]; dup {
			r.duplicates++
			continue
		}
		r.seen[key] = struct{}{}

		row := Row{fields: fields, colIdx: r.colIdx, num: r.rowNum}
		rec := r.table.parse(&row)
		if err := row.Err(); err != nil {
			return nil, err
		}
		return rec, nil
	}
}

// Table returns the table being read.
func (r *CSVReader) Table() *Table { return r.table }

// RowNum returns the current physical CSV row number (1-based).
func (r *CSVReader) RowNum() int64 { return r.rowNum }

// Rows returns the number of non-empty data rows read so far, duplicates included.
func (r *CSVReader) Rows() int64 { return r.rows }

// Duplicates returns the number of rows dropped as exact duplicates.
func (r *CSVReader) Duplicates() int64 { return r.duplicates }

func (r *CSVReader) Close() error {
	var errs []error
	if r.gz != nil {
		errs = append(errs, r.gz.Close())
	}
	if r.file != nil {
		errs = append(errs, r.file.Close())
	}
	return errors.Join(errs...)
}

// CountDistinct reads the whole file and returns the number of distinct rows.
func CountDistinct(path string, t *Table) (int64, error) {
	r, err := NewCSVReader(path, t)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var n int64
	for {
		_, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}
