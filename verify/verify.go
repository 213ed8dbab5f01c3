// Package verify re-reads converted Avro files and checks them against the
// table catalog and the source CSV.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"

	"mimicpipe/mimic"
	"mimicpipe/sink"
)

// ColumnReport holds per-column counts.
type ColumnReport struct {
	Name       string
	Nulls      int64
	TypeErrors int64
}

// Report is the outcome of checking one table.
type Report struct {
	Table       *mimic.Table
	AvroRecords int64
	CSVRecords  int64 // distinct CSV rows; -1 when no CSV was compared
	Columns     []ColumnReport
	Problems    []string
}

// OK reports whether every check passed.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

func (r *Report) problemf(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// File checks the Avro file at avroPath. When csvPath is non-empty the
// record count is compared with a fresh de-duplicated count of the CSV.
// The returned error covers I/O failures; failed checks land in Problems.
func File(ctx context.Context, avroPath, csvPath string, t *mimic.Table) (*Report, error) {
	rep := &Report{Table: t, CSVRecords: -1, Columns: make([]ColumnReport, len(t.Columns))}
	for i, c := range t.Columns {
		rep.Columns[i].Name = c.Name
	}

	r, err := sink.OpenAvro(avroPath, t)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	checkSchema(rep, r.Schema())

	for {
		if rep.AvroRecords%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		values, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", rep.AvroRecords+1, err)
		}
		rep.AvroRecords++

		for i, c := range t.Columns {
			v := values[i]
			if v == nil {
				rep.Columns[i].Nulls++
				continue
			}
			if !matchesKind(c.Kind, v) {
				rep.Columns[i].TypeErrors++
			}
		}
	}

	for i, c := range t.Columns {
		col := rep.Columns[i]
		if col.Nulls > 0 && !c.Nullable {
			rep.problemf("%s: %d nulls in required column", c.Name, col.Nulls)
		}
		if col.TypeErrors > 0 {
			rep.problemf("%s: %d values are not %s", c.Name, col.TypeErrors, c.Kind)
		}
	}

	if csvPath != "" {
		n, err := mimic.CountDistinct(csvPath, t)
		if err != nil {
			return nil, fmt.Errorf("count CSV: %w", err)
		}
		rep.CSVRecords = n
		if n != rep.AvroRecords {
			rep.problemf("record count %d does not match %d distinct CSV rows", rep.AvroRecords, n)
		}
	}
	return rep, nil
}

func matchesKind(k mimic.Kind, v any) bool {
	switch k {
	case mimic.KindInt:
		_, ok := v.(int32)
		return ok
	case mimic.KindTimestamp:
		_, ok := v.(int64)
		return ok
	case mimic.KindString:
		_, ok := v.(string)
		return ok
	case mimic.KindDouble:
		f, ok := v.(float64)
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return false
}

// checkSchema compares the writer schema stored in the file with the
// catalog's column list.
func checkSchema(rep *Report, schema string) {
	var rec struct {
		Fields []struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(schema), &rec); err != nil {
		rep.problemf("file schema: %v", err)
		return
	}
	cols := rep.Table.Columns
	if len(rec.Fields) != len(cols) {
		rep.problemf("file schema has %d fields, want %d", len(rec.Fields), len(cols))
		return
	}
	for i, f := range rec.Fields {
		c := cols[i]
		if f.Name != c.Name {
			rep.problemf("file schema field %d is %q, want %q", i, f.Name, c.Name)
			continue
		}
		want := fmt.Sprintf("%q", c.Kind.AvroType())
		if c.Nullable {
			want = fmt.Sprintf(`["null",%q]`, c.Kind.AvroType())
		}
		if string(f.Type) != want {
			rep.problemf("file schema field %s has type %s, want %s", f.Name, f.Type, want)
		}
	}
}

// Print writes the report in aligned columns.
func (r *Report) Print(w io.Writer) {
	status := "OK"
	if !r.OK() {
		status = "FAILED"
	}
	fmt.Fprintf(w, "%s: %s\n", r.Table.Name, status)
	fmt.Fprintf(w, "  Avro records: %s\n", humanize.Comma(r.AvroRecords))
	if r.CSVRecords >= 0 {
		fmt.Fprintf(w, "  CSV records:  %s\n", humanize.Comma(r.CSVRecords))
	}
	for _, c := range r.Columns {
		if c.Nulls == 0 && c.TypeErrors == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-22s nulls=%d type_errors=%d\n", c.Name, c.Nulls, c.TypeErrors)
	}
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  problem: %s\n", p)
	}
}
