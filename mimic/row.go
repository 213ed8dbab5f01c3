package mimic

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order. MIMIC-III extracts use the first two;
// the rest cover re-exported files.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
}

// Row gives typed access to one CSV record. The first conversion failure is
// kept and reported by Err; later accessors return zero values.
type Row struct {
	fields []string
	colIdx map[string]int // lower-case header → field index
	num    int64
	err    error
}

// Err returns the first conversion error seen on the row.
func (r *Row) Err() error { return r.err }

// raw returns the trimmed cell for col, sanitized to valid UTF-8.
func (r *Row) raw(col string) string {
	if i, ok := r.colIdx[col]; ok && i < len(r.fields) {
		return strings.ToValidUTF8(strings.TrimSpace(r.fields[i]), "\uFFFD")
	}
	return ""
}

func (r *Row) fail(col, val string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("row %d column %s: %q: %w", r.num, col, val, err)
	}
}

// isNull reports whether a cell stands for a missing value. pandas writes
// NaN for missing floats; Hive text tables use \N.
func isNull(s string) bool {
	switch s {
	case "", "NaN", "nan", "NULL", "null", `\N`:
		return true
	}
	return false
}

// Int returns a required 32-bit integer.
func (r *Row) Int(col string) int32 {
	v := r.OptInt(col)
	if v == nil {
		if r.err == nil {
			r.err = fmt.Errorf("row %d column %s: missing required value", r.num, col)
		}
		return 0
	}
	return *v
}

// OptInt returns a nullable 32-bit integer. Integral floats such as "12.0"
// are accepted because pandas formats nullable int columns that way.
func (r *Row) OptInt(col string) *int32 {
	s := r.raw(col)
	if isNull(s) {
		return nil
	}
	v, err := parseInt32(s)
	if err != nil {
		r.fail(col, s, err)
		return nil
	}
	return &v
}

// OptTime returns a nullable timestamp as epoch milliseconds.
func (r *Row) OptTime(col string) *int64 {
	s := r.raw(col)
	if isNull(s) {
		return nil
	}
	ms, err := ParseMillis(s)
	if err != nil {
		r.fail(col, s, err)
		return nil
	}
	return &ms
}

// OptString returns a nullable string.
func (r *Row) OptString(col string) *string {
	s := r.raw(col)
	if isNull(s) {
		return nil
	}
	return &s
}

// OptFloat returns a nullable float.
func (r *Row) OptFloat(col string) *float64 {
	s := r.raw(col)
	if isNull(s) {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(col, s, err)
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseInt32(s string) (int32, error) {
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int32(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer")
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("out of int32 range")
	}
	return int32(f), nil
}

// ParseMillis parses a MIMIC timestamp and returns milliseconds since the
// Unix epoch. Values without a zone are taken as UTC.
func ParseMillis(s string) (int64, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp")
}
