package hive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// Result is a fully materialized query result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Engine runs the fixed queries. Implemented by Client and by the
// PostgreSQL runner in package pgload.
type Engine interface {
	Query(ctx context.Context, q Query) (*Result, error)
}

// Print writes r as an aligned table.
func (r *Result) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, c := range r.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, row := range r.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, FormatValue(v))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// FormatValue renders a result cell. Doubles get two decimals; NULL is
// printed as NULL.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', 2, 32)
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
