// Package hive renders DDL for the MIMIC-III external tables, holds the
// fixed analytical queries, and runs both against HiveServer2.
package hive

import (
	"fmt"
	"path"
	"strings"

	"mimicpipe/mimic"
	"mimicpipe/sink"
)

// DDLOptions controls CreateTable.
type DDLOptions struct {
	Root     string      // HDFS table root, e.g. /mimic
	Format   sink.Format // avro (default) or parquet
	Database string      // optional qualifier

	// SchemaLiteral embeds the Avro schema as avro.schema.literal.
	SchemaLiteral bool
}

func qualified(db, table string) string {
	if db == "" || db == "default" {
		return table
	}
	return db + "." + table
}

// Location returns the table's HDFS directory with a trailing slash.
func Location(root string, t *mimic.Table) string {
	return path.Join(root, t.Name) + "/"
}

// CreateTable renders CREATE EXTERNAL TABLE for t.
func CreateTable(t *mimic.Table, opts DDLOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE EXTERNAL TABLE IF NOT EXISTS %s (\n", qualified(opts.Database, t.Name))
	for i, c := range t.Columns {
		sep := ","
		if i == len(t.Columns)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "  %s %s%s\n", c.Name, c.Kind.HiveType(), sep)
	}
	b.WriteString(")\n")

	switch opts.Format {
	case sink.FormatParquet:
		b.WriteString("STORED AS PARQUET\n")
	default:
		b.WriteString("STORED AS AVRO\n")
	}
	fmt.Fprintf(&b, "LOCATION '%s'", Location(opts.Root, t))

	if opts.SchemaLiteral && opts.Format != sink.FormatParquet {
		schema := strings.ReplaceAll(t.AvroSchema(), "'", "\\'")
		fmt.Fprintf(&b, "\nTBLPROPERTIES ('avro.schema.literal'='%s')", schema)
	}
	return b.String()
}

// DropTable renders DROP TABLE for t. External table data is left in place.
func DropTable(t *mimic.Table, database string) string {
	return "DROP TABLE IF EXISTS " + qualified(database, t.Name)
}
