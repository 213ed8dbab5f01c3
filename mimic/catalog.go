// Package mimic describes the four MIMIC-III extracts the pipeline converts
// (PATIENTS, ADMISSIONS, ICUSTAYS, DIAGNOSES_ICD) and reads them from CSV.
//
// A Table is the single source of truth for a dataset's columns. The Avro
// schema, the Hive and PostgreSQL DDL, and the Parquet layout are all derived
// from it, so the typed record structs in types.go must list the same columns
// in the same order.
package mimic

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTable is returned by Lookup when no table matches.
var ErrUnknownTable = errors.New("unknown table")

// Kind is the logical type of a column.
type Kind int

const (
	// KindInt is a 32-bit integer (Avro int).
	KindInt Kind = iota
	// KindTimestamp is milliseconds since the Unix epoch, UTC (Avro long).
	KindTimestamp
	// KindString is free text or a category label.
	KindString
	// KindDouble is a 64-bit float.
	KindDouble
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindTimestamp:
		return "timestamp"
	case KindString:
		return "string"
	case KindDouble:
		return "double"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// AvroType returns the Avro primitive the kind is stored as.
func (k Kind) AvroType() string {
	switch k {
	case KindInt:
		return "int"
	case KindTimestamp:
		return "long"
	case KindDouble:
		return "double"
	}
	return "string"
}

// HiveType returns the Hive column type matching AvroType.
func (k Kind) HiveType() string {
	switch k {
	case KindInt:
		return "INT"
	case KindTimestamp:
		return "BIGINT"
	case KindDouble:
		return "DOUBLE"
	}
	return "STRING"
}

// PostgresType returns the PostgreSQL column type matching AvroType.
func (k Kind) PostgresType() string {
	switch k {
	case KindInt:
		return "INTEGER"
	case KindTimestamp:
		return "BIGINT"
	case KindDouble:
		return "DOUBLE PRECISION"
	}
	return "TEXT"
}

// Column is one field of a table.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Record is one converted row. Values returns the column values in table
// order: int32, int64, string, float64, or nil for a null.
type Record interface {
	Values() []any
}

// Table describes one MIMIC-III extract.
type Table struct {
	Name    string // lower-case table name, also the HDFS directory name
	CSVFile string // file name of the source extract
	Columns []Column

	parse func(*Row) Record
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) String() string { return t.Name }

func col(name string, kind Kind) Column { return Column{Name: name, Kind: kind} }
func nullable(name string, kind Kind) Column { return Column{Name: name, Kind: kind, Nullable: true} }

var (
	Patients = &Table{
		Name:    "patients",
		CSVFile: "PATIENTS.csv",
		Columns: []Column{
			col("row_id", KindInt),
			col("subject_id", KindInt),
			nullable("gender", KindString),
			nullable("dob", KindTimestamp),
			nullable("dod", KindTimestamp),
			nullable("dod_hosp", KindTimestamp),
			nullable("dod_ssn", KindTimestamp),
			col("expire_flag", KindInt),
		},
		parse: parsePatient,
	}

	Admissions = &Table{
		Name:    "admissions",
		CSVFile: "ADMISSIONS.csv",
		Columns: []Column{
			col("row_id", KindInt),
			col("subject_id", KindInt),
			col("hadm_id", KindInt),
			nullable("admittime", KindTimestamp),
			nullable("dischtime", KindTimestamp),
			nullable("deathtime", KindTimestamp),
			nullable("admission_type", KindString),
			nullable("admission_location", KindString),
			nullable("discharge_location", KindString),
			nullable("insurance", KindString),
			nullable("language", KindString),
			nullable("religion", KindString),
			nullable("marital_status", KindString),
			nullable("ethnicity", KindString),
			nullable("edregtime", KindTimestamp),
			nullable("edouttime", KindTimestamp),
			nullable("diagnosis", KindString),
			col("hospital_expire_flag", KindInt),
			col("has_chartevents_data", KindInt),
		},
		parse: parseAdmission,
	}

	ICUStays = &Table{
		Name:    "icustays",
		CSVFile: "ICUSTAYS.csv",
		Columns: []Column{
			col("row_id", KindInt),
			col("subject_id", KindInt),
			col("hadm_id", KindInt),
			col("icustay_id", KindInt),
			nullable("first_careunit", KindString),
			nullable("last_careunit", KindString),
			nullable("intime", KindTimestamp),
			nullable("outtime", KindTimestamp),
			nullable("los", KindDouble),
		},
		parse: parseICUStay,
	}

	DiagnosesICD = &Table{
		Name:    "diagnoses_icd",
		CSVFile: "DIAGNOSES_ICD.csv",
		Columns: []Column{
			col("row_id", KindInt),
			col("subject_id", KindInt),
			col("hadm_id", KindInt),
			nullable("seq_num", KindInt),
			nullable("icd9_code", KindString),
		},
		parse: parseDiagnosis,
	}
)

// Tables returns every table in load order.
func Tables() []*Table {
	return []*Table{Patients, Admissions, ICUStays, DiagnosesICD}
}

// Lookup finds a table by name ("icustays") or by source file name
// ("ICUSTAYS.csv", "icustays.csv.gz"). Matching is case-insensitive.
func Lookup(name string) (*Table, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSuffix(key, ".gz")
	key = strings.TrimSuffix(key, ".csv")
	for _, t := range Tables() {
		if key == t.Name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// Select resolves a list of table names. An empty list selects every table.
func Select(names []string) ([]*Table, error) {
	if len(names) == 0 {
		return Tables(), nil
	}
	var out []*Table
	seen := make(map[*Table]bool)
	for _, n := range names {
		t, err := Lookup(n)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}
