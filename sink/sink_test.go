package sink

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"mimicpipe/mimic"
)

func strPtr(s string) *string { return &s }
func i32Ptr(v int32) *int32 { return &v }
func i64Ptr(v int64) *int64 { return &v }
func f64Ptr(f float64) *float64 { return &f }

func testStays() []mimic.ICUStay {
	return []mimic.ICUStay{
		{
			RowID: 12742, SubjectID: 10006, HadmID: 142345, ICUStayID: 206504,
			FirstCareunit: strPtr("MICU"), LastCareunit: strPtr("MICU"),
			InTime: i64Ptr(6242468215000), OutTime: i64Ptr(6242609267000),
			LOS: f64Ptr(1.6325),
		},
		{
			RowID: 12749, SubjectID: 10013, HadmID: 165520, ICUStayID: 264446,
			FirstCareunit: strPtr("MICU"),
			InTime:        i64Ptr(6210495480000),
		},
	}
}

// readAvro reads every record of path as ordered values.
func readAvro(t *testing.T, path string, tbl *mimic.Table) [][]any {
	t.Helper()

	r, err := OpenAvro(path, tbl)
	if err != nil {
		t.Fatalf("OpenAvro: %v", err)
	}
	defer r.Close()

	var out [][]any
	for {
		vals, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("AvroReader.Next: %v", err)
		}
		out = append(out, vals)
	}
}

func TestAvroWriterRoundTrip(t *testing.T) {
	for _, codec := range []string{"snappy", "deflate", "null"} {
		t.Run(codec, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "icustays", "icustays.avro")

			// Batch size 1 forces one OCF block per record.
			w, err := NewAvroWriter(path, mimic.ICUStays, codec, 1)
			if err != nil {
				t.Fatalf("NewAvroWriter: %v", err)
			}
			for _, s := range testStays() {
				if err := w.Write(s); err != nil {
					t.Fatalf("Write: %v", err)
				}
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if w.Count() != 2 {
				t.Errorf("Count() = %d, want 2", w.Count())
			}

			rows := readAvro(t, path, mimic.ICUStays)
			if len(rows) != 2 {
				t.Fatalf("read %d records, want 2", len(rows))
			}

			first := rows[0]
			if first[0] != int32(12742) || first[3] != int32(206504) {
				t.Errorf("ids = %v/%v", first[0], first[3])
			}
			if first[4] != "MICU" {
				t.Errorf("first_careunit = %v", first[4])
			}
			if first[6] != int64(6242468215000) {
				t.Errorf("intime = %v (%T), want int64 millis", first[6], first[6])
			}
			if first[8] != 1.6325 {
				t.Errorf("los = %v", first[8])
			}

			second := rows[1]
			for _, i := range []int{5, 7, 8} {
				if second[i] != nil {
					t.Errorf("%s = %v, want null", mimic.ICUStays.Columns[i].Name, second[i])
				}
			}
		})
	}
}

func TestAvroWriterSchemaInHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.avro")
	w, err := NewAvroWriter(path, mimic.Patients, "", 0)
	if err != nil {
		t.Fatalf("NewAvroWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenAvro(path, mimic.Patients)
	if err != nil {
		t.Fatalf("OpenAvro: %v", err)
	}
	defer r.Close()

	var schema struct {
		Name   string `json:"name"`
		Fields []struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(r.Schema()), &schema); err != nil {
		t.Fatalf("parse schema %s: %v", r.Schema(), err)
	}
	if schema.Name != "patients" && schema.Name != "mimic.patients" {
		t.Errorf("record name = %q", schema.Name)
	}
	if len(schema.Fields) != len(mimic.Patients.Columns) {
		t.Fatalf("%d fields, want %d", len(schema.Fields), len(mimic.Patients.Columns))
	}
	if got := string(schema.Fields[0].Type); got != `"int"` {
		t.Errorf("row_id type = %s, want \"int\"", got)
	}
	if got := string(schema.Fields[3].Type); got != `["null","long"]` {
		t.Errorf("dob type = %s, want [\"null\",\"long\"]", got)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() on empty file = %v, want io.EOF", err)
	}
}

func TestAvroWriterRejectsNullRequired(t *testing.T) {
	tbl := mimic.DiagnosesICD
	_, err := avroNative(tbl, []any{int32(1), nil, int32(3), nil, nil})
	if err == nil || !strings.Contains(err.Error(), "subject_id") {
		t.Errorf("avroNative error = %v, want null subject_id error", err)
	}
	if _, err := avroNative(tbl, []any{int32(1)}); err == nil {
		t.Error("expected error for short record")
	}
}

func TestAbortLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagnoses_icd.avro")

	w, err := New(path, mimic.DiagnosesICD, Options{Format: FormatAvro})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Write(mimic.Diagnosis{RowID: 1, SubjectID: 2, HadmID: 3, SeqNum: i32Ptr(1)}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Nothing is visible under the final name before Close.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("final file exists before Close: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not empty after Abort: %v", entries)
	}
}

func TestParquetWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icustays.parquet")

	w, err := New(path, mimic.ICUStays, Options{Format: FormatParquet})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, s := range testStays() {
		if err := w.Write(s); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Write(mimic.Patient{RowID: 1}); err == nil {
		t.Error("expected error writing a patient into an icustays file")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[mimic.ICUStay](f)
	defer reader.Close()

	rows := make([]mimic.ICUStay, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("read parquet: %v", err)
	}
	rows = rows[:n]
	if len(rows) != 2 {
		t.Fatalf("read %d rows, want 2", len(rows))
	}
	if rows[0].LOS == nil || *rows[0].LOS != 1.6325 {
		t.Errorf("los = %v", rows[0].LOS)
	}
	if rows[1].LOS != nil || rows[1].OutTime != nil || rows[1].LastCareunit != nil {
		t.Errorf("expected nulls in second row, got %+v", rows[1])
	}
}

func TestParseFormatAndCodec(t *testing.T) {
	if f, err := ParseFormat(" Parquet "); err != nil || f != FormatParquet {
		t.Errorf("ParseFormat(Parquet) = %q, %v", f, err)
	}
	if _, err := ParseFormat("orc"); err == nil {
		t.Error("expected error for orc")
	}
	if c, err := ParseCodec(""); err != nil || c != "snappy" {
		t.Errorf("ParseCodec(\"\") = %q, %v", c, err)
	}
	if _, err := ParseCodec("lz4"); err == nil {
		t.Error("expected error for lz4")
	}
}
