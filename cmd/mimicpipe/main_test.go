package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("MIMIC_FORMAT", "parquet")
	t.Setenv("MIMIC_OUTPUT_DIR", "/from/env")

	a := &app{}
	root := a.rootCmd()
	root.SetArgs([]string{"ddl", "--format", "avro", "--log-level", "error"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("ddl: %v", err)
	}
	if a.cfg.Format != "avro" {
		t.Errorf("format = %q, want flag value avro", a.cfg.Format)
	}
	if a.cfg.OutputDir != "/from/env" {
		t.Errorf("output = %q, want env value", a.cfg.OutputDir)
	}
}

func TestInvalidFormatRejected(t *testing.T) {
	a := &app{}
	root := a.rootCmd()
	root.SetArgs([]string{"ddl", "--format", "orc"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("expected an error for --format orc")
	}
}

func TestConvertThenVerify(t *testing.T) {
	out := t.TempDir()
	args := []string{"--input", "../../testdata/mimic-demo", "--output", out, "--log-level", "error"}

	a := &app{}
	root := a.rootCmd()
	root.SetArgs(append([]string{"convert", "--table", "icustays", "--table", "patients"}, args...))
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("convert: %v", err)
	}
	for _, name := range []string{"icustays", "patients"} {
		if _, err := os.Stat(filepath.Join(out, name, name+".avro")); err != nil {
			t.Errorf("missing output for %s: %v", name, err)
		}
	}

	a = &app{}
	root = a.rootCmd()
	root.SetArgs(append([]string{"verify", "--table", "icustays"}, args...))
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSelectQueries(t *testing.T) {
	qs, err := selectQueries([]string{"readmissions"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 1 || qs[0].Name != "readmissions" {
		t.Errorf("selectQueries = %+v", qs)
	}
	if _, err := selectQueries([]string{"nope"}, 0); err == nil {
		t.Error("expected error for unknown query")
	}
}
