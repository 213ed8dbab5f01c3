package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mimicpipe/convert"
	"mimicpipe/verify"
)

func (a *app) convertCmd() *cobra.Command {
	var (
		batchSize int
		parallel  int
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert CSV extracts to Avro (or Parquet) files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.selectedTables()
			if err != nil {
				return err
			}
			opts := convert.Options{
				InputDir:  a.cfg.InputDir,
				OutputDir: a.cfg.OutputDir,
				Format:    a.outputFormat(),
				Codec:     a.cfg.Codec,
				BatchSize: a.cfg.BatchSize,
				Parallel:  a.cfg.Parallel,
				Logger:    a.log,
			}
			if cmd.Flags().Changed("batch") {
				opts.BatchSize = batchSize
			}
			if cmd.Flags().Changed("parallel") {
				opts.Parallel = parallel
			}

			results, err := convert.All(cmd.Context(), tables, opts)
			if err != nil {
				return err
			}
			convert.PrintSummary(os.Stdout, results)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch", 0, "records per write batch (default 10000)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "tables converted concurrently (default 4)")
	return cmd
}

var errVerify = errors.New("verification failed")

func (a *app) verifyCmd() *cobra.Command {
	var skipCSV bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check converted Avro files against the catalog and source CSVs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.selectedTables()
			if err != nil {
				return err
			}
			failed := 0
			for _, t := range tables {
				avroPath := convert.OutputPath(a.cfg.OutputDir, t, "avro")
				csvPath := ""
				if !skipCSV {
					if csvPath, err = convert.FindInput(a.cfg.InputDir, t); err != nil {
						return err
					}
				}
				rep, err := verify.File(cmd.Context(), avroPath, csvPath, t)
				if err != nil {
					return fmt.Errorf("verify %s: %w", t.Name, err)
				}
				rep.Print(os.Stdout)
				if !rep.OK() {
					failed++
					a.log.Warn("verification failed", zap.String("table", t.Name), zap.Strings("problems", rep.Problems))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tables: %w", failed, len(tables), errVerify)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipCSV, "skip-csv", false, "do not compare record counts with the source CSVs")
	return cmd
}
