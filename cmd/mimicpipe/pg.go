package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mimicpipe/convert"
	"mimicpipe/hive"
	"mimicpipe/pgload"
)

func (a *app) pgDSN(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Postgres.DSN
}

func (a *app) loadPGCmd() *cobra.Command {
	var (
		dsn     string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "load-pg",
		Short: "Load converted Avro files into PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.selectedTables()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := pgload.Connect(ctx, a.pgDSN(dsn), a.cfg.Postgres.MaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			loader := &pgload.Loader{
				Pool:      pool,
				BatchSize: a.cfg.BatchSize,
				Replace:   replace,
				Logger:    a.log,
			}
			for _, t := range tables {
				path := convert.OutputPath(a.cfg.OutputDir, t, "avro")
				n, err := loader.LoadFile(ctx, path, t)
				if err != nil {
					return fmt.Errorf("load %s: %w", t.Name, err)
				}
				fmt.Printf("  %-14s %d rows\n", t.Name+":", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "pg", "", "PostgreSQL connection string (default from config)")
	cmd.Flags().BoolVar(&replace, "replace", true, "drop and recreate tables before loading")
	return cmd
}

func (a *app) pgQueryCmd() *cobra.Command {
	var (
		dsn  string
		topN int
	)
	cmd := &cobra.Command{
		Use:   "pg-query [NAME...]",
		Short: "Run the fixed analytical queries on PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := selectQueries(args, topN)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := pgload.Connect(ctx, a.pgDSN(dsn), a.cfg.Postgres.MaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			return runQueries(ctx, &pgload.Runner{Pool: pool}, queries)
		},
	}
	cmd.Flags().StringVar(&dsn, "pg", "", "PostgreSQL connection string (default from config)")
	cmd.Flags().IntVar(&topN, "top", hive.DefaultTopN, "number of diagnosis codes in los-by-diagnosis")
	return cmd
}
