package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mimicpipe/hive"
)

func (a *app) ddlOptions(schemaLiteral bool) hive.DDLOptions {
	return hive.DDLOptions{
		Root:          a.cfg.HDFS.Root,
		Format:        a.outputFormat(),
		Database:      a.cfg.Hive.Database,
		SchemaLiteral: schemaLiteral,
	}
}

func (a *app) dialHive() (*hive.Client, error) {
	h := a.cfg.Hive
	return hive.Dial(hive.Config{
		Host:     h.Host,
		Port:     h.Port,
		Auth:     h.Auth,
		Username: h.Username,
		Password: h.Password,
		Database: h.Database,
	}, a.log)
}

func (a *app) ddlCmd() *cobra.Command {
	var (
		exec          bool
		replace       bool
		schemaLiteral bool
	)
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print (or execute) CREATE EXTERNAL TABLE statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.selectedTables()
			if err != nil {
				return err
			}
			opts := a.ddlOptions(schemaLiteral)
			if !exec {
				for _, t := range tables {
					if replace {
						fmt.Printf("%s;\n", hive.DropTable(t, opts.Database))
					}
					fmt.Printf("%s;\n\n", hive.CreateTable(t, opts))
				}
				return nil
			}

			client, err := a.dialHive()
			if err != nil {
				return err
			}
			defer client.Close()
			return client.CreateTables(cmd.Context(), tables, opts, replace)
		},
	}
	cmd.Flags().BoolVar(&exec, "exec", false, "run the statements on HiveServer2 instead of printing them")
	cmd.Flags().BoolVar(&replace, "replace", false, "drop existing tables first")
	cmd.Flags().BoolVar(&schemaLiteral, "schema-literal", false, "embed the Avro schema as avro.schema.literal")
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "query [NAME...]",
		Short: "Run the fixed analytical queries on Hive",
		Long:  "Run the fixed analytical queries on Hive: los-by-careunit, readmissions, los-by-diagnosis.",
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := selectQueries(args, topN)
			if err != nil {
				return err
			}
			client, err := a.dialHive()
			if err != nil {
				return err
			}
			defer client.Close()
			return runQueries(cmd.Context(), client, queries)
		},
	}
	cmd.Flags().IntVar(&topN, "top", hive.DefaultTopN, "number of diagnosis codes in los-by-diagnosis")
	return cmd
}

func selectQueries(names []string, topN int) ([]hive.Query, error) {
	if len(names) == 0 {
		return hive.Queries(topN), nil
	}
	var out []hive.Query
	for _, n := range names {
		q, err := hive.LookupQuery(n, topN)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func runQueries(ctx context.Context, engine hive.Engine, queries []hive.Query) error {
	for i, q := range queries {
		if i > 0 {
			fmt.Println()
		}
		res, err := engine.Query(ctx, q)
		if err != nil {
			return err
		}
		fmt.Printf("== %s ==\n", q.Title)
		if err := res.Print(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
