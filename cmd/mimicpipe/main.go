// Command mimicpipe converts MIMIC-III CSV extracts to Avro, publishes them
// to HDFS, defines Hive external tables over them and runs the fixed
// analytical queries.
//
// Usage:
//
//	mimicpipe convert [--table icustays] [--format avro|parquet]
//	mimicpipe verify
//	mimicpipe put [--overwrite]
//	mimicpipe ls
//	mimicpipe ddl [--exec] [--replace]
//	mimicpipe query [NAME...] [--top 10]
//	mimicpipe load-pg && mimicpipe pg-query
//	mimicpipe mapper | sort | mimicpipe reducer
//	mimicpipe avg-age data/PATIENTS.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mimicpipe/config"
	"mimicpipe/logger"
	"mimicpipe/mimic"
	"mimicpipe/sink"
)

type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger

	// flag values, applied over cfg only when set on the command line
	inputDir  string
	outputDir string
	format    string
	codec     string
	logLevel  string
	logFormat string
	tables    []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mimicpipe",
		Short:         "MIMIC-III CSV to Avro/HDFS/Hive pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.inputDir, "input", "", "directory holding the MIMIC-III CSV files (default data)")
	pf.StringVar(&a.outputDir, "output", "", "directory for converted files (default out)")
	pf.StringVar(&a.format, "format", "", "output format: avro or parquet (default avro)")
	pf.StringVar(&a.codec, "codec", "", "Avro codec: snappy, deflate or null (default snappy)")
	pf.StringSliceVar(&a.tables, "table", nil, "restrict to these tables (repeatable; default all)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "", "console or json")

	root.AddCommand(
		a.convertCmd(),
		a.verifyCmd(),
		a.putCmd(),
		a.lsCmd(),
		a.ddlCmd(),
		a.queryCmd(),
		a.loadPGCmd(),
		a.pgQueryCmd(),
		a.mapperCmd(),
		a.reducerCmd(),
		a.avgAgeCmd(),
	)
	return root
}

// setup builds the configuration in precedence order: defaults, config
// file, environment, then explicitly set flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override(flags, "input", &cfg.InputDir, a.inputDir)
	override(flags, "output", &cfg.OutputDir, a.outputDir)
	override(flags, "format", &cfg.Format, a.format)
	override(flags, "codec", &cfg.Codec, a.codec)
	override(flags, "log-level", &cfg.Log.Level, a.logLevel)
	override(flags, "log-format", &cfg.Log.Format, a.logFormat)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func override(flags *pflag.FlagSet, name string, dst *string, v string) {
	if flags.Changed(name) {
		*dst = v
	}
}

func (a *app) selectedTables() ([]*mimic.Table, error) {
	return mimic.Select(a.tables)
}

func (a *app) outputFormat() sink.Format {
	f, _ := sink.ParseFormat(a.cfg.Format) // checked by Validate
	return f
}
