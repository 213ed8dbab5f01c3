// Package convert turns MIMIC-III CSV extracts into Avro or Parquet files,
// one output file per table.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mimicpipe/mimic"
	"mimicpipe/sink"
)

// ErrCountMismatch is returned when the number of records written differs
// from input rows minus dropped duplicates.
var ErrCountMismatch = errors.New("record count mismatch")

const progressInterval = 5 * time.Second

// Options configures a conversion run.
type Options struct {
	InputDir  string
	OutputDir string
	Format    sink.Format
	Codec     string
	BatchSize int
	Parallel  int // tables converted concurrently by All
	Logger    *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Result summarizes one converted table.
type Result struct {
	Table      *mimic.Table
	Input      string
	Output     string
	Rows       int64 // non-empty CSV data rows, duplicates included
	Duplicates int64
	Written    int64
	InputSize  int64
	OutputSize int64
	Elapsed    time.Duration
}

// FindInput locates the CSV for t in dir. It accepts the canonical name
// (ICUSTAYS.csv), its lower-case form, and gzip-compressed variants.
func FindInput(dir string, t *mimic.Table) (string, error) {
	base := t.CSVFile
	candidates := []string{
		base,
		strings.ToLower(base),
		base + ".gz",
		strings.ToLower(base) + ".gz",
	}
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("find input for %s in %s: %w", t.Name, dir, os.ErrNotExist)
}

// OutputPath returns <dir>/<table>/<table>.<ext>.
func OutputPath(dir string, t *mimic.Table, format sink.Format) string {
	if format == "" {
		format = sink.FormatAvro
	}
	return filepath.Join(dir, t.Name, t.Name+format.Ext())
}

// Table converts a single table.
func Table(ctx context.Context, t *mimic.Table, opts Options) (*Result, error) {
	log := opts.logger().With(zap.String("table", t.Name))
	start := time.Now()

	inputPath, err := FindInput(opts.InputDir, t)
	if err != nil {
		return nil, err
	}
	outputPath := OutputPath(opts.OutputDir, t, opts.Format)

	reader, err := mimic.NewCSVReader(inputPath, t)
	if err != nil {
		return nil, fmt.Errorf("open CSV: %w", err)
	}
	defer reader.Close()

	writer, err := sink.New(outputPath, t, sink.Options{
		Format:    opts.Format,
		Codec:     opts.Codec,
		BatchSize: opts.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", opts.Format, err)
	}

	log.Info("converting",
		zap.String("input", inputPath),
		zap.String("output", outputPath))

	if err := copyRecords(ctx, reader, writer, log, start); err != nil {
		writer.Abort()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close output: %w", err)
	}

	res := &Result{
		Table:      t,
		Input:      inputPath,
		Output:     outputPath,
		Rows:       reader.Rows(),
		Duplicates: reader.Duplicates(),
		Written:    writer.Count(),
		InputSize:  fileSize(inputPath),
		OutputSize: fileSize(outputPath),
		Elapsed:    time.Since(start),
	}
	if res.Written != res.Rows-res.Duplicates {
		return res, fmt.Errorf("%s: wrote %d records from %d rows with %d duplicates: %w",
			t.Name, res.Written, res.Rows, res.Duplicates, ErrCountMismatch)
	}

	log.Info("converted",
		zap.Int64("rows", res.Rows),
		zap.Int64("duplicates", res.Duplicates),
		zap.Int64("written", res.Written),
		zap.Duration("elapsed", res.Elapsed.Round(time.Millisecond)))
	return res, nil
}

func copyRecords(ctx context.Context, reader *mimic.CSVReader, writer sink.Writer, log *zap.Logger, start time.Time) error {
	lastLog := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read CSV: %w", err)
		}
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", reader.RowNum(), err)
		}

		if time.Since(lastLog) >= progressInterval {
			elapsed := time.Since(start).Seconds()
			log.Info("progress",
				zap.Int64("rows", reader.Rows()),
				zap.Int64("written", writer.Count()),
				zap.Float64("rows_per_sec", float64(writer.Count())/elapsed))
			lastLog = time.Now()
		}
	}
}

// All converts tables concurrently, at most opts.Parallel at a time. Results
// are returned in the order of tables. The first failure cancels the rest.
func All(ctx context.Context, tables []*mimic.Table, opts Options) ([]*Result, error) {
	results := make([]*Result, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, t := range tables {
		i, t := i, t // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			res, err := Table(ctx, t, opts)
			if err != nil {
				return fmt.Errorf("convert %s: %w", t.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PrintSummary writes the per-table summary in aligned columns.
func PrintSummary(w io.Writer, results []*Result) {
	var total time.Duration
	for _, r := range results {
		fmt.Fprintf(w, "%s\n", r.Table.Name)
		fmt.Fprintf(w, "  Input:        %s (%s)\n", r.Input, humanize.Bytes(uint64(r.InputSize)))
		fmt.Fprintf(w, "  Output:       %s (%s)\n", r.Output, humanize.Bytes(uint64(r.OutputSize)))
		fmt.Fprintf(w, "  CSV rows:     %s\n", humanize.Comma(r.Rows))
		fmt.Fprintf(w, "  Duplicates:   %s\n", humanize.Comma(r.Duplicates))
		fmt.Fprintf(w, "  Records:      %s\n", humanize.Comma(r.Written))
		if r.OutputSize > 0 {
			fmt.Fprintf(w, "  Compression:  %.1fx\n", float64(r.InputSize)/float64(r.OutputSize))
		}
		fmt.Fprintf(w, "  Elapsed:      %s\n", r.Elapsed.Round(time.Millisecond))
		if r.Elapsed > total {
			total = r.Elapsed
		}
	}
	fmt.Fprintf(w, "Done in %s\n", total.Round(time.Millisecond))
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
