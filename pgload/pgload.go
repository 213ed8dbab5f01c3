// Package pgload loads converted Avro files into PostgreSQL and runs the
// fixed analytical queries there, so results can be checked without a
// Hadoop cluster.
package pgload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mimicpipe/hive"
	"mimicpipe/mimic"
	"mimicpipe/sink"
)

const defaultBatchSize = 10000

// Connect opens a pool and pings the server.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	poolConfig.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// CreateTableSQL renders the PostgreSQL table for t.
func CreateTableSQL(t *mimic.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	for i, c := range t.Columns {
		fmt.Fprintf(&b, "  %s %s", c.Name, c.Kind.PostgresType())
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if i < len(t.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// Loader copies Avro files into tables of the same name.
type Loader struct {
	Pool      *pgxpool.Pool
	BatchSize int
	Replace   bool // drop and recreate the table before loading
	Logger    *zap.Logger
}

// LoadFile loads the Avro file at path into t's table in one transaction
// and returns the number of rows copied.
func (l *Loader) LoadFile(ctx context.Context, path string, t *mimic.Table) (int64, error) {
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}
	batchSize := l.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	start := time.Now()

	r, err := sink.OpenAvro(path, t)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	tx, err := l.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if l.Replace {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{t.Name}.Sanitize()); err != nil {
			return 0, fmt.Errorf("drop %s: %w", t.Name, err)
		}
	}
	if _, err := tx.Exec(ctx, CreateTableSQL(t)); err != nil {
		return 0, fmt.Errorf("create %s: %w", t.Name, err)
	}

	cols := t.ColumnNames()
	pending := make([][]any, 0, batchSize)
	var total int64
	lastLog := time.Now()

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{t.Name}, cols, pgx.CopyFromRows(pending))
		if err != nil {
			return fmt.Errorf("copy %s: %w", t.Name, err)
		}
		total += n
		pending = pending[:0]
		return nil
	}

	for {
		values, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		pending = append(pending, values)
		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}

		if time.Since(lastLog) >= 5*time.Second {
			log.Info("progress", zap.String("table", t.Name), zap.Int64("rows", total+int64(len(pending))))
			lastLog = time.Now()
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	if err := tx.Commit(ctx); err != nil {
		return total, fmt.Errorf("commit: %w", err)
	}
	log.Info("loaded",
		zap.String("table", t.Name),
		zap.Int64("rows", total),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return total, nil
}

// Runner executes the fixed queries on PostgreSQL.
type Runner struct {
	Pool *pgxpool.Pool
}

var _ hive.Engine = (*Runner)(nil)

// Query runs q and materializes the result.
func (r *Runner) Query(ctx context.Context, q hive.Query) (*hive.Result, error) {
	rows, err := r.Pool.Query(ctx, q.SQL)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	defer rows.Close()

	res := &hive.Result{}
	for _, fd := range rows.FieldDescriptions() {
		res.Columns = append(res.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Name, err)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	return res, nil
}
