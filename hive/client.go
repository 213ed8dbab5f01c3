package hive

import (
	"context"
	"fmt"
	"time"

	"github.com/beltran/gohive"
	"go.uber.org/zap"

	"mimicpipe/mimic"
)

// Config locates HiveServer2.
type Config struct {
	Host     string
	Port     int
	Auth     string // NONE, NOSASL, KERBEROS, LDAP
	Username string
	Password string
	Database string
}

// Client runs statements on HiveServer2.
type Client struct {
	conn *gohive.Connection
	log  *zap.Logger
}

// Dial opens a HiveServer2 session.
func Dial(cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conf := gohive.NewConnectConfiguration()
	conf.Username = cfg.Username
	conf.Password = cfg.Password
	if cfg.Database != "" {
		conf.Database = cfg.Database
	}
	auth := cfg.Auth
	if auth == "" {
		auth = "NONE"
	}

	conn, err := gohive.Connect(cfg.Host, cfg.Port, auth, conf)
	if err != nil {
		return nil, fmt.Errorf("connect to hive %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Exec runs a statement that returns no rows.
func (c *Client) Exec(ctx context.Context, stmt string) error {
	cursor := c.conn.Cursor()
	defer cursor.Close()

	start := time.Now()
	cursor.Exec(ctx, stmt)
	if cursor.Err != nil {
		return fmt.Errorf("hive exec: %w", cursor.Err)
	}
	c.log.Debug("executed",
		zap.String("statement", firstLine(stmt)),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return nil
}

// Query runs q and materializes its rows in column order.
func (c *Client) Query(ctx context.Context, q Query) (*Result, error) {
	cursor := c.conn.Cursor()
	defer cursor.Close()

	start := time.Now()
	cursor.Exec(ctx, q.SQL)
	if cursor.Err != nil {
		return nil, fmt.Errorf("hive query %s: %w", q.Name, cursor.Err)
	}

	res := &Result{}
	for _, d := range cursor.Description() {
		res.Columns = append(res.Columns, d[0])
	}
	for cursor.HasMore(ctx) {
		m := cursor.RowMap(ctx)
		if cursor.Err != nil {
			return nil, fmt.Errorf("hive fetch %s: %w", q.Name, cursor.Err)
		}
		row := make([]any, len(res.Columns))
		for i, name := range res.Columns {
			row[i] = m[name]
		}
		res.Rows = append(res.Rows, row)
	}
	if cursor.Err != nil {
		return nil, fmt.Errorf("hive fetch %s: %w", q.Name, cursor.Err)
	}

	c.log.Info("query done",
		zap.String("query", q.Name),
		zap.Int("rows", len(res.Rows)),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return res, nil
}

// CreateTables creates the external tables, dropping them first when
// replace is set.
func (c *Client) CreateTables(ctx context.Context, tables []*mimic.Table, opts DDLOptions, replace bool) error {
	if opts.Database != "" && opts.Database != "default" {
		if err := c.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+opts.Database); err != nil {
			return err
		}
	}
	for _, t := range tables {
		if replace {
			if err := c.Exec(ctx, DropTable(t, opts.Database)); err != nil {
				return fmt.Errorf("drop %s: %w", t.Name, err)
			}
		}
		if err := c.Exec(ctx, CreateTable(t, opts)); err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
		c.log.Info("table ready",
			zap.String("table", t.Name),
			zap.String("location", Location(opts.Root, t)))
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
