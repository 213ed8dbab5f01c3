// Package hdfs uploads converted table files into the HDFS layout that the
// Hive external tables point at: <root>/<table>/<file>.
package hdfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/colinmarc/hdfs/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mimicpipe/mimic"
)

// ErrExists is returned by Put when the target file exists and overwrite
// is off.
var ErrExists = errors.New("target already exists")

// FileSystem is the subset of HDFS operations the uploader needs.
type FileSystem interface {
	MkdirAll(dir string, perm os.FileMode) error
	Create(name string) (io.WriteCloser, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
	ReadDir(dir string) ([]os.FileInfo, error)
}

// Config locates the namenode.
type Config struct {
	Namenode string
	User     string
}

// Client is a FileSystem backed by a namenode connection.
type Client struct {
	c *hdfs.Client
}

// Dial connects to the namenode.
func Dial(cfg Config) (*Client, error) {
	c, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: []string{cfg.Namenode},
		User:      cfg.User,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to namenode %s: %w", cfg.Namenode, err)
	}
	return &Client{c: c}, nil
}

func (c *Client) MkdirAll(dir string, perm os.FileMode) error { return c.c.MkdirAll(dir, perm) }

func (c *Client) Create(name string) (io.WriteCloser, error) {
	w, err := c.c.Create(name)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (c *Client) Rename(oldpath, newpath string) error { return c.c.Rename(oldpath, newpath) }

func (c *Client) Remove(name string) error { return c.c.Remove(name) }

func (c *Client) Stat(name string) (os.FileInfo, error) { return c.c.Stat(name) }

func (c *Client) ReadDir(dir string) ([]os.FileInfo, error) { return c.c.ReadDir(dir) }

func (c *Client) Close() error { return c.c.Close() }

// Uploader copies local files under Root.
type Uploader struct {
	FS        FileSystem
	Root      string
	Overwrite bool
	Logger    *zap.Logger
}

func (u *Uploader) logger() *zap.Logger {
	if u.Logger == nil {
		return zap.NewNop()
	}
	return u.Logger
}

// TableDir returns <root>/<table>.
func (u *Uploader) TableDir(t *mimic.Table) string {
	return path.Join(u.Root, t.Name)
}

// Put uploads localPath into the table's directory and returns the remote
// path. The data is written to a temporary name first and renamed into
// place, so readers never see a partial file.
func (u *Uploader) Put(ctx context.Context, localPath string, t *mimic.Table) (string, error) {
	dir := u.TableDir(t)
	target := path.Join(dir, filepath.Base(localPath))
	log := u.logger().With(zap.String("table", t.Name), zap.String("target", target))

	if _, err := u.FS.Stat(target); err == nil {
		if !u.Overwrite {
			return "", fmt.Errorf("%s: %w", target, ErrExists)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", target, err)
	}

	if err := u.FS.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	start := time.Now()
	tmp := path.Join(dir, "._"+path.Base(target)+"."+uuid.NewString()+".tmp")
	n, err := u.copyTo(ctx, tmp, src)
	if err != nil {
		u.FS.Remove(tmp)
		return "", err
	}

	if u.Overwrite {
		if err := u.FS.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.FS.Remove(tmp)
			return "", fmt.Errorf("replace %s: %w", target, err)
		}
	}
	if err := u.FS.Rename(tmp, target); err != nil {
		u.FS.Remove(tmp)
		return "", fmt.Errorf("rename into %s: %w", target, err)
	}

	log.Info("uploaded",
		zap.String("source", localPath),
		zap.String("size", humanize.Bytes(uint64(n))),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return target, nil
}

func (u *Uploader) copyTo(ctx context.Context, name string, src io.Reader) (int64, error) {
	dst, err := u.FS.Create(name)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}
	n, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src})
	if err != nil {
		dst.Close()
		return n, fmt.Errorf("write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", name, err)
	}
	return n, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Entry is one uploaded file.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the files under each table directory, sorted by path.
// Missing table directories are skipped.
func (u *Uploader) List(tables []*mimic.Table) ([]Entry, error) {
	var entries []Entry
	for _, t := range tables {
		dir := u.TableDir(t)
		infos, err := u.FS.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, fi := range infos {
			// Hidden names are in-flight uploads.
			if fi.IsDir() || strings.HasPrefix(fi.Name(), ".") {
				continue
			}
			entries = append(entries, Entry{
				Path:    path.Join(dir, fi.Name()),
				Size:    fi.Size(),
				ModTime: fi.ModTime(),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// PrintList writes entries one per line.
func PrintList(w io.Writer, entries []Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%10s  %s  %s\n", humanize.Bytes(uint64(e.Size)), e.ModTime.UTC().Format(time.RFC3339), e.Path)
	}
}
