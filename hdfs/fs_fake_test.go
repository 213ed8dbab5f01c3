package hdfs_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// fakeFS is an in-memory FileSystem for unit tests.
type fakeFS struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string][]byte

	failRename bool
	renames    int
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		dirs:  map[string]bool{"/": true},
		files: make(map[string][]byte),
	}
}

func notExist(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: os.ErrNotExist}
}

func (f *fakeFS) MkdirAll(dir string, perm os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for d := path.Clean(dir); d != "/"; d = path.Dir(d) {
		f.dirs[d] = true
	}
	return nil
}

func (f *fakeFS) Create(name string) (io.WriteCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[path.Dir(name)] {
		return nil, notExist("create", name)
	}
	return &fakeFile{fs: f, name: name}, nil
}

func (f *fakeFS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRename {
		return errors.New("rename refused")
	}
	data, ok := f.files[oldpath]
	if !ok {
		return notExist("rename", oldpath)
	}
	if _, exists := f.files[newpath]; exists {
		return &os.PathError{Op: "rename", Path: newpath, Err: os.ErrExist}
	}
	delete(f.files, oldpath)
	f.files[newpath] = data
	f.renames++
	return nil
}

func (f *fakeFS) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; !ok {
		return notExist("remove", name)
	}
	delete(f.files, name)
	return nil
}

func (f *fakeFS) Stat(name string) (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.files[name]; ok {
		return fakeInfo{name: path.Base(name), size: int64(len(data))}, nil
	}
	if f.dirs[name] {
		return fakeInfo{name: path.Base(name), dir: true}, nil
	}
	return nil, notExist("stat", name)
}

func (f *fakeFS) ReadDir(dir string) ([]os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[dir] {
		return nil, notExist("readdir", dir)
	}
	var out []os.FileInfo
	for name, data := range f.files {
		if path.Dir(name) == dir {
			out = append(out, fakeInfo{name: path.Base(name), size: int64(len(data))})
		}
	}
	for d := range f.dirs {
		if d != dir && path.Dir(d) == dir {
			out = append(out, fakeInfo{name: path.Base(d), dir: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// names returns every file path, sorted.
func (f *fakeFS) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name := range f.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (f *fakeFS) hidden() []string {
	var out []string
	for _, name := range f.names() {
		if strings.HasPrefix(path.Base(name), ".") {
			out = append(out, name)
		}
	}
	return out
}

type fakeFile struct {
	fs   *fakeFS
	name string
	buf  bytes.Buffer
}

func (w *fakeFile) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fakeFile) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.files[w.name] = w.buf.Bytes()
	return nil
}

type fakeInfo struct {
	name string
	size int64
	dir  bool
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) ModTime() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }

func (i fakeInfo) Mode() os.FileMode {
	if i.dir {
		return os.ModeDir | 0755
	}
	return 0644
}
