// Package mapreduce implements the average-age job over PATIENTS.csv, both
// as Hadoop-streaming mapper and reducer processes and as a local
// in-process engine.
package mapreduce

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// KeyValue is one intermediate pair.
type KeyValue struct {
	Key   string
	Value string
}

// String renders the pair as a streaming line.
func (kv KeyValue) String() string { return kv.Key + "\t" + kv.Value }

// Mapper turns one input line into zero or more pairs.
type Mapper interface {
	Map(line string) []KeyValue
}

// Reducer receives each key once, in sorted key order, with all of its
// values.
type Reducer interface {
	Reduce(key string, values []string)
	Result() string
}

// Engine runs a job over local files.
type Engine struct {
	numMappers int
}

// NewEngine creates an engine that maps at most numMappers files at once.
func NewEngine(numMappers int) *Engine {
	if numMappers <= 0 {
		numMappers = 4
	}
	return &Engine{numMappers: numMappers}
}

// Execute maps files in parallel, shuffles the pairs by key, and feeds the
// groups to reducer.
func (e *Engine) Execute(ctx context.Context, files []string, mapper Mapper, reducer Reducer) (string, error) {
	intermediates, err := e.mapPhase(ctx, files, mapper)
	if err != nil {
		return "", err
	}

	keys, grouped := shuffle(intermediates)

	for _, k := range keys {
		reducer.Reduce(k, grouped[k])
	}
	return reducer.Result(), nil
}

func (e *Engine) mapPhase(ctx context.Context, files []string, mapper Mapper) ([]KeyValue, error) {
	var mu sync.Mutex
	var intermediates []KeyValue

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.numMappers)
	for _, file := range files {
		file := file // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			kvs, err := mapFile(ctx, file, mapper)
			if err != nil {
				return err
			}
			mu.Lock()
			intermediates = append(intermediates, kvs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return intermediates, nil
}

func mapFile(ctx context.Context, path string, mapper Mapper) ([]KeyValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var kvs []KeyValue
	scanner := newScanner(f)
	for n := 0; scanner.Scan(); n++ {
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		kvs = append(kvs, mapper.Map(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return kvs, nil
}

// shuffle groups pairs by key. Keys come back sorted, as a streaming
// reducer would see them.
func shuffle(kvs []KeyValue) ([]string, map[string][]string) {
	grouped := make(map[string][]string)
	for _, kv := range kvs {
		grouped[kv.Key] = append(grouped[kv.Key], kv.Value)
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, grouped
}

// splitPair splits a streaming line at the first tab.
func splitPair(line string) (KeyValue, bool) {
	key, value, ok := strings.Cut(line, "\t")
	if !ok {
		return KeyValue{}, false
	}
	return KeyValue{Key: key, Value: value}, true
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(bufio.NewReaderSize(r, 256*1024))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return scanner
}
