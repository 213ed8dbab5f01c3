package mapreduce

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// StreamMap runs mapper over every line of r and writes the pairs to w,
// one "<key>\t<value>" line each.
func StreamMap(ctx context.Context, r io.Reader, w io.Writer, mapper Mapper) error {
	out := bufio.NewWriter(w)
	scanner := newScanner(r)
	for n := 0; scanner.Scan(); n++ {
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for _, kv := range mapper.Map(scanner.Text()) {
			if _, err := fmt.Fprintln(out, kv.String()); err != nil {
				return fmt.Errorf("write pair: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return out.Flush()
}

// StreamReduce feeds every line of r to an AverageReducer and writes its
// result line to w.
func StreamReduce(ctx context.Context, r io.Reader, w io.Writer) error {
	var reducer AverageReducer
	scanner := newScanner(r)
	for n := 0; scanner.Scan(); n++ {
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		reducer.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	_, err := fmt.Fprintln(w, reducer.Result())
	return err
}

// AverageAge runs the whole job locally over PATIENTS files.
func AverageAge(ctx context.Context, files []string, mapper AgeMapper, parallel int) (*AverageReducer, error) {
	reducer := &AverageReducer{}
	if _, err := NewEngine(parallel).Execute(ctx, files, mapper, reducer); err != nil {
		return nil, err
	}
	return reducer, nil
}
