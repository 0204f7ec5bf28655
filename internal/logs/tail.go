package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	defaultPoll   = 250 * time.Millisecond
	maxLineLength = 1024 * 1024
)

// TailResult holds lines read from the log and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail returns up to limit matching lines from the end of path. A missing
// file yields no lines. limit <= 0 returns every matching line.
func Tail(path string, limit int, filter Filter) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{}, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []string
	next := 0
	full := false
	if limit > 0 {
		ring = make([]string, limit)
	}
	var all []string

	offset, err := scanLines(file, func(line string) {
		if !filter.Match(line) {
			return
		}
		if limit <= 0 {
			all = append(all, line)
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		if next == 0 {
			full = true
		}
	})
	if err != nil {
		return TailResult{}, err
	}

	if limit <= 0 {
		return TailResult{Lines: all, Offset: offset}, nil
	}
	var lines []string
	if full {
		lines = append(append(lines, ring[next:]...), ring[:next]...)
	} else {
		lines = append(lines, ring[:next]...)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// Follow polls path from offset and calls emit for every matching line until
// ctx ends. A file shorter than offset is read again from the start.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, filter Filter, emit func(string) error) error {
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, filter, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, emit func(string) error) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	var emitErr error
	read, err := scanLines(file, func(line string) {
		if emitErr == nil && filter.Match(line) {
			emitErr = emit(line)
		}
	})
	if err != nil {
		return offset, err
	}
	return offset + read, emitErr
}

// scanLines calls fn for every complete line in r and returns the number of
// bytes consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineLength {
			continue
		}
		fn(line[:len(line)-1])
	}
}
