package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1 << 20
)

// TailOptions selects which part of a log file Tail returns.
type TailOptions struct {
	// Offset < 0 returns the last Lines lines. Offset >= 0 returns every line
	// written at or after that byte offset.
	Offset int64
	Lines  int
	// Follow waits up to Wait for new lines when none are available yet.
	Follow bool
	Wait   time.Duration
}

// Chunk is a batch of log lines and the offset to resume from.
type Chunk struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// Tail reads lines from path. A missing file yields an empty chunk so callers
// can follow a job whose first stage has not started logging yet.
func Tail(ctx context.Context, path string, opts TailOptions) (Chunk, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if opts.Follow && opts.Wait > 0 {
			return waitForLines(ctx, path, 0, opts.Wait)
		}
		return Chunk{}, nil
	case err != nil:
		return Chunk{}, fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return Chunk{}, fmt.Errorf("log path %q is a directory", path)
	}

	var chunk Chunk
	if opts.Offset < 0 {
		chunk, err = lastLines(path, opts.Lines)
	} else {
		chunk, err = linesFrom(path, min(opts.Offset, info.Size()))
	}
	if err != nil {
		return chunk, err
	}
	if len(chunk.Lines) == 0 && opts.Follow && opts.Wait > 0 {
		return waitForLines(ctx, path, chunk.Offset, opts.Wait)
	}
	return chunk, nil
}

func lastLines(path string, limit int) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	ring := make([]string, 0, limit)
	next := 0
	scanner := newScanner(file)
	for scanner.Scan() {
		if len(ring) < limit {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[next] = scanner.Text()
		next = (next + 1) % limit
	}
	if err := scanner.Err(); err != nil {
		return Chunk{}, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, 0, len(ring))
	lines = append(lines, ring[next:]...)
	lines = append(lines, ring[:next]...)
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return Chunk{}, fmt.Errorf("determine log offset: %w", err)
	}
	return Chunk{Lines: lines, Offset: end}, nil
}

func linesFrom(path string, offset int64) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	chunk := Chunk{Offset: offset}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A partial line stays unread until its newline arrives.
			return chunk, nil
		}
		if err != nil {
			return chunk, fmt.Errorf("read log file: %w", err)
		}
		chunk.Offset += int64(len(line))
		chunk.Lines = append(chunk.Lines, line[:len(line)-1])
	}
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration) (Chunk, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		chunk, err := linesFrom(path, offset)
		if err != nil || len(chunk.Lines) > 0 {
			return chunk, err
		}
		select {
		case <-ctx.Done():
			return Chunk{Offset: offset}, ctx.Err()
		case <-timer.C:
			return Chunk{Offset: offset}, nil
		case <-ticker.C:
		}
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
