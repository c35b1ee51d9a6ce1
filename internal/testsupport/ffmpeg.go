package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FakeFFmpeg stands in for the ffmpeg runner. Run writes a small placeholder
// to the output path (the final argument) and records the invocation.
type FakeFFmpeg struct {
	mu    sync.Mutex
	calls [][]string

	// Err, when set, is returned from every Run call.
	Err error
	// Length is returned by Duration; zero makes Duration fail.
	Length time.Duration
}

// Run implements the runner interface.
func (f *FakeFFmpeg) Run(ctx context.Context, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Err != nil {
		return f.Err
	}
	if len(args) == 0 {
		return nil
	}
	out := args[len(args)-1]
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, []byte("media"), 0o644)
}

// Duration implements the runner interface.
func (f *FakeFFmpeg) Duration(context.Context, string) (time.Duration, error) {
	if f.Length <= 0 {
		return 0, os.ErrNotExist
	}
	return f.Length, nil
}

// Calls returns a copy of every recorded argument list.
func (f *FakeFFmpeg) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}
