package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mediafactory/internal/deps"
	"mediafactory/internal/logging"
	"mediafactory/internal/services"
)

const stderrTail = 2048

// Runner executes ffmpeg invocations.
type Runner interface {
	Run(ctx context.Context, args ...string) error
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Exec runs the real binaries.
type Exec struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// New resolves the ffmpeg binary (and the ffprobe beside it).
func New(binary string, logger *slog.Logger) *Exec {
	ffmpegPath := deps.ResolveFFmpegPath(binary)
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exec{
		ffmpeg:  ffmpegPath,
		ffprobe: deps.ResolveFFprobePath(ffmpegPath),
		logger:  logger,
	}
}

// Binary returns the ffmpeg path in use.
func (e *Exec) Binary() string { return e.ffmpeg }

// Run executes ffmpeg with args. A missing binary is a configuration error;
// a non-zero exit is an external tool error carrying the tail of stderr.
func (e *Exec) Run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error"}, args...)
	cmd := exec.CommandContext(ctx, e.ffmpeg, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	e.logger.Debug("ffmpeg finished",
		logging.String("binary", e.ffmpeg),
		logging.Duration("elapsed", time.Since(started)),
		logging.Bool("ok", err == nil),
	)
	if err == nil {
		return nil
	}
	return commandError(ctx, "ffmpeg", err, stderr.String())
}

// Duration probes the container duration of path.
func (e *Exec) Duration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, commandError(ctx, "ffprobe", err, stderr.String())
	}
	return ParseDuration(string(out))
}

// ParseDuration converts ffprobe's seconds output into a duration.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("%w: unexpected ffprobe duration %q", services.ErrExternalTool, raw)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func commandError(ctx context.Context, tool string, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrConfiguration, "", tool, "binary not found", err)
	}
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > stderrTail {
		stderr = stderr[len(stderr)-stderrTail:]
	}
	if stderr == "" {
		return services.Wrap(services.ErrExternalTool, "", tool, "command failed", err)
	}
	return services.Wrap(services.ErrExternalTool, "", tool, stderr, err)
}
