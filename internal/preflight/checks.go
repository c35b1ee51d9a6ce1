package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mediafactory/internal/config"
	"mediafactory/internal/deps"
	"mediafactory/internal/services/llm"
	"mediafactory/internal/textutil"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var (
		completer llm.Completer
		err       error
	)
	if cfg.Provider == llm.ProviderGemini {
		completer, err = llm.New(checkCtx, cfg)
		if err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
	} else {
		completer = llm.NewClient(llm.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(1))
	}
	defer completer.Close()

	if err := completer.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: completer.Provider() + " reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies that the filesystem holding path has at least
// minFree bytes available to unprivileged users.
func CheckDiskSpace(name, path string, minFree uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free on %s", textutil.FormatBytes(int64(free)), path)
	if free < minFree {
		return Result{Name: name, Detail: detail + fmt.Sprintf(" (need %s)", textutil.FormatBytes(int64(minFree)))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckFFmpeg reports whether the configured ffmpeg binary can be executed.
func CheckFFmpeg(cfg *config.Config) Result {
	status := deps.CheckFFmpeg(cfg.Compose.FFmpegBinary)
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: status.Command}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon status endpoint and the CLI health command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	ffmpegPath := deps.ResolveFFmpegPath(cfg.Compose.FFmpegBinary)
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegPath,
			Description: "Required for narration fallback, slides and composition",
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobePath(ffmpegPath),
			Description: "Measures narration length; estimates are used without it",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
