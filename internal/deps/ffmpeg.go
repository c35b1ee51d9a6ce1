package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const defaultFFmpeg = "ffmpeg"

// ResolveFFmpegPath returns the ffmpeg binary to execute. An explicitly
// configured binary wins; otherwise "ffmpeg" is resolved from PATH.
func ResolveFFmpegPath(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		configured = defaultFFmpeg
	}
	if resolved, err := exec.LookPath(configured); err == nil {
		return resolved
	}
	return configured
}

// ResolveFFprobePath returns the ffprobe binary that ships beside ffmpegPath,
// falling back to "ffprobe" from PATH.
func ResolveFFprobePath(ffmpegPath string) string {
	if candidate, ok := siblingBinary(ffmpegPath, "ffprobe"); ok {
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return candidate
		}
	}
	if resolved, err := exec.LookPath("ffprobe"); err == nil {
		return resolved
	}
	return "ffprobe"
}

// CheckFFmpeg reports the ffmpeg binary used for voice fallback, slide clips
// and composition.
func CheckFFmpeg(configured string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Required for composing videos",
	}
	command := ResolveFFmpegPath(configured)
	result.Command = command
	if info, err := os.Stat(command); err == nil && isExecutable(info) {
		result.Available = true
		return result
	}
	result.Detail = fmt.Sprintf("binary %q not found", command)
	return result
}

func siblingBinary(path, name string) (string, bool) {
	if path == "" || !filepath.IsAbs(path) {
		return "", false
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(path), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
