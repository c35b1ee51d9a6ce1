package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "mediafactory-no-such-binary"},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected stub to resolve cleanly, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "mediafactory-no-such-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
}

func TestBlockingIgnoresOptional(t *testing.T) {
	lookPath := func(name string) (string, error) {
		if name == "ffmpeg" {
			return "/usr/bin/ffmpeg", nil
		}
		return "", exec.ErrNotFound
	}
	statuses := checkWith([]Requirement{
		{Name: "FFmpeg", Command: " ffmpeg "},
		{Name: "FFprobe", Command: "ffprobe", Optional: true},
		{Name: "Encoder", Command: "svt-av1"},
		{Name: "Unset"},
	}, lookPath)

	if !statuses[0].Available || statuses[0].Command != "ffmpeg" {
		t.Fatalf("expected trimmed ffmpeg to resolve, got %#v", statuses[0])
	}
	if statuses[3].Detail != "command not configured" {
		t.Fatalf("unexpected detail for empty command: %q", statuses[3].Detail)
	}
	blocking := Blocking(statuses)
	if len(blocking) != 2 || blocking[0].Name != "Encoder" || blocking[1].Name != "Unset" {
		t.Fatalf("unexpected blocking set: %#v", blocking)
	}
}

func TestResolveFFprobeSibling(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	ffprobePath := filepath.Join(tmp, executableName("ffprobe"))
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if err := os.WriteFile(ffprobePath, script, 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}

	if got := ResolveFFmpegPath(ffmpegPath); got != ffmpegPath {
		t.Fatalf("expected configured ffmpeg %q, got %q", ffmpegPath, got)
	}
	if got := ResolveFFprobePath(ffmpegPath); got != ffprobePath {
		t.Fatalf("expected sibling ffprobe %q, got %q", ffprobePath, got)
	}
}

func TestCheckFFmpegPathFallback(t *testing.T) {
	tmp := t.TempDir()
	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	if err := os.WriteFile(ffmpegPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	status := CheckFFmpeg("")
	if !status.Available {
		t.Fatalf("expected ffmpeg from PATH to be available, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath {
		t.Fatalf("expected ffmpeg command %q, got %q", ffmpegPath, status.Command)
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckFFmpeg("")
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
