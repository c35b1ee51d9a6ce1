package artifacts

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediafactory/internal/logging"
)

// CleanupError pairs a directory with the error that kept it on disk.
type CleanupError struct {
	Path string
	Err  error
}

// CleanupResult lists what a sweep removed.
type CleanupResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanStalePartials removes uncommitted attempt directories (failed or
// interrupted attempts) whose last modification is older than maxAge.
// Committed attempts are never touched.
func (s *Store) CleanStalePartials(ctx context.Context, maxAge time.Duration, logger *slog.Logger) CleanupResult {
	var result CleanupResult
	if maxAge <= 0 || strings.TrimSpace(s.root) == "" {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cutoff := s.now().Add(-maxAge)

	pattern := filepath.Join(s.root, "*", "*", attemptPrefix+"*"+partialSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: s.root, Err: err})
		return result
	}
	for _, dir := range matches {
		if ctx.Err() != nil {
			break
		}
		info, err := os.Stat(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.Errors = append(result.Errors, CleanupError{Path: dir, Err: err})
			}
			continue
		}
		if !info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir, Err: err})
			logging.WarnWithContext(logger, "failed to remove stale attempt directory", "artifact_cleanup_failed",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check media_dir permissions"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir)
		logger.Debug("removed stale attempt directory",
			logging.String("path", dir),
			logging.Duration("age", s.now().Sub(info.ModTime())),
			logging.String(logging.FieldEventType, "artifact_cleanup"),
		)
	}
	if len(result.Removed) > 0 {
		logger.Info("stale attempt directories removed",
			logging.Int("count", len(result.Removed)),
			logging.String(logging.FieldEventType, "artifact_cleanup"),
		)
	}
	return result
}
