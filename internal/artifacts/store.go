package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"mediafactory/internal/jobs"
	"mediafactory/internal/services"
)

const (
	attemptPrefix  = "attempt-"
	partialSuffix  = ".partial"
	lockFileName   = ".lock"
	lockRetryDelay = 50 * time.Millisecond
)

// Store roots artifact directories under the configured media directory.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore returns a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Root returns the media directory.
func (s *Store) Root() string {
	return s.root
}

// JobDir returns the directory holding every stage of a job.
func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// StageDir returns the directory holding every attempt of one stage.
func (s *Store) StageDir(jobID string, stage jobs.Stage) string {
	return filepath.Join(s.root, jobID, string(stage))
}

// Begin prepares a fresh staging directory for one attempt. A committed
// directory for the same attempt number is a conflict; a leftover partial
// directory from an interrupted run is cleared.
func (s *Store) Begin(ctx context.Context, jobID string, stage jobs.Stage, attempt int) (*Attempt, error) {
	if strings.TrimSpace(jobID) == "" || !stage.Valid() || attempt <= 0 {
		return nil, services.Wrap(services.ErrValidation, string(stage), "begin attempt",
			fmt.Sprintf("invalid artifact key job=%q attempt=%d", jobID, attempt), nil)
	}
	stageDir := s.StageDir(jobID, stage)
	name := attemptPrefix + strconv.Itoa(attempt)
	final := filepath.Join(stageDir, name)
	partial := final + partialSuffix

	err := s.withJobLock(ctx, jobID, func() error {
		if _, err := os.Stat(final); err == nil {
			return fmt.Errorf("%w: %s already committed", services.ErrConflict, final)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := os.RemoveAll(partial); err != nil {
			return fmt.Errorf("clear stale attempt: %w", err)
		}
		return os.MkdirAll(partial, 0o755)
	})
	if err != nil {
		return nil, err
	}
	return &Attempt{
		store:   s,
		jobID:   jobID,
		stage:   stage,
		number:  attempt,
		partial: partial,
		final:   final,
	}, nil
}

// Committed lists the committed attempt numbers of a stage in ascending order.
func (s *Store) Committed(jobID string, stage jobs.Stage) ([]int, error) {
	entries, err := os.ReadDir(s.StageDir(jobID, stage))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var attempts []int
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), partialSuffix) {
			continue
		}
		n, ok := strings.CutPrefix(entry.Name(), attemptPrefix)
		if !ok {
			continue
		}
		if value, err := strconv.Atoi(n); err == nil {
			attempts = append(attempts, value)
		}
	}
	sort.Ints(attempts)
	return attempts, nil
}

func (s *Store) withJobLock(ctx context.Context, jobID string, fn func() error) error {
	dir := s.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock job dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: job dir %s is locked", services.ErrTransient, dir)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}
