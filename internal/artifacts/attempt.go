package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mediafactory/internal/fileutil"
	"mediafactory/internal/jobs"
	"mediafactory/internal/services"
)

const errorFileName = "error.txt"

// Attempt is the staging area of one stage execution.
type Attempt struct {
	store   *Store
	jobID   string
	stage   jobs.Stage
	number  int
	partial string
	final   string
	primary string
	done    bool
}

// Number returns the attempt number.
func (a *Attempt) Number() int { return a.number }

// Stage returns the stage the attempt belongs to.
func (a *Attempt) Stage() jobs.Stage { return a.stage }

// Dir returns the staging directory executors write into.
func (a *Attempt) Dir() string { return a.partial }

// FinalDir returns the directory the attempt occupies once committed.
func (a *Attempt) FinalDir() string { return a.final }

// Path joins name onto the staging directory.
func (a *Attempt) Path(name string) string {
	return filepath.Join(a.partial, name)
}

// WriteFile atomically writes a file into the staging directory.
func (a *Attempt) WriteFile(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(a.Path(name), data, 0o644)
}

// WriteStream copies r into a staging file and returns the bytes written.
func (a *Attempt) WriteStream(name string, r io.Reader) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	return fileutil.WriteStream(a.Path(name), r)
}

// SetPrimary marks the file the recorded artifact points at.
func (a *Attempt) SetPrimary(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	a.primary = name
	return nil
}

// Primary returns the primary file name, or "" if none was set.
func (a *Attempt) Primary() string { return a.primary }

// Commit hashes the primary file and renames the staging directory into its
// final write-once location. The returned artifact is ready for jobs.Store.Advance.
func (a *Attempt) Commit(ctx context.Context) (jobs.Artifact, error) {
	if a.done {
		return jobs.Artifact{}, fmt.Errorf("%w: attempt %d of %s already closed", services.ErrConflict, a.number, a.stage)
	}
	if a.primary == "" {
		return jobs.Artifact{}, services.Wrap(services.ErrPermanent, string(a.stage), "commit artifact", "executor did not mark a primary file", nil)
	}
	sum, size, err := fileutil.HashFile(a.Path(a.primary))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return jobs.Artifact{}, services.Wrap(services.ErrPermanent, string(a.stage), "commit artifact",
				fmt.Sprintf("primary file %s was not written", a.primary), err)
		}
		return jobs.Artifact{}, fmt.Errorf("hash primary: %w", err)
	}

	err = a.store.withJobLock(ctx, a.jobID, func() error {
		if _, statErr := os.Stat(a.final); statErr == nil {
			return fmt.Errorf("%w: %s already committed", services.ErrConflict, a.final)
		}
		return os.Rename(a.partial, a.final)
	})
	if err != nil {
		return jobs.Artifact{}, err
	}
	a.done = true
	return jobs.Artifact{
		JobID:     a.jobID,
		Stage:     a.stage,
		Attempt:   a.number,
		Path:      filepath.Join(a.final, a.primary),
		SHA256:    sum,
		SizeBytes: size,
		CreatedAt: a.store.now(),
	}, nil
}

// Fail records reason next to the partial files and closes the attempt.
func (a *Attempt) Fail(reason string) error {
	if a.done {
		return nil
	}
	a.done = true
	return os.WriteFile(a.Path(errorFileName), []byte(strings.TrimSpace(reason)+"\n"), 0o644)
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid artifact file name %q", services.ErrValidation, name)
	}
	return nil
}
