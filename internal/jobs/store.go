package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediafactory/internal/db"
	"mediafactory/internal/services"
)

// Store persists jobs, their per-stage state and artifact records.
type Store struct {
	db    db.DB
	now   func() time.Time
	newID func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps an opened database.
func NewStore(handle db.DB, opts ...Option) *Store {
	s := &Store{
		db:    handle,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const jobColumns = "id, topic, niche, length_seconds, language, voice_profile, status, current_stage, final_stage, last_failed_stage, error_message, created_at, updated_at, completed_at"

// Create inserts a new pending job positioned at the first stage.
func (s *Store) Create(ctx context.Context, req NewJob) (*Job, error) {
	return s.CreateWith(ctx, req, nil)
}

// CreateWith is Create with then run inside the insert's transaction; an
// error from then rolls the job back.
func (s *Store) CreateWith(ctx context.Context, req NewJob, then func(q db.Querier, job *Job) error) (*Job, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", services.ErrValidation)
	}
	if req.LengthSeconds <= 0 {
		return nil, fmt.Errorf("%w: length must be positive, got %d", services.ErrValidation, req.LengthSeconds)
	}
	final := req.FinalStage
	if final == "" {
		final = StagePublish
	}
	if !final.Valid() {
		return nil, fmt.Errorf("%w: unknown final stage %q", services.ErrValidation, final)
	}

	now := s.now().UTC()
	job := &Job{
		ID:            s.newID(),
		Topic:         topic,
		Niche:         strings.TrimSpace(req.Niche),
		LengthSeconds: req.LengthSeconds,
		Language:      strings.TrimSpace(req.Language),
		VoiceProfile:  strings.TrimSpace(req.VoiceProfile),
		Status:        StatusPending,
		CurrentStage:  StageScript,
		FinalStage:    final,
		CreatedAt:     db.Time(db.Now(now)),
		UpdatedAt:     db.Time(db.Now(now)),
		Attempts:      map[Stage]int{},
		Artifacts:     map[Stage]*Artifact{},
	}

	err := s.db.InTx(ctx, func(q db.Querier) error {
		if _, err := q.Exec(ctx,
			"INSERT INTO jobs ("+jobColumns+") VALUES ("+db.Placeholders(14)+")",
			job.ID, job.Topic, job.Niche, job.LengthSeconds, job.Language, job.VoiceProfile,
			string(job.Status), string(job.CurrentStage), string(job.FinalStage), "", "",
			db.Now(now), db.Now(now), int64(0),
		); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		if then != nil {
			return then(q, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Get loads a job with its per-stage attempts and current artifacts.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	job, err := getJob(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := loadStages(ctx, s.db, job); err != nil {
		return nil, err
	}
	return job, nil
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	args := make([]any, 0, len(opts.Statuses)+2)
	if len(opts.Statuses) > 0 {
		query += " WHERE status IN (" + db.Placeholders(len(opts.Statuses)) + ")"
		for _, status := range opts.Statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at DESC, id"
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(opts.Offset, 0))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// Stats returns the number of jobs per status. Every status is present.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.Query(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int, len(statuses))
	for _, status := range statuses {
		stats[status] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		stats[Status(status)] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job stats: %w", err)
	}
	return stats, nil
}

func getJob(ctx context.Context, q db.Querier, id string) (*Job, error) {
	job, err := scanJob(q.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, db.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

func loadStages(ctx context.Context, q db.Querier, job *Job) error {
	rows, err := q.Query(ctx, `SELECT s.stage, s.attempts, COALESCE(a.id, ''), COALESCE(a.attempt, 0),
		COALESCE(a.path, ''), COALESCE(a.sha256, ''), COALESCE(a.size_bytes, 0), COALESCE(a.created_at, 0)
		FROM job_stages s LEFT JOIN artifacts a ON a.id = s.artifact_id
		WHERE s.job_id = ?`, job.ID)
	if err != nil {
		return fmt.Errorf("load stages for %s: %w", job.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stage      string
			attempts   int64
			artifactID string
			attempt    int64
			path       string
			sum        string
			size       int64
			createdAt  int64
		)
		if err := rows.Scan(&stage, &attempts, &artifactID, &attempt, &path, &sum, &size, &createdAt); err != nil {
			return fmt.Errorf("scan stage: %w", err)
		}
		job.Attempts[Stage(stage)] = int(attempts)
		if artifactID != "" {
			job.Artifacts[Stage(stage)] = &Artifact{
				ID:        artifactID,
				JobID:     job.ID,
				Stage:     Stage(stage),
				Attempt:   int(attempt),
				Path:      path,
				SHA256:    sum,
				SizeBytes: size,
				CreatedAt: db.Time(createdAt),
			}
		}
	}
	return rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job         Job
		length      int64
		status      string
		current     string
		final       string
		lastFailed  string
		createdAt   int64
		updatedAt   int64
		completedAt int64
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Topic,
		&job.Niche,
		&length,
		&job.Language,
		&job.VoiceProfile,
		&status,
		&current,
		&final,
		&lastFailed,
		&job.ErrorMessage,
		&createdAt,
		&updatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	job.LengthSeconds = int(length)
	job.Status = Status(status)
	job.CurrentStage = Stage(current)
	job.FinalStage = Stage(final)
	job.LastFailedStage = Stage(lastFailed)
	job.CreatedAt = db.Time(createdAt)
	job.UpdatedAt = db.Time(updatedAt)
	job.CompletedAt = db.Time(completedAt)
	job.Attempts = map[Stage]int{}
	job.Artifacts = map[Stage]*Artifact{}
	return &job, nil
}
