package api

import (
	"context"
	"fmt"
	"time"

	"mediafactory/internal/logs"
	"mediafactory/internal/services"
)

const (
	defaultLogLines = 100
	maxLogLines     = 5000
	maxLogWait      = 30 * time.Second
)

// LogRequest selects a window of a job's log. A negative Offset returns the
// last Lines lines; otherwise lines written after Offset are returned.
type LogRequest struct {
	Offset int64
	Lines  int
	Follow bool
	Wait   time.Duration
}

// JobLog returns lines from the per-job log written by the workers.
func (s *Service) JobLog(ctx context.Context, id string, req LogRequest) (logs.Chunk, error) {
	if _, err := s.Status(ctx, id); err != nil {
		return logs.Chunk{}, err
	}
	if s.jobLogs == nil {
		return logs.Chunk{}, fmt.Errorf("%w: job logs are not configured", services.ErrConfiguration)
	}
	lines := req.Lines
	if lines <= 0 {
		lines = defaultLogLines
	}
	chunk, err := logs.Tail(ctx, s.jobLogs.Path(id), logs.TailOptions{
		Offset: req.Offset,
		Lines:  min(lines, maxLogLines),
		Follow: req.Follow,
		Wait:   min(max(req.Wait, 0), maxLogWait),
	})
	if chunk.Lines == nil {
		chunk.Lines = []string{}
	}
	return chunk, err
}
