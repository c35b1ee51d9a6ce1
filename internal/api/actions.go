package api

import (
	"context"
	"errors"

	"mediafactory/internal/services"
)

type RetryOutcome string

const (
	RetryUpdated   RetryOutcome = "retried"
	RetryNotFound  RetryOutcome = "not_found"
	RetryNotFailed RetryOutcome = "not_failed"
)

type RetryResult struct {
	ID      string       `json:"id"`
	Outcome RetryOutcome `json:"outcome"`
	Stage   string       `json:"stage,omitempty"`
}

type RetryJobsResult struct {
	UpdatedCount int           `json:"updatedCount"`
	Items        []RetryResult `json:"items"`
}

type CancelOutcome string

const (
	CancelUpdated         CancelOutcome = "cancelled"
	CancelNotFound        CancelOutcome = "not_found"
	CancelAlreadyFinished CancelOutcome = "already_finished"
)

type CancelResult struct {
	ID          string        `json:"id"`
	Outcome     CancelOutcome `json:"outcome"`
	PriorStatus string        `json:"priorStatus,omitempty"`
}

type CancelJobsResult struct {
	UpdatedCount int            `json:"updatedCount"`
	Items        []CancelResult `json:"items"`
}

// RetryJobs retries each failed job in ids and reports a per-job outcome.
// Store failures other than not-found and conflict abort the batch.
func (s *Service) RetryJobs(ctx context.Context, ids []string) (RetryJobsResult, error) {
	result := RetryJobsResult{Items: make([]RetryResult, 0, len(ids))}
	for _, id := range ids {
		stage, err := s.Retry(ctx, id)
		switch {
		case errors.Is(err, services.ErrNotFound):
			result.Items = append(result.Items, RetryResult{ID: id, Outcome: RetryNotFound})
		case errors.Is(err, services.ErrConflict):
			result.Items = append(result.Items, RetryResult{ID: id, Outcome: RetryNotFailed})
		case err != nil:
			return RetryJobsResult{}, err
		default:
			result.UpdatedCount++
			result.Items = append(result.Items, RetryResult{ID: id, Outcome: RetryUpdated, Stage: string(stage)})
		}
	}
	return result, nil
}

// CancelJobs cancels each active job in ids and reports a per-job outcome.
func (s *Service) CancelJobs(ctx context.Context, ids []string) (CancelJobsResult, error) {
	result := CancelJobsResult{Items: make([]CancelResult, 0, len(ids))}
	for _, id := range ids {
		job, err := s.Status(ctx, id)
		if errors.Is(err, services.ErrNotFound) {
			result.Items = append(result.Items, CancelResult{ID: id, Outcome: CancelNotFound})
			continue
		}
		if err != nil {
			return CancelJobsResult{}, err
		}
		prior := string(job.Status)
		if job.Status.Terminal() {
			result.Items = append(result.Items, CancelResult{ID: id, Outcome: CancelAlreadyFinished, PriorStatus: prior})
			continue
		}
		err = s.Cancel(ctx, id)
		switch {
		case errors.Is(err, services.ErrConflict):
			result.Items = append(result.Items, CancelResult{ID: id, Outcome: CancelAlreadyFinished, PriorStatus: prior})
		case err != nil:
			return CancelJobsResult{}, err
		default:
			result.UpdatedCount++
			result.Items = append(result.Items, CancelResult{ID: id, Outcome: CancelUpdated, PriorStatus: prior})
		}
	}
	return result, nil
}
