package workflow

import (
	"time"

	"mediafactory/internal/config"
	"mediafactory/internal/jobs"
)

// Policy carries the timing and retry knobs a worker runs with.
type Policy struct {
	DequeueWait        time.Duration
	ErrorRetryInterval time.Duration
	HeartbeatInterval  time.Duration
	MaxRetries         int
	MaxDeliveries      int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	StageTimeout       time.Duration
	StageTimeouts      map[jobs.Stage]time.Duration
}

// PolicyFromConfig converts the workflow section into a Policy.
func PolicyFromConfig(cfg *config.Config) Policy {
	w := cfg.Workflow
	p := Policy{
		DequeueWait:        seconds(w.DequeueWait),
		ErrorRetryInterval: seconds(w.ErrorRetryInterval),
		HeartbeatInterval:  seconds(w.HeartbeatInterval),
		MaxRetries:         w.MaxRetries,
		MaxDeliveries:      w.MaxDeliveries,
		BackoffBase:        seconds(w.BackoffBase),
		BackoffMax:         seconds(w.BackoffMax),
		StageTimeout:       seconds(w.StageTimeout),
		StageTimeouts:      make(map[jobs.Stage]time.Duration, len(jobs.Pipeline())),
	}
	for _, stage := range jobs.Pipeline() {
		p.StageTimeouts[stage] = cfg.StageTimeout(string(stage))
	}
	return p
}

// Backoff returns the nack delay after the given failed attempt:
// min(base * 2^(attempt-1), max).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.BackoffMax > 0 && delay >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && delay > p.BackoffMax {
		return p.BackoffMax
	}
	return delay
}

// Timeout returns the execution budget for stage.
func (p Policy) Timeout(stage jobs.Stage) time.Duration {
	if d, ok := p.StageTimeouts[stage]; ok && d > 0 {
		return d
	}
	return p.StageTimeout
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
