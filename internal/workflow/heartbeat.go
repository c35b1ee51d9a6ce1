package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mediafactory/internal/logging"
	"mediafactory/internal/queue"
)

// leaseExtender is the part of the queue the heartbeat needs.
type leaseExtender interface {
	Extend(ctx context.Context, d *queue.Delivery) error
}

// HeartbeatMonitor keeps the lease of an executing item alive.
type HeartbeatMonitor struct {
	queue    leaseExtender
	logger   *slog.Logger
	interval time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(q leaseExtender, logger *slog.Logger, interval time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		queue:    q,
		logger:   logger,
		interval: interval,
	}
}

// StartLoop extends the lease of d every interval until ctx is done. When the
// lease is lost, onLost is called once and the loop stops.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, d *queue.Delivery, onLost func()) {
	defer wg.Done()
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.queue.Extend(ctx, d)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				logger.Debug("heartbeat stopped by cancellation")
				return
			case errors.Is(err, queue.ErrLeaseLost):
				logging.WarnWithContext(logger, "work item lease lost", "lease_lost",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "raise workflow.visibility_timeout or lower workflow.heartbeat_interval"),
				)
				if onLost != nil {
					onLost()
				}
				return
			default:
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
