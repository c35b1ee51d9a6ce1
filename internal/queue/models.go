package queue

import (
	"time"

	"mediafactory/internal/jobs"
)

// WorkItem asks a worker to run one stage of one job.
type WorkItem struct {
	JobID      string
	Stage      jobs.Stage
	Attempt    int
	EnqueuedAt time.Time
}

// Delivery is a leased work item. Token is the ack handle; it stops working
// once the lease has been taken over by another consumer.
type Delivery struct {
	WorkItem
	ID          string
	Token       string
	Deliveries  int
	LastError   string
	LeasedUntil time.Time
}

// Entry is a read-only view of a queued item used by operators.
type Entry struct {
	WorkItem
	ID         string
	Deliveries int
	VisibleAt  time.Time
	Leased     bool
	LastError  string
}

// Stats counts queued items by visibility.
type Stats struct {
	// Ready items can be dequeued now (including items whose lease expired).
	Ready int
	// Leased items are held by a consumer.
	Leased int
	// Delayed items were nacked and wait for their backoff to elapse.
	Delayed int
}

// Total returns the number of items in the queue.
func (s Stats) Total() int {
	return s.Ready + s.Leased + s.Delayed
}
