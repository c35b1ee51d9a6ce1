// Package queue is the durable channel that carries stage work items from the
// orchestrator to workers.
//
// Items live in the work_items table of the shared database. Dequeue leases
// the oldest visible item by stamping a fresh lease token and pushing its
// visibility out; Ack deletes it, Nack and Release make it visible again, and
// Extend renews the lease while a long stage runs. A consumer that dies
// without acking loses nothing: the lease expires and the item is delivered
// again. At most one item per (job, stage) exists at a time, which makes
// Enqueue idempotent for the worker's crash-recovery path.
package queue
