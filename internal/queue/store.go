// Package queue is the durable FIFO of sync tasks. It drains one task per
// trigger behind a single-flight lease.
package queue

import (
	"context"

	"aspos-sync/internal/model"
)

// Store is durable ordered task storage.
type Store interface {
	// Push appends task at the tail.
	Push(ctx context.Context, task model.SyncTask) error

	// Pop removes and returns the head task, or nil when empty.
	Pop(ctx context.Context) (*model.SyncTask, error)

	// List returns the pending tasks head first.
	List(ctx context.Context) ([]model.SyncTask, error)

	// Len returns the number of pending tasks.
	Len(ctx context.Context) (int, error)
}
