package model

import (
	"fmt"
	"time"
)

// TaskKind names the pipeline stage a queued task runs.
type TaskKind string

const (
	KindStores    TaskKind = "stores"
	KindProducts  TaskKind = "products"
	KindInventory TaskKind = "inventory"
	KindPrices    TaskKind = "prices"
)

// PipelineOrder is the canonical full-run order.
var PipelineOrder = []TaskKind{KindStores, KindProducts, KindInventory, KindPrices}

// ParseTaskKind validates a kind string.
func ParseTaskKind(s string) (TaskKind, error) {
	switch k := TaskKind(s); k {
	case KindStores, KindProducts, KindInventory, KindPrices:
		return k, nil
	}
	return "", fmt.Errorf("unknown task kind %q", s)
}

// TaskStatus is the processing state of a queued task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
)

// SyncTask is one entry in the durable work queue.
type SyncTask struct {
	ID          string     `json:"id"`
	Kind        TaskKind   `json:"kind"`
	StoreID     string     `json:"store_id,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
}
