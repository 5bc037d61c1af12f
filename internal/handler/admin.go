package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"aspos-sync/internal/model"
	"aspos-sync/pkg/response"
)

// StatsSource reports row counts of the relational store.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// QueueLister lists queued work.
type QueueLister interface {
	List(ctx context.Context) ([]model.SyncTask, error)
	Pending() bool
}

// AdminHandler serves operational statistics.
type AdminHandler struct {
	db        StatsSource
	queue     QueueLister
	dbType    string
	startTime time.Time
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(db StatsSource, queue QueueLister, dbType string) *AdminHandler {
	return &AdminHandler{db: db, queue: queue, dbType: dbType, startTime: time.Now()}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":   float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":     float64(memStats.Sys) / 1024 / 1024,
		"num_gc":     memStats.NumGC,
		"goroutines": runtime.NumGoroutine(),
	}

	if dbStats, err := h.db.Stats(ctx); err == nil {
		dbStats["status"] = "connected"
		stats["database"] = dbStats
	} else {
		stats["database"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	if tasks, err := h.queue.List(ctx); err == nil {
		stats["queue"] = map[string]interface{}{
			"length":          len(tasks),
			"drain_scheduled": h.queue.Pending(),
		}
	} else {
		stats["queue"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
