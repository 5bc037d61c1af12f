package handler

import (
	"context"
	"errors"
	"net/http"

	"aspos-sync/internal/model"
	"aspos-sync/internal/queue"
	"aspos-sync/internal/service"
	"aspos-sync/pkg/apierror"
	"aspos-sync/pkg/response"
)

// StageRunner runs one pipeline stage inline.
type StageRunner interface {
	Run(ctx context.Context, kind model.TaskKind, storeID string) service.Result
}

// SyncHandler serves the manual sync triggers.
type SyncHandler struct {
	pipeline StageRunner
	queue    TaskQueue
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(pipeline StageRunner, queue TaskQueue) *SyncHandler {
	return &SyncHandler{pipeline: pipeline, queue: queue}
}

// Stage returns the handler for POST /api/v1/sync/{kind}. The stage runs
// synchronously under the queue's drain lease; store_id scopes it to one
// store.
func (h *SyncHandler) Stage(kind model.TaskKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID := r.URL.Query().Get("store_id")
		var res service.Result
		err := h.queue.Exclusive(r.Context(), func(ctx context.Context) error {
			res = h.pipeline.Run(ctx, kind, storeID)
			return nil
		})
		switch {
		case errors.Is(err, queue.ErrBusy):
			response.Error(w, apierror.Conflict("another sync is running, try again later"))
			return
		case err != nil:
			response.Error(w, apierror.ServiceUnavailable("sync unavailable: "+err.Error()))
			return
		}
		if !res.OK() {
			response.Failure(w, apierror.BadGateway(string(kind)+" sync failed, see /api/v1/logs for details"), res)
			return
		}
		response.OK(w, res)
	}
}

// All handles POST /api/v1/sync/all. The four stages are queued, not run.
func (h *SyncHandler) All(w http.ResponseWriter, r *http.Request) {
	ids, err := h.queue.EnqueueAll(r.Context())
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("failed to enqueue sync: "+err.Error()))
		return
	}
	response.Accepted(w, map[string]interface{}{"task_ids": ids})
}
