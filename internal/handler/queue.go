package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"aspos-sync/internal/model"
	"aspos-sync/internal/queue"
	"aspos-sync/pkg/apierror"
	"aspos-sync/pkg/response"
)

// TaskQueue is the work queue as seen by the control API.
type TaskQueue interface {
	Enqueue(ctx context.Context, kind model.TaskKind, storeID string) (string, error)
	EnqueueAll(ctx context.Context) ([]string, error)
	ProcessNext(ctx context.Context) (*queue.Processed, error)
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
	List(ctx context.Context) ([]model.SyncTask, error)
	Pending() bool
}

var validate = validator.New()

type enqueueRequest struct {
	Kind    string `json:"kind" validate:"required,oneof=stores products inventory prices"`
	StoreID string `json:"store_id" validate:"omitempty,max=64"`
}

// QueueHandler serves the work queue endpoints.
type QueueHandler struct {
	queue TaskQueue
}

// NewQueueHandler creates a queue handler.
func NewQueueHandler(q TaskQueue) *QueueHandler {
	return &QueueHandler{queue: q}
}

// Enqueue handles POST /api/v1/queue
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, apierror.FromValidation(err))
		return
	}

	id, err := h.queue.Enqueue(r.Context(), model.TaskKind(req.Kind), req.StoreID)
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("failed to enqueue task: "+err.Error()))
		return
	}
	response.Accepted(w, map[string]string{"task_id": id})
}

// List handles GET /api/v1/queue
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.queue.List(r.Context())
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("failed to list queue"))
		return
	}
	response.OK(w, map[string]interface{}{
		"tasks":           tasks,
		"drain_scheduled": h.queue.Pending(),
	})
}

// Process handles POST /api/v1/queue/process. It runs at most one task.
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	p, err := h.queue.ProcessNext(r.Context())
	switch {
	case errors.Is(err, queue.ErrBusy):
		response.Error(w, apierror.Conflict("queue is already being processed"))
		return
	case err != nil:
		response.Error(w, apierror.ServiceUnavailable("failed to process queue: "+err.Error()))
		return
	case p == nil:
		response.OK(w, map[string]interface{}{"processed": nil})
		return
	}
	if p.Err != nil {
		response.Failure(w, apierror.BadGateway("task failed, see /api/v1/logs for details"), p)
		return
	}
	response.OK(w, map[string]interface{}{"processed": p})
}
