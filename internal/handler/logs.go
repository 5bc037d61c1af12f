package handler

import (
	"net/http"
	"strconv"

	"aspos-sync/pkg/apierror"
	"aspos-sync/pkg/response"
)

const (
	defaultLogLines = 200
	maxLogLines     = 5000
)

// LogSource is the debug log the control API exposes.
type LogSource interface {
	Tail(n int) ([]string, error)
	Clear() error
}

// LogHandler serves the debug log.
type LogHandler struct {
	log LogSource
}

// NewLogHandler creates a log handler.
func NewLogHandler(log LogSource) *LogHandler {
	return &LogHandler{log: log}
}

// Tail handles GET /api/v1/logs?lines=N
func (h *LogHandler) Tail(w http.ResponseWriter, r *http.Request) {
	n := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.Error(w, apierror.BadRequest("lines must be a positive integer"))
			return
		}
		n = min(v, maxLogLines)
	}

	lines, err := h.log.Tail(n)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to read log"))
		return
	}
	if lines == nil {
		lines = []string{}
	}
	response.OK(w, map[string]interface{}{"lines": lines, "count": len(lines)})
}

// Clear handles DELETE /api/v1/logs
func (h *LogHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.log.Clear(); err != nil {
		response.Error(w, apierror.InternalError("failed to clear log"))
		return
	}
	response.NoContent(w)
}
