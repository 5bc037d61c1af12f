package handler

import (
	"context"
	"net/http"

	"aspos-sync/internal/service"
	"aspos-sync/pkg/response"
)

// SettingsVerifier checks the POS connection settings.
type SettingsVerifier interface {
	Check(ctx context.Context) service.SettingsCheck
}

// SettingsHandler serves the settings check.
type SettingsHandler struct {
	checker SettingsVerifier
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(checker SettingsVerifier) *SettingsHandler {
	return &SettingsHandler{checker: checker}
}

// Check handles GET /api/v1/settings/check. A failed check is still a 200;
// the body says what failed.
func (h *SettingsHandler) Check(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.checker.Check(r.Context()))
}
