package service

import (
	"context"
	"net/http"
	"time"

	"aspos-sync/internal/config"
	"aspos-sync/internal/upstream"
	"aspos-sync/pkg/syncerr"
)

// SettingsCheck is the outcome of validating the POS connection settings.
type SettingsCheck struct {
	OK        bool       `json:"ok"`
	Stage     string     `json:"stage"` // config or token
	Error     string     `json:"error,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
	ExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	CheckedAt time.Time  `json:"checked_at"`
}

// SettingsChecker verifies the POS settings with a live token fetch that
// bypasses any token cache.
type SettingsChecker struct {
	cfg    config.UpstreamConfig
	client *http.Client
}

// NewSettingsChecker creates a checker for cfg.
func NewSettingsChecker(cfg config.UpstreamConfig, client *http.Client) *SettingsChecker {
	return &SettingsChecker{cfg: cfg, client: client}
}

// Check validates the settings and requests a token with them.
func (c *SettingsChecker) Check(ctx context.Context) SettingsCheck {
	res := SettingsCheck{Stage: "config", CheckedAt: time.Now().UTC()}
	if err := c.cfg.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}

	res.Stage = "token"
	cred, err := upstream.NewClientCredentials(c.client, c.cfg).Acquire(ctx)
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = string(syncerr.KindOf(err))
		return res
	}
	res.OK = true
	if !cred.ExpiresAt.IsZero() {
		res.ExpiresAt = &cred.ExpiresAt
	}
	return res
}
