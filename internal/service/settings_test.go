package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"aspos-sync/internal/config"
	"aspos-sync/internal/service"
)

func TestSettingsCheck(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res := service.NewSettingsChecker(e.upstream, http.DefaultClient).Check(ctx)
	assert.True(t, res.OK, res.Error)
	assert.Equal(t, "token", res.Stage)
	assert.NotNil(t, res.ExpiresAt)

	e.pos.set(func(f *fakePOS) { f.tokenStatus = http.StatusUnauthorized })
	res = service.NewSettingsChecker(e.upstream, http.DefaultClient).Check(ctx)
	assert.False(t, res.OK)
	assert.Equal(t, "auth", res.ErrorKind)

	res = service.NewSettingsChecker(config.UpstreamConfig{ClientID: "cid"}, http.DefaultClient).Check(ctx)
	assert.False(t, res.OK)
	assert.Equal(t, "config", res.Stage)
}
