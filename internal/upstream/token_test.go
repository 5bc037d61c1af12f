package upstream_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspos-sync/internal/cache"
	"aspos-sync/internal/config"
	"aspos-sync/internal/upstream"
	"aspos-sync/pkg/syncerr"
)

func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func upstreamConfig(tokenURL string) config.UpstreamConfig {
	return config.UpstreamConfig{ClientID: "cid", ClientSecret: "secret", TokenURL: tokenURL}
}

func TestClientCredentialsAcquire(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, `{"access_token":"abc","token_type":"Bearer","expires_in":3600}`)
	p := upstream.NewClientCredentials(srv.Client(), upstreamConfig(srv.URL+"/connect/token"))

	cred, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", cred.AccessToken)
	assert.Equal(t, "Bearer abc", cred.AuthorizationHeader())
	assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, time.Minute)
}

func TestClientCredentialsFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-success status", http.StatusBadRequest, `{"error":"invalid_client"}`},
		{"missing access token", http.StatusOK, `{"token_type":"Bearer"}`},
		{"malformed body", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := tokenServer(t, tt.status, tt.body)
			p := upstream.NewClientCredentials(srv.Client(), upstreamConfig(srv.URL))
			_, err := p.Acquire(context.Background())
			assert.True(t, syncerr.Is(err, syncerr.KindAuth), "got %v", err)
		})
	}

	t.Run("network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := upstream.NewClientCredentials(nil, upstreamConfig(url)).Acquire(context.Background())
		assert.True(t, syncerr.Is(err, syncerr.KindAuth))
	})
}

func TestCachedProvider(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{"access_token":"abc","expires_in":3600}`)
	inner := upstream.NewClientCredentials(srv.Client(), upstreamConfig(srv.URL))

	p := upstream.NewCachedProvider(inner, cache.NewMemoryCache(), "cid", 10*time.Minute)
	for i := 0; i < 3; i++ {
		cred, err := p.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "abc", cred.AccessToken)
	}
	assert.Equal(t, int32(1), hits.Load())

	cp, ok := p.(*upstream.CachedProvider)
	require.True(t, ok)
	require.NoError(t, cp.Invalidate(context.Background()))
	_, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCachedProviderDisabled(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{"access_token":"abc"}`)
	inner := upstream.NewClientCredentials(srv.Client(), upstreamConfig(srv.URL))

	p := upstream.NewCachedProvider(inner, cache.NewMemoryCache(), "cid", 0)
	assert.Same(t, inner, p)

	p.Acquire(context.Background())
	p.Acquire(context.Background())
	assert.Equal(t, int32(2), hits.Load())
}
