package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aspos-sync/internal/cache"
	"aspos-sync/internal/config"
	"aspos-sync/internal/model"
	"aspos-sync/pkg/syncerr"
)

// TokenProvider returns a bearer credential for the POS API.
type TokenProvider interface {
	Acquire(ctx context.Context) (model.Credential, error)
}

// ClientCredentials fetches a fresh token on every call using the OAuth
// client-credentials grant.
type ClientCredentials struct {
	client       *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	now          func() time.Time
}

// NewClientCredentials creates a token provider for cfg.
func NewClientCredentials(client *http.Client, cfg config.UpstreamConfig) *ClientCredentials {
	if client == nil {
		client = http.DefaultClient
	}
	return &ClientCredentials{
		client:       client,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Acquire requests a new token. It does not retry.
func (p *ClientCredentials) Acquire(ctx context.Context) (model.Credential, error) {
	const op = "acquire token"

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.Credential{}, syncerr.Auth(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return model.Credential{}, syncerr.Auth(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.Credential{}, syncerr.Auth(op, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Credential{}, syncerr.Auth(op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return model.Credential{}, syncerr.Auth(op, fmt.Errorf("decode body: %w", err))
	}
	if tr.AccessToken == "" {
		return model.Credential{}, syncerr.Auth(op, errors.New("response has no access_token"))
	}

	cred := model.Credential{AccessToken: tr.AccessToken}
	if tr.ExpiresIn > 0 {
		cred.ExpiresAt = p.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return cred, nil
}

// expirySkew is subtracted from a token's lifetime before caching it.
const expirySkew = 30 * time.Second

// CachedProvider keeps credentials from an inner provider in a TTL cache.
type CachedProvider struct {
	inner TokenProvider
	cache cache.Cache
	key   string
	ttl   time.Duration
	now   func() time.Time
}

// NewCachedProvider wraps inner. A ttl of zero or less returns inner
// unchanged so every call re-authenticates.
func NewCachedProvider(inner TokenProvider, c cache.Cache, clientID string, ttl time.Duration) TokenProvider {
	if ttl <= 0 || c == nil {
		return inner
	}
	sum := sha256.Sum256([]byte(clientID))
	return &CachedProvider{
		inner: inner,
		cache: c,
		key:   "upstream:token:" + hex.EncodeToString(sum[:8]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Acquire returns a cached credential while it is fresh, otherwise fetches
// and caches a new one. Cache failures fall through to the inner provider.
func (p *CachedProvider) Acquire(ctx context.Context) (model.Credential, error) {
	if data, err := p.cache.Get(ctx, p.key); err == nil {
		var cred model.Credential
		if json.Unmarshal(data, &cred) == nil && cred.AccessToken != "" && !cred.Expired(p.now()) {
			return cred, nil
		}
	}

	cred, err := p.inner.Acquire(ctx)
	if err != nil {
		return model.Credential{}, err
	}

	ttl := p.ttl
	if !cred.ExpiresAt.IsZero() {
		if left := cred.ExpiresAt.Sub(p.now()) - expirySkew; left < ttl {
			ttl = left
		}
	}
	if ttl > 0 {
		if data, err := json.Marshal(cred); err == nil {
			_ = p.cache.Set(ctx, p.key, data, ttl)
		}
	}
	return cred, nil
}

// Invalidate drops the cached credential.
func (p *CachedProvider) Invalidate(ctx context.Context) error {
	return p.cache.Delete(ctx, p.key)
}
