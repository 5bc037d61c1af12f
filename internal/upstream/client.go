package upstream

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"aspos-sync/internal/config"
	"aspos-sync/internal/model"
	"aspos-sync/pkg/syncerr"
)

// Client exposes the POS resources the sync pipeline consumes.
type Client struct {
	baseURL string
	fetcher *Fetcher
}

// NewClient creates an API client for cfg.BaseURL.
func NewClient(cfg config.UpstreamConfig, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: NewFetcher(httpClient, cfg.PageSize, cfg.MaxPages),
	}
}

// NewHTTPClient returns the HTTP client used for all POS calls.
func NewHTTPClient(cfg config.UpstreamConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

func authHeader(cred model.Credential) http.Header {
	h := make(http.Header)
	h.Set("Authorization", cred.AuthorizationHeader())
	return h
}

// Stores yields active and inactive stores. Record decode failures are
// yielded as errors without ending the sequence.
func (c *Client) Stores(ctx context.Context, cred model.Credential) iter.Seq2[StoreRecord, error] {
	return decodeEach[StoreRecord](c.fetcher.FetchAll(ctx, c.baseURL+"/stores?includeNonActiveStores=false", authHeader(cred)), "decode store")
}

// WebProducts yields the web products assigned to storeID.
func (c *Client) WebProducts(ctx context.Context, cred model.Credential, storeID string) iter.Seq2[ProductRecord, error] {
	u := c.baseURL + "/sync/web-products?storeId=" + url.QueryEscape(storeID)
	return decodeEach[ProductRecord](c.fetcher.FetchAll(ctx, u, authHeader(cred)), "decode product")
}

// StockInfo returns per-store stock for one product, filtered to storeID
// upstream when it is set.
func (c *Client) StockInfo(ctx context.Context, cred model.Credential, asposProductID, storeID string) ([]StockRecord, error) {
	u := c.baseURL + "/products/" + url.PathEscape(asposProductID) + "/stock-info"
	if storeID != "" {
		u += "?storeId=" + url.QueryEscape(storeID)
	}
	raws, err := c.fetcher.FetchOne(ctx, u, authHeader(cred))
	if err != nil {
		return nil, err
	}
	out := make([]StockRecord, 0, len(raws))
	for _, raw := range raws {
		var rec StockRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, syncerr.UpstreamFormat("decode stock-info", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeEach[T any](seq iter.Seq2[json.RawMessage, error], op string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for raw, err := range seq {
			var rec T
			if err != nil {
				if !yield(rec, err) {
					return
				}
				continue
			}
			if err := json.Unmarshal(raw, &rec); err != nil {
				if !yield(rec, syncerr.UpstreamFormat(op, err)) {
					return
				}
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
