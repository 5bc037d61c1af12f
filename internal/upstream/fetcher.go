package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"aspos-sync/pkg/syncerr"
)

// Fetcher walks paginated POS resources.
type Fetcher struct {
	client   *http.Client
	pageSize int
	maxPages int
}

// NewFetcher creates a fetcher requesting pageSize records per page and at
// most maxPages pages per resource.
func NewFetcher(client *http.Client, pageSize, maxPages int) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if pageSize < 1 {
		pageSize = 100
	}
	if maxPages < 1 {
		maxPages = 1000
	}
	return &Fetcher{client: client, pageSize: pageSize, maxPages: maxPages}
}

// PageSize returns the number of records requested per page.
func (f *Fetcher) PageSize() int { return f.pageSize }

// FetchAll lazily yields every record of a paginated resource, starting at
// page 1. Any page failure yields one error and ends the sequence; pages
// already yielded are not retried.
func (f *Fetcher) FetchAll(ctx context.Context, rawURL string, header http.Header) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		base, err := url.Parse(rawURL)
		if err != nil {
			yield(nil, syncerr.UpstreamFormat("parse url", err))
			return
		}

		for n := 1; ; n++ {
			if n > f.maxPages {
				yield(nil, syncerr.UpstreamFormat("GET "+rawURL, fmt.Errorf("page limit %d reached", f.maxPages)))
				return
			}

			p, err := f.fetchPage(ctx, base, n, header)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range p.Records {
				if !yield(rec, nil) {
					return
				}
			}
			if !p.more(f.pageSize) {
				return
			}
		}
	}
}

// FetchOne performs a single unpaginated request and returns its records.
func (f *Fetcher) FetchOne(ctx context.Context, rawURL string, header http.Header) ([]json.RawMessage, error) {
	body, err := getJSON(ctx, f.client, rawURL, header)
	if err != nil {
		return nil, err
	}
	p, err := decodePage(body)
	if err != nil {
		return nil, syncerr.UpstreamFormat("GET "+rawURL, err)
	}
	return p.Records, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, base *url.URL, n int, header http.Header) (page, error) {
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	q.Set("limit", strconv.Itoa(f.pageSize))
	u.RawQuery = q.Encode()

	body, err := getJSON(ctx, f.client, u.String(), header)
	if err != nil {
		return page{}, err
	}
	p, err := decodePage(body)
	if err != nil {
		return page{}, syncerr.UpstreamFormat("GET "+u.String(), err)
	}
	return p, nil
}
