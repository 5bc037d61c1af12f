package upstream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspos-sync/internal/upstream"
	"aspos-sync/pkg/syncerr"
)

// pageServer serves pages[n-1] for ?page=n and counts requests.
func pageServer(t *testing.T, pages []string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		n, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || n < 1 || n > len(pages) {
			http.Error(w, "no such page", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, pages[n-1])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func collect(t *testing.T, f *upstream.Fetcher, url string) ([]string, error) {
	t.Helper()
	header := http.Header{"Authorization": {"Bearer tok"}}
	var ids []string
	for raw, err := range f.FetchAll(context.Background(), url, header) {
		if err != nil {
			return ids, err
		}
		var rec struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &rec))
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

func TestFetchAllConsumesExactlyProvidedPages(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  []string
	}{
		{
			name:  "bare array stops on undersized page",
			pages: []string{`[{"id":"a"},{"id":"b"}]`, `[{"id":"c"}]`},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "bare array stops on empty page",
			pages: []string{`[{"id":"a"},{"id":"b"}]`, `[]`},
			want:  []string{"a", "b"},
		},
		{
			name: "pagination object",
			pages: []string{
				`{"data":[{"id":"a"}],"pagination":{"hasMore":true}}`,
				`{"data":[{"id":"b"}],"pagination":{"hasMore":true}}`,
				`{"data":[{"id":"c"}],"pagination":{"hasMore":false}}`,
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "top-level hasMore",
			pages: []string{
				`{"data":[{"id":"a"},{"id":"b"}],"hasMore":true}`,
				`{"data":[{"id":"c"},{"id":"d"}],"hasMore":false}`,
			},
			want: []string{"a", "b", "c", "d"},
		},
		{
			name:  "data without metadata uses size heuristic",
			pages: []string{`{"data":[{"id":"a"},{"id":"b"}]}`, `{"data":[]}`},
			want:  []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := pageServer(t, tt.pages)
			f := upstream.NewFetcher(srv.Client(), 2, 50)

			got, err := collect(t, f, srv.URL+"/stores?includeNonActiveStores=false")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int32(len(tt.pages)), hits.Load())
		})
	}
}

func TestFetchAllKeepsExistingQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "S1", r.URL.Query().Get("storeId"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	got, err := collect(t, upstream.NewFetcher(srv.Client(), 10, 5), srv.URL+"/sync/web-products?storeId=S1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchAllAbortsOnPageError(t *testing.T) {
	// page 2 is missing, so the server answers 404
	srv, hits := pageServer(t, []string{`{"data":[{"id":"a"}],"hasMore":true}`})
	f := upstream.NewFetcher(srv.Client(), 1, 50)

	got, err := collect(t, f, srv.URL+"/stores")
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindNetwork))
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchAllRejectsMalformedPage(t *testing.T) {
	srv, _ := pageServer(t, []string{`{"items":[]}`})
	_, err := collect(t, upstream.NewFetcher(srv.Client(), 1, 50), srv.URL+"/stores")
	assert.True(t, syncerr.Is(err, syncerr.KindUpstreamFormat))
}

func TestFetchAllPageCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"x"}],"hasMore":true}`)
	}))
	defer srv.Close()

	got, err := collect(t, upstream.NewFetcher(srv.Client(), 1, 3), srv.URL)
	require.Error(t, err)
	assert.Len(t, got, 3)
}

func TestFetchAllStopsWhenConsumerBreaks(t *testing.T) {
	srv, hits := pageServer(t, []string{
		`{"data":[{"id":"a"},{"id":"b"}],"hasMore":true}`,
		`{"data":[{"id":"c"}],"hasMore":false}`,
	})
	f := upstream.NewFetcher(srv.Client(), 2, 50)

	for range f.FetchAll(context.Background(), srv.URL, http.Header{"Authorization": {"Bearer tok"}}) {
		break
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchAllUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := collect(t, upstream.NewFetcher(srv.Client(), 5, 5), srv.URL)
	assert.True(t, syncerr.Is(err, syncerr.KindAuth))
}
