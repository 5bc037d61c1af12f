package service_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"aspos-sync/internal/config"
	"aspos-sync/internal/logger"
	"aspos-sync/internal/repository"
	"aspos-sync/internal/service"
	"aspos-sync/internal/upstream"

	"github.com/stretchr/testify/require"
)

type record = map[string]any

// fakePOS serves the token, store, web-product and stock-info endpoints.
type fakePOS struct {
	mu           sync.Mutex
	tokenStatus  int
	stores       []record
	products     map[string][]record // by store id
	stock        map[string][]record // by aspos product id
	failProducts map[string]bool     // store ids answering 500
	tokens       int
}

func newFakePOS() *fakePOS {
	return &fakePOS{
		products:     map[string][]record{},
		stock:        map[string][]record{},
		failProducts: map[string]bool{},
	}
}

func (f *fakePOS) set(fn func(f *fakePOS)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakePOS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/connect/token" {
		f.tokens++
		if f.tokenStatus != 0 && f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		writeJSON(w, record{"access_token": "tok", "expires_in": 3600})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch path := r.URL.Path; {
	case path == "/stores":
		writeJSON(w, record{"data": f.stores, "pagination": record{"hasMore": false}})
	case path == "/sync/web-products":
		sid := r.URL.Query().Get("storeId")
		if f.failProducts[sid] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, record{"data": f.products[sid], "hasMore": false})
	case strings.HasPrefix(path, "/products/") && strings.HasSuffix(path, "/stock-info"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/products/"), "/stock-info")
		rows := f.stock[id]
		if sid := r.URL.Query().Get("storeId"); sid != "" {
			var filtered []record
			for _, row := range rows {
				if row["storeId"] == sid {
					filtered = append(filtered, row)
				}
			}
			rows = filtered
		}
		if rows == nil {
			rows = []record{}
		}
		writeJSON(w, rows)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type env struct {
	pos       *fakePOS
	upstream  config.UpstreamConfig
	db        *repository.DB
	stores    *repository.SQLStoreRepository
	inventory *repository.SQLInventoryRepository
	catalog   *repository.SQLCatalogRepository
	exportDir string
	pipeline  *service.Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()
	pos := newFakePOS()
	srv := httptest.NewServer(pos)
	t.Cleanup(srv.Close)

	db, err := repository.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.UpstreamConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/connect/token",
		BaseURL:      srv.URL,
		PageSize:     100,
		MaxPages:     10,
	}
	e := &env{
		pos:       pos,
		upstream:  cfg,
		db:        db,
		stores:    repository.NewSQLStoreRepository(db),
		inventory: repository.NewSQLInventoryRepository(db),
		catalog:   repository.NewSQLCatalogRepository(db),
		exportDir: t.TempDir(),
	}
	e.pipeline = service.NewPipeline(service.PipelineDeps{
		Tokens:     upstream.NewClientCredentials(srv.Client(), cfg),
		POS:        upstream.NewClient(cfg, srv.Client()),
		Reconciler: service.NewReconciler(e.stores, e.inventory, e.catalog),
		Stores:     e.stores,
		Catalog:    e.catalog,
		ExportDir:  e.exportDir,
		Logger:     logger.Nop(),
	})
	return e
}

func storeRecord(id, name, status string) record {
	return record{"id": id, "name": name, "status": status, "city": "Utrecht", "code": "C-" + id}
}

func productRecord(id, description string, incl, excl float64) record {
	return record{"id": id, "description": description, "priceInclTax": incl, "priceExclTax": excl, "state": "active"}
}
