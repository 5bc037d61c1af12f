package repository_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aspos-sync/internal/model"
	"aspos-sync/internal/repository"
)

func memdb(t *testing.T) *repository.DB {
	t.Helper()
	db, err := repository.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoreUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSQLStoreRepository(memdb(t))

	s := model.Store{ID: "S1", Name: "Centrum", City: "Utrecht", Status: model.StoreActive}
	require.NoError(t, repo.UpsertStore(ctx, s))

	s.Name = "Centrum Oost"
	s.Status = model.StoreInactive
	require.NoError(t, repo.UpsertStore(ctx, s))

	stores, err := repo.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "Centrum Oost", stores[0].Name)
	assert.Equal(t, model.StoreInactive, stores[0].Status)
	assert.Equal(t, "Utrecht", stores[0].City)

	got, err := repo.GetStore(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Centrum Oost", got.Name)

	missing, err := repo.GetStore(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInventoryUpsertAndPrices(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSQLInventoryRepository(memdb(t))

	line := model.InventoryLine{
		ProductID:             "1",
		StoreID:               "S1",
		AsposProductID:        "P1",
		AvailableQuantity:     decimal.NewFromInt(5),
		PhysicalStockQuantity: decimal.NewFromInt(8),
		PriceInclTax:          decimal.RequireFromString("12.10"),
		PriceExclTax:          decimal.RequireFromString("10.00"),
	}
	require.NoError(t, repo.UpsertInventory(ctx, line))

	line.AvailableQuantity = decimal.NewFromInt(3)
	require.NoError(t, repo.UpsertInventory(ctx, line))

	lines, err := repo.ListInventory(ctx, "")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].AvailableQuantity.Equal(decimal.NewFromInt(3)))
	assert.True(t, lines[0].PhysicalStockQuantity.Equal(decimal.NewFromInt(8)))

	n, err := repo.UpdatePrices(ctx, model.PriceUpdate{
		AsposProductID: "P1", StoreID: "S1",
		PriceInclTax: decimal.RequireFromString("15.73"),
		PriceExclTax: decimal.RequireFromString("13.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetInventory(ctx, "1", "S1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.PriceInclTax.Equal(decimal.RequireFromString("15.73")))
	assert.True(t, got.AvailableQuantity.Equal(decimal.NewFromInt(3)), "quantities untouched by price update")

	n, err = repo.UpdatePrices(ctx, model.PriceUpdate{AsposProductID: "P1", StoreID: "S9"})
	require.NoError(t, err)
	assert.Zero(t, n)

	other, err := repo.ListInventory(ctx, "S9")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLCatalog(t *testing.T) {
	exerciseCatalog(t, repository.NewSQLCatalogRepository(memdb(t)))
}

func TestMongoDBCatalog(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	database := "aspos_sync_test_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	catalog, err := repository.NewMongoDBCatalogRepository(uri, database, "catalog_products")
	require.NoError(t, err)
	t.Cleanup(func() {
		dropDatabase(t, uri, database)
		catalog.Close()
	})
	exerciseCatalog(t, catalog)
}

func dropDatabase(t *testing.T, uri, database string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Logf("drop %s: %v", database, err)
		return
	}
	defer client.Disconnect(ctx)
	if err := client.Database(database).Drop(ctx); err != nil {
		t.Logf("drop %s: %v", database, err)
	}
}

func exerciseCatalog(t *testing.T, catalog repository.CatalogRepository) {
	t.Helper()
	ctx := context.Background()

	found, err := catalog.FindByAsposID(ctx, "P1")
	require.NoError(t, err)
	assert.Nil(t, found)

	p := &model.Product{AsposID: "P1", Name: "Mok", Status: "active", Published: true}
	id, err := catalog.Insert(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, p.ID)

	require.NoError(t, catalog.WriteAttributes(ctx, id, model.ProductAttributes{
		AsposID: "P1", Price: decimal.RequireFromString("4.95"), RegularPrice: decimal.RequireFromString("4.95"),
	}))

	ids, err := catalog.AddStoreID(ctx, id, "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, ids)
	ids, err = catalog.AddStoreID(ctx, id, "S2")
	require.NoError(t, err)
	ids, err = catalog.AddStoreID(ctx, id, "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, ids)

	p.Name = "Mok groot"
	require.NoError(t, catalog.Update(ctx, p))

	found, err = catalog.FindByAsposID(ctx, "P1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "Mok groot", found.Name)
	assert.True(t, found.Published)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("4.95")))
	assert.Equal(t, []string{"S1", "S2"}, found.StoreIDs)

	_, err = catalog.Insert(ctx, &model.Product{AsposID: "P1"})
	assert.Error(t, err, "aspos_id is unique")

	products, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	assert.Error(t, catalog.Update(ctx, &model.Product{ID: "not-a-number"}))
}

func TestStats(t *testing.T) {
	db := memdb(t)
	require.NoError(t, repository.NewSQLStoreRepository(db).UpsertStore(context.Background(), model.Store{ID: "S1"}))

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["aspos_stores"])
	assert.Equal(t, int64(0), stats["aspos_inventory"])
	assert.Equal(t, "sqlite", stats["dialect"])
}
