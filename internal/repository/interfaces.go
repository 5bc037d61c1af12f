package repository

import (
	"context"

	"aspos-sync/internal/model"
)

// StoreRepository persists mirrored stores keyed by upstream id.
type StoreRepository interface {
	// UpsertStore replaces the full row for s.ID.
	UpsertStore(ctx context.Context, s model.Store) error

	// GetStore returns the store or nil if it has never been synced.
	GetStore(ctx context.Context, id string) (*model.Store, error)

	// ListStores returns all mirrored stores ordered by id.
	ListStores(ctx context.Context) ([]model.Store, error)
}

// InventoryRepository persists per-store stock and price lines.
type InventoryRepository interface {
	// UpsertInventory replaces the row keyed by (ProductID, StoreID).
	UpsertInventory(ctx context.Context, line model.InventoryLine) error

	// UpdatePrices sets the two price columns of an existing row found by
	// (AsposProductID, StoreID). Returns the number of rows changed.
	UpdatePrices(ctx context.Context, u model.PriceUpdate) (int64, error)

	// GetInventory returns one line or nil.
	GetInventory(ctx context.Context, productID, storeID string) (*model.InventoryLine, error)

	// ListInventory returns all lines, or those of one store when storeID is set.
	ListInventory(ctx context.Context, storeID string) ([]model.InventoryLine, error)
}

// CatalogRepository is the product catalog. Products are found by their
// POS id through a secondary index, never by local id.
type CatalogRepository interface {
	// FindByAsposID returns the first product whose aspos id matches, or nil.
	FindByAsposID(ctx context.Context, asposID string) (*model.Product, error)

	// Insert creates a product and returns its local id.
	Insert(ctx context.Context, p *model.Product) (string, error)

	// Update overwrites the descriptive fields of the product with p.ID.
	Update(ctx context.Context, p *model.Product) error

	// WriteAttributes sets the POS id and price attributes.
	WriteAttributes(ctx context.Context, id string, attrs model.ProductAttributes) error

	// AddStoreID adds storeID to the product's store list if absent and
	// returns the resulting list.
	AddStoreID(ctx context.Context, id, storeID string) ([]string, error)

	// ListProducts returns every product that carries an aspos id.
	ListProducts(ctx context.Context) ([]model.Product, error)

	// Close releases the underlying connection.
	Close() error
}
