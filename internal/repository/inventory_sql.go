package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aspos-sync/internal/model"
)

var inventoryColumns = []string{
	"product_id", "store_id", "aspos_product_id",
	"available_quantity", "physical_stock_quantity",
	"price_incl_tax", "price_excl_tax", "synced_at",
}

// SQLInventoryRepository implements InventoryRepository on the relational store.
type SQLInventoryRepository struct {
	db     *DB
	upsert string
}

// NewSQLInventoryRepository creates an inventory repository on db.
func NewSQLInventoryRepository(db *DB) *SQLInventoryRepository {
	return &SQLInventoryRepository{
		db:     db,
		upsert: db.Rebind(db.Dialect.Upsert("aspos_inventory", inventoryColumns, inventoryColumns[:2], inventoryColumns[2:])),
	}
}

// UpsertInventory replaces the row keyed by (ProductID, StoreID).
func (r *SQLInventoryRepository) UpsertInventory(ctx context.Context, l model.InventoryLine) error {
	if l.SyncedAt.IsZero() {
		l.SyncedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.upsert,
		l.ProductID, l.StoreID, l.AsposProductID,
		l.AvailableQuantity, l.PhysicalStockQuantity,
		l.PriceInclTax, l.PriceExclTax, l.SyncedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert inventory %s/%s: %w", l.ProductID, l.StoreID, err)
	}
	return nil
}

// UpdatePrices changes only the price columns. Zero affected rows is not an error.
func (r *SQLInventoryRepository) UpdatePrices(ctx context.Context, u model.PriceUpdate) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE aspos_inventory SET price_incl_tax = ?, price_excl_tax = ?
		WHERE aspos_product_id = ? AND store_id = ?`),
		u.PriceInclTax, u.PriceExclTax, u.AsposProductID, u.StoreID)
	if err != nil {
		return 0, fmt.Errorf("failed to update prices %s/%s: %w", u.AsposProductID, u.StoreID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// GetInventory returns one line or nil.
func (r *SQLInventoryRepository) GetInventory(ctx context.Context, productID, storeID string) (*model.InventoryLine, error) {
	var l model.InventoryLine
	err := r.db.GetContext(ctx, &l, r.db.Rebind(`SELECT * FROM aspos_inventory WHERE product_id = ? AND store_id = ?`), productID, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory %s/%s: %w", productID, storeID, err)
	}
	return &l, nil
}

// ListInventory returns all lines, or one store's lines.
func (r *SQLInventoryRepository) ListInventory(ctx context.Context, storeID string) ([]model.InventoryLine, error) {
	lines := []model.InventoryLine{}
	var err error
	if storeID == "" {
		err = r.db.SelectContext(ctx, &lines, `SELECT * FROM aspos_inventory ORDER BY product_id, store_id`)
	} else {
		err = r.db.SelectContext(ctx, &lines, r.db.Rebind(`SELECT * FROM aspos_inventory WHERE store_id = ? ORDER BY product_id`), storeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return lines, nil
}

var _ InventoryRepository = (*SQLInventoryRepository)(nil)
