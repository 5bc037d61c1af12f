package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryLine is the stock and price of one product in one store.
// (ProductID, StoreID) is unique.
type InventoryLine struct {
	ProductID             string          `json:"product_id" db:"product_id"`
	StoreID               string          `json:"store_id" db:"store_id"`
	AsposProductID        string          `json:"aspos_product_id" db:"aspos_product_id"`
	AvailableQuantity     decimal.Decimal `json:"available_quantity" db:"available_quantity"`
	PhysicalStockQuantity decimal.Decimal `json:"physical_stock_quantity" db:"physical_stock_quantity"`
	PriceInclTax          decimal.Decimal `json:"price_incl_tax" db:"price_incl_tax"`
	PriceExclTax          decimal.Decimal `json:"price_excl_tax" db:"price_excl_tax"`
	SyncedAt              time.Time       `json:"synced_at" db:"synced_at"`
}

// PriceUpdate carries the two price fields for an existing inventory line.
type PriceUpdate struct {
	AsposProductID string
	StoreID        string
	PriceInclTax   decimal.Decimal
	PriceExclTax   decimal.Decimal
}
