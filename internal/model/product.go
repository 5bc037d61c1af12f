package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entity linked to the POS through AsposID.
// ID and AsposID live in different key spaces.
type Product struct {
	ID           string          `json:"id"`
	AsposID      string          `json:"aspos_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Status       string          `json:"status"`
	Published    bool            `json:"published"`
	Price        decimal.Decimal `json:"price"`
	RegularPrice decimal.Decimal `json:"regular_price"`
	StoreIDs     []string        `json:"store_ids"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasStore reports whether storeID is in the product's store associations.
func (p *Product) HasStore(storeID string) bool {
	for _, id := range p.StoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

// ProductAttributes are the POS-derived attributes written on every sync.
type ProductAttributes struct {
	AsposID      string
	Price        decimal.Decimal
	RegularPrice decimal.Decimal
}

// MergeStoreIDs returns ids with extra appended, skipping duplicates and
// preserving order.
func MergeStoreIDs(ids []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(ids)+len(extra))
	out := make([]string, 0, len(ids)+len(extra))
	for _, id := range append(append([]string{}, ids...), extra...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
