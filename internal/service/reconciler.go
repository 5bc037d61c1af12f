package service

import (
	"context"
	"errors"
	"time"

	"aspos-sync/internal/model"
	"aspos-sync/internal/repository"
	"aspos-sync/internal/upstream"
	"aspos-sync/pkg/syncerr"
)

// Outcome reports what a single reconcile call did with its record.
type Outcome int

const (
	Applied Outcome = iota
	Skipped
)

var errMissingID = errors.New("record has no id")

// Reconciler maps POS records onto local entities and upserts them.
// Every method is safe to repeat with the same input.
type Reconciler struct {
	stores    repository.StoreRepository
	inventory repository.InventoryRepository
	catalog   repository.CatalogRepository
	now       func() time.Time
}

// NewReconciler creates a reconciler over the three local stores.
func NewReconciler(
	stores repository.StoreRepository,
	inventory repository.InventoryRepository,
	catalog repository.CatalogRepository,
) *Reconciler {
	return &Reconciler{
		stores:    stores,
		inventory: inventory,
		catalog:   catalog,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UpsertStore replaces the store row keyed by the upstream id. Test stores
// are never mirrored.
func (r *Reconciler) UpsertStore(ctx context.Context, rec upstream.StoreRecord) (Outcome, error) {
	if rec.ID == "" {
		return Skipped, syncerr.UpstreamFormat("upsert store", errMissingID)
	}
	s := model.Store{
		ID:          rec.ID.String(),
		City:        rec.City,
		Code:        rec.Code,
		Email:       rec.Email,
		Name:        rec.Name,
		PhoneNumber: rec.PhoneNumber,
		PostalCode:  rec.PostalCode,
		Status:      model.StoreStatus(rec.Status),
		Street:      rec.Street,
		SyncedAt:    r.now(),
	}
	if s.IsTest() {
		return Skipped, nil
	}
	if err := r.stores.UpsertStore(ctx, s); err != nil {
		return Skipped, syncerr.Storage("upsert store "+s.ID, err)
	}
	return Applied, nil
}

// UpsertProduct finds the catalog product by its POS id and updates it, or
// inserts it when absent. The POS attributes are written and storeID is
// merged into the store list either way. The stored product is returned.
func (r *Reconciler) UpsertProduct(ctx context.Context, storeID string, rec upstream.ProductRecord) (*model.Product, error) {
	if rec.ID == "" {
		return nil, syncerr.UpstreamFormat("upsert product", errMissingID)
	}
	asposID := rec.ID.String()
	op := "upsert product " + asposID

	existing, err := r.catalog.FindByAsposID(ctx, asposID)
	if err != nil {
		return nil, syncerr.Storage(op, err)
	}

	p := existing
	if p == nil {
		p = &model.Product{AsposID: asposID, StoreIDs: []string{}}
	}
	p.Name = rec.Description
	p.Description = rec.Description
	p.Status = rec.State
	p.Published = true

	if existing != nil {
		if err := r.catalog.Update(ctx, p); err != nil {
			return nil, syncerr.Storage(op, err)
		}
	} else if _, err := r.catalog.Insert(ctx, p); err != nil {
		return nil, syncerr.Storage(op, err)
	}

	attrs := model.ProductAttributes{
		AsposID:      asposID,
		Price:        rec.PriceInclTax,
		RegularPrice: rec.PriceInclTax,
	}
	if err := r.catalog.WriteAttributes(ctx, p.ID, attrs); err != nil {
		return nil, syncerr.Storage(op, err)
	}
	p.Price, p.RegularPrice = attrs.Price, attrs.RegularPrice

	if storeID != "" {
		ids, err := r.catalog.AddStoreID(ctx, p.ID, storeID)
		if err != nil {
			return nil, syncerr.Storage(op, err)
		}
		p.StoreIDs = ids
	}
	return p, nil
}

// UpsertInventory writes one stock line for p. Lines for stores outside the
// product's store list are skipped.
func (r *Reconciler) UpsertInventory(ctx context.Context, p *model.Product, stock upstream.StockRecord) (Outcome, error) {
	storeID := stock.StoreID.String()
	if storeID == "" || !p.HasStore(storeID) {
		return Skipped, nil
	}
	op := "upsert inventory " + p.AsposID + "/" + storeID

	line := model.InventoryLine{
		ProductID:             p.ID,
		StoreID:               storeID,
		AsposProductID:        p.AsposID,
		AvailableQuantity:     stock.AvailableQuantity,
		PhysicalStockQuantity: stock.PhysicalStockQuantity,
		PriceInclTax:          p.Price,
		SyncedAt:              r.now(),
	}
	// The catalog only carries the tax-inclusive price; keep the exclusive
	// one the price stage last wrote.
	prev, err := r.inventory.GetInventory(ctx, p.ID, storeID)
	if err != nil {
		return Skipped, syncerr.Storage(op, err)
	}
	if prev != nil {
		line.PriceExclTax = prev.PriceExclTax
	}
	if err := r.inventory.UpsertInventory(ctx, line); err != nil {
		return Skipped, syncerr.Storage(op, err)
	}
	return Applied, nil
}

// UpdatePrice sets the two price columns of an existing inventory line.
// A missing line is skipped, not an error.
func (r *Reconciler) UpdatePrice(ctx context.Context, u model.PriceUpdate) (Outcome, error) {
	n, err := r.inventory.UpdatePrices(ctx, u)
	if err != nil {
		return Skipped, syncerr.Storage("update price "+u.AsposProductID+"/"+u.StoreID, err)
	}
	if n == 0 {
		return Skipped, nil
	}
	return Applied, nil
}
