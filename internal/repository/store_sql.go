package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aspos-sync/internal/model"
)

var storeColumns = []string{"id", "city", "code", "email", "name", "phone_number", "postal_code", "status", "street", "synced_at"}

// SQLStoreRepository implements StoreRepository on the relational store.
type SQLStoreRepository struct {
	db     *DB
	upsert string
}

// NewSQLStoreRepository creates a store repository on db.
func NewSQLStoreRepository(db *DB) *SQLStoreRepository {
	return &SQLStoreRepository{
		db:     db,
		upsert: db.Rebind(db.Dialect.Upsert("aspos_stores", storeColumns, storeColumns[:1], storeColumns[1:])),
	}
}

// UpsertStore replaces the full row keyed by s.ID.
func (r *SQLStoreRepository) UpsertStore(ctx context.Context, s model.Store) error {
	if s.SyncedAt.IsZero() {
		s.SyncedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.upsert,
		s.ID, s.City, s.Code, s.Email, s.Name, s.PhoneNumber, s.PostalCode, string(s.Status), s.Street, s.SyncedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert store %s: %w", s.ID, err)
	}
	return nil
}

// GetStore returns the store or nil if absent.
func (r *SQLStoreRepository) GetStore(ctx context.Context, id string) (*model.Store, error) {
	var s model.Store
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT * FROM aspos_stores WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store %s: %w", id, err)
	}
	return &s, nil
}

// ListStores returns all stores ordered by id.
func (r *SQLStoreRepository) ListStores(ctx context.Context) ([]model.Store, error) {
	stores := []model.Store{}
	if err := r.db.SelectContext(ctx, &stores, `SELECT * FROM aspos_stores ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return stores, nil
}

var _ StoreRepository = (*SQLStoreRepository)(nil)
