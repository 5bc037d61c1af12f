package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"aspos-sync/internal/model"
)

// SQLCatalogRepository implements CatalogRepository on the relational store.
// The store id list is kept as a JSON array column.
type SQLCatalogRepository struct {
	db *DB
}

// NewSQLCatalogRepository creates a catalog on db.
func NewSQLCatalogRepository(db *DB) *SQLCatalogRepository {
	return &SQLCatalogRepository{db: db}
}

type productRow struct {
	ID           int64           `db:"id"`
	AsposID      string          `db:"aspos_id"`
	Name         sql.NullString  `db:"name"`
	Description  sql.NullString  `db:"description"`
	Status       sql.NullString  `db:"status"`
	Published    bool            `db:"published"`
	Price        decimal.Decimal `db:"price"`
	RegularPrice decimal.Decimal `db:"regular_price"`
	StoreIDs     sql.NullString  `db:"store_ids"`
	UpdatedAt    sql.NullTime    `db:"updated_at"`
}

func (r productRow) toModel() (model.Product, error) {
	p := model.Product{
		ID:           strconv.FormatInt(r.ID, 10),
		AsposID:      r.AsposID,
		Name:         r.Name.String,
		Description:  r.Description.String,
		Status:       r.Status.String,
		Published:    r.Published,
		Price:        r.Price,
		RegularPrice: r.RegularPrice,
		UpdatedAt:    r.UpdatedAt.Time,
	}
	ids, err := decodeStoreIDs(r.StoreIDs)
	if err != nil {
		return p, fmt.Errorf("product %d: %w", r.ID, err)
	}
	p.StoreIDs = ids
	return p, nil
}

func decodeStoreIDs(s sql.NullString) ([]string, error) {
	ids := []string{}
	if !s.Valid || s.String == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(s.String), &ids); err != nil {
		return nil, fmt.Errorf("decode store ids: %w", err)
	}
	return ids, nil
}

func encodeStoreIDs(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func parseLocalID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid catalog id %q", id)
	}
	return n, nil
}

const selectProduct = `SELECT id, aspos_id, name, description, status, published, price, regular_price, store_ids, updated_at FROM catalog_products`

// FindByAsposID looks the product up by the aspos_id index (limit 1).
func (r *SQLCatalogRepository) FindByAsposID(ctx context.Context, asposID string) (*model.Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectProduct+` WHERE aspos_id = ? LIMIT 1`), asposID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", asposID, err)
	}
	p, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert creates a product and returns its local id.
func (r *SQLCatalogRepository) Insert(ctx context.Context, p *model.Product) (string, error) {
	query := `INSERT INTO catalog_products (aspos_id, name, description, status, published, price, regular_price, store_ids, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{p.AsposID, p.Name, p.Description, p.Status, p.Published, p.Price, p.RegularPrice, encodeStoreIDs(p.StoreIDs), time.Now().UTC()}

	var id int64
	if r.db.Dialect == Postgres {
		if err := r.db.QueryRowxContext(ctx, r.db.Rebind(query+` RETURNING id`), args...).Scan(&id); err != nil {
			return "", fmt.Errorf("failed to insert product %s: %w", p.AsposID, err)
		}
	} else {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return "", fmt.Errorf("failed to insert product %s: %w", p.AsposID, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return "", fmt.Errorf("failed to read product id: %w", err)
		}
	}
	p.ID = strconv.FormatInt(id, 10)
	return p.ID, nil
}

// Update overwrites name, description, status and published.
func (r *SQLCatalogRepository) Update(ctx context.Context, p *model.Product) error {
	id, err := parseLocalID(p.ID)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE catalog_products SET name = ?, description = ?, status = ?, published = ?, updated_at = ?
		WHERE id = ?`),
		p.Name, p.Description, p.Status, p.Published, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}
	return nil
}

// WriteAttributes sets aspos_id, price and regular_price.
func (r *SQLCatalogRepository) WriteAttributes(ctx context.Context, id string, attrs model.ProductAttributes) error {
	n, err := parseLocalID(id)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE catalog_products SET aspos_id = ?, price = ?, regular_price = ? WHERE id = ?`),
		attrs.AsposID, attrs.Price, attrs.RegularPrice, n)
	if err != nil {
		return fmt.Errorf("failed to write attributes for product %s: %w", id, err)
	}
	return nil
}

// AddStoreID merges storeID into the product's store list inside a
// transaction.
func (r *SQLCatalogRepository) AddStoreID(ctx context.Context, id, storeID string) ([]string, error) {
	n, err := parseLocalID(id)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw sql.NullString
	if err := tx.GetContext(ctx, &raw, tx.Rebind(`SELECT store_ids FROM catalog_products WHERE id = ?`), n); err != nil {
		return nil, fmt.Errorf("failed to read store ids for product %s: %w", id, err)
	}
	ids, err := decodeStoreIDs(raw)
	if err != nil {
		return nil, err
	}

	merged := model.MergeStoreIDs(ids, storeID)
	if len(merged) != len(ids) {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE catalog_products SET store_ids = ? WHERE id = ?`), encodeStoreIDs(merged), n); err != nil {
			return nil, fmt.Errorf("failed to write store ids for product %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return merged, nil
}

// ListProducts returns every product with an aspos id, ordered by id.
func (r *SQLCatalogRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, selectProduct+` WHERE aspos_id <> '' ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// Close is a no-op; the shared DB is closed by its owner.
func (r *SQLCatalogRepository) Close() error {
	return nil
}

var _ CatalogRepository = (*SQLCatalogRepository)(nil)
