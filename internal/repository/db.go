package repository

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required

	"aspos-sync/internal/config"
)

// DB is the relational side store. It holds the mirrored stores and
// inventory, and optionally the catalog, queue and schedule tables.
type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// OpenConfig opens the database described by cfg and creates the sync
// tables.
func OpenConfig(cfg config.RelationalConfig) (*DB, error) {
	driver, dsn := cfg.DSN()
	return Open(driver, dsn)
}

// Open connects with the given driver, applies pool settings for the engine
// and creates the sync tables.
func Open(driver, dsn string) (*DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	d := DialectFor(driver)
	switch d {
	case SQLite:
		db.SetMaxOpenConns(1) // SQLite only supports 1 writer
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	out := &DB{DB: db, Dialect: d}
	if err := out.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return out, nil
}

// Migrate creates the sync tables if missing.
func (db *DB) Migrate(ctx context.Context) error {
	d := db.Dialect
	key := d.KeyType()
	ts := d.TimeType()

	var stmts []string
	stmts = append(stmts, d.CreateTable("aspos_stores", []string{
		"id " + key + " PRIMARY KEY",
		"city TEXT",
		"code TEXT",
		"email TEXT",
		"name TEXT",
		"phone_number TEXT",
		"postal_code TEXT",
		"status TEXT",
		"street TEXT",
		"synced_at " + ts,
	})...)
	stmts = append(stmts, d.CreateTable("aspos_inventory", []string{
		"product_id " + key + " NOT NULL",
		"store_id " + key + " NOT NULL",
		"aspos_product_id " + key + " NOT NULL",
		"available_quantity NUMERIC(14,4) NOT NULL DEFAULT 0",
		"physical_stock_quantity NUMERIC(14,4) NOT NULL DEFAULT 0",
		"price_incl_tax NUMERIC(12,2) NOT NULL DEFAULT 0",
		"price_excl_tax NUMERIC(12,2) NOT NULL DEFAULT 0",
		"synced_at " + ts,
		"PRIMARY KEY (product_id, store_id)",
	}, Index{Name: "idx_inventory_aspos_store", Columns: "aspos_product_id, store_id"})...)
	stmts = append(stmts, d.CreateTable("catalog_products", []string{
		"id " + d.AutoIDType(),
		"aspos_id " + key + " NOT NULL",
		"name TEXT",
		"description TEXT",
		"status TEXT",
		"published BOOLEAN NOT NULL DEFAULT FALSE",
		"price NUMERIC(12,2) NOT NULL DEFAULT 0",
		"regular_price NUMERIC(12,2) NOT NULL DEFAULT 0",
		"store_ids TEXT",
		"updated_at " + ts,
	}, Index{Name: "idx_catalog_aspos_id", Columns: "aspos_id", Unique: true})...)
	stmts = append(stmts, d.CreateTable("sync_tasks", []string{
		"seq " + d.AutoIDType(),
		"id " + key + " NOT NULL",
		"kind TEXT NOT NULL",
		"store_id TEXT",
		"submitted_at " + ts,
		"attempts INTEGER NOT NULL DEFAULT 0",
	}, Index{Name: "idx_sync_tasks_id", Columns: "id", Unique: true})...)
	stmts = append(stmts, d.CreateTable("sync_schedule", []string{
		"hook " + key + " PRIMARY KEY",
		"next_run " + ts,
	})...)

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	return nil
}

// Stats returns row counts and pool statistics for the admin endpoint.
func (db *DB) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"dialect": string(db.Dialect)}

	for _, table := range []string{"aspos_stores", "aspos_inventory", "catalog_products"} {
		var n int64
		if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return stats, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = n
	}

	dbStats := db.DB.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}
	return stats, nil
}
