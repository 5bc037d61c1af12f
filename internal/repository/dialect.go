package repository

import (
	"fmt"
	"strings"
)

// Dialect selects SQL differences between the supported relational engines.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) Dialect {
	switch driver {
	case "postgres", "pgx":
		return Postgres
	case "mysql":
		return MySQL
	default:
		return SQLite
	}
}

// KeyType is the column type for indexed string identifiers.
func (d Dialect) KeyType() string {
	if d == MySQL {
		return "VARCHAR(191)"
	}
	return "TEXT"
}

// TimeType is the column type for timestamps.
func (d Dialect) TimeType() string {
	switch d {
	case Postgres:
		return "TIMESTAMPTZ"
	case MySQL:
		return "DATETIME(6)"
	default:
		return "DATETIME"
	}
}

// AutoIDType is the column definition for an auto-incrementing primary key.
func (d Dialect) AutoIDType() string {
	switch d {
	case Postgres:
		return "BIGSERIAL PRIMARY KEY"
	case MySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// Upsert builds an insert that overwrites update columns when a row with
// the same key columns already exists. Placeholders are '?'; callers Rebind.
func (d Dialect) Upsert(table string, cols, keys, update []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	sets := make([]string, len(update))
	for i, c := range update {
		if d == MySQL {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		} else {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
	}

	if d == MySQL {
		fmt.Fprintf(&b, " ON DUPLICATE KEY UPDATE %s", strings.Join(sets, ", "))
	} else {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(sets, ", "))
	}
	return b.String()
}

// Index describes a secondary index created with a table.
type Index struct {
	Name    string
	Columns string
	Unique  bool
}

// CreateTable returns the statements that create table with its indexes.
// MySQL has no CREATE INDEX IF NOT EXISTS, so its indexes go inline.
func (d Dialect) CreateTable(table string, columns []string, indexes ...Index) []string {
	defs := append([]string{}, columns...)
	if d == MySQL {
		for _, ix := range indexes {
			kw := "KEY"
			if ix.Unique {
				kw = "UNIQUE KEY"
			}
			defs = append(defs, fmt.Sprintf("%s %s (%s)", kw, ix.Name, ix.Columns))
		}
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, strings.Join(defs, ",\n\t"))}
	if d != MySQL {
		for _, ix := range indexes {
			kw := "INDEX"
			if ix.Unique {
				kw = "UNIQUE INDEX"
			}
			stmts = append(stmts, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s(%s)", kw, ix.Name, table, ix.Columns))
		}
	}
	return stmts
}
