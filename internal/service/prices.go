package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"aspos-sync/internal/model"
)

var priceExportHeader = []string{"aspos_product_id", "store_id", "price_incl_tax", "price_excl_tax"}

// priceExport is the transient side file the price stage writes the fetched
// prices to before applying them.
type priceExport struct {
	f    *os.File
	w    *csv.Writer
	rows int
}

func newPriceExport(dir string) (*priceExport, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "aspos-prices-*.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to create price export: %w", err)
	}
	e := &priceExport{f: f, w: csv.NewWriter(f)}
	if err := e.w.Write(priceExportHeader); err != nil {
		e.remove()
		return nil, fmt.Errorf("failed to write price export header: %w", err)
	}
	return e, nil
}

func (e *priceExport) path() string { return e.f.Name() }

func (e *priceExport) write(u model.PriceUpdate) error {
	e.rows++
	return e.w.Write([]string{u.AsposProductID, u.StoreID, u.PriceInclTax.String(), u.PriceExclTax.String()})
}

// apply flushes the file and calls fn for every row in write order. A row
// that cannot be parsed is passed to onBad and skipped.
func (e *priceExport) apply(ctx context.Context, fn func(model.PriceUpdate), onBad func(error)) error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return fmt.Errorf("failed to flush price export: %w", err)
	}
	if _, err := e.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind price export: %w", err)
	}

	r := csv.NewReader(bufio.NewReader(e.f))
	r.FieldsPerRecord = len(priceExportHeader)
	if _, err := r.Read(); err != nil {
		return fmt.Errorf("failed to read price export header: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			onBad(err)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read price export: %w", err)
		}
		u, err := parsePriceRow(row)
		if err != nil {
			onBad(err)
			continue
		}
		fn(u)
	}
}

func parsePriceRow(row []string) (model.PriceUpdate, error) {
	incl, err := decimal.NewFromString(row[2])
	if err != nil {
		return model.PriceUpdate{}, fmt.Errorf("price_incl_tax %q: %w", row[2], err)
	}
	excl, err := decimal.NewFromString(row[3])
	if err != nil {
		return model.PriceUpdate{}, fmt.Errorf("price_excl_tax %q: %w", row[3], err)
	}
	return model.PriceUpdate{AsposProductID: row[0], StoreID: row[1], PriceInclTax: incl, PriceExclTax: excl}, nil
}

// remove closes and deletes the side file.
func (e *priceExport) remove() {
	e.f.Close()
	os.Remove(e.f.Name())
}
