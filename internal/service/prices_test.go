package service

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspos-sync/internal/model"
)

func TestPriceExportRoundTripsAndSkipsBadRows(t *testing.T) {
	dir := t.TempDir()
	e, err := newPriceExport(dir)
	require.NoError(t, err)

	require.NoError(t, e.write(model.PriceUpdate{
		AsposProductID: "P1", StoreID: "S1",
		PriceInclTax: decimal.RequireFromString("12.10"), PriceExclTax: decimal.RequireFromString("10"),
	}))
	require.NoError(t, e.w.Write([]string{"P2", "S1", "n/a", "1"}))
	require.NoError(t, e.write(model.PriceUpdate{AsposProductID: "P3", StoreID: "S2"}))

	var got []model.PriceUpdate
	var bad []error
	err = e.apply(context.Background(),
		func(u model.PriceUpdate) { got = append(got, u) },
		func(err error) { bad = append(bad, err) })
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "P1", got[0].AsposProductID)
	assert.True(t, got[0].PriceInclTax.Equal(decimal.RequireFromString("12.1")))
	assert.Equal(t, "P3", got[1].AsposProductID)
	assert.Len(t, bad, 1)

	path := e.path()
	e.remove()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
