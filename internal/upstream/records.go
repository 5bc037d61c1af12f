package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ID is an upstream identifier. The POS sends ids as strings on some
// endpoints and as numbers on others.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// StoreRecord is an entry of GET /stores.
type StoreRecord struct {
	ID          ID     `json:"id"`
	City        string `json:"city"`
	Code        string `json:"code"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	PostalCode  string `json:"postalCode"`
	Status      string `json:"status"`
	Street      string `json:"street"`
}

// ProductRecord is an entry of GET /sync/web-products.
type ProductRecord struct {
	ID           ID              `json:"id"`
	Description  string          `json:"description"`
	PriceInclTax decimal.Decimal `json:"priceInclTax"`
	PriceExclTax decimal.Decimal `json:"priceExclTax"`
	State        string          `json:"state"`
}

// StockRecord is an entry of GET /products/{id}/stock-info.
type StockRecord struct {
	StoreID               ID              `json:"storeId"`
	AvailableQuantity     decimal.Decimal `json:"availableQuantity"`
	PhysicalStockQuantity decimal.Decimal `json:"physicalStockQuantity"`
}
