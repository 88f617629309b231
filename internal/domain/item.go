package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item represents a product in the store catalog
type Item struct {
	ID            int64               `json:"id" db:"id"`
	Name          string              `json:"name" db:"name"`
	Brand         string              `json:"brand" db:"brand"`
	Price         decimal.NullDecimal `json:"price" db:"price"`
	Currency      string              `json:"currency" db:"currency"`
	StockQuantity int                 `json:"in_stock_quantity" db:"in_stock_quantity"`
	CreatedAt     time.Time           `json:"-" db:"created_at"`
}

// PublicFields returns the item attributes exposed in reports, keyed the
// same way as the item's JSON encoding.
func (i *Item) PublicFields() map[string]any {
	fields := map[string]any{
		"id":                i.ID,
		"name":              i.Name,
		"brand":             i.Brand,
		"currency":          i.Currency,
		"in_stock_quantity": i.StockQuantity,
		"price":             nil,
	}
	if i.Price.Valid {
		fields["price"] = i.Price.Decimal
	}
	return fields
}

// ItemFilter narrows catalog listings. Zero values mean "any".
type ItemFilter struct {
	Brand       string
	Currency    string
	InStockOnly bool
}
