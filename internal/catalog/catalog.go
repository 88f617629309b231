// Package catalog loads store items from JSON documents into the catalog.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"giftlist/internal/database"
	"giftlist/internal/domain"
	"giftlist/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	amountNoise   = regexp.MustCompile(`[A-Za-z ,]+`)
	currencyNoise = regexp.MustCompile(`[0-9,.\s]+`)

	validate = validator.New()
)

// Record is one item as it appears in an import document.
type Record struct {
	Name            string              `json:"name" validate:"required,max=255"`
	Brand           string              `json:"brand" validate:"max=255"`
	Price           decimal.NullDecimal `json:"-"`
	Currency        string              `json:"currency" validate:"max=10"`
	InStockQuantity int                 `json:"in_stock_quantity" validate:"gte=0"`
}

// UnmarshalJSON accepts a price given as a number or as a string with the
// currency appended, such as "28.11GBP".
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		Price json.RawMessage `json:"price"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	price := bytes.TrimSpace(aux.Price)
	if len(price) == 0 || bytes.Equal(price, []byte("null")) {
		return nil
	}

	if price[0] == '"' {
		var raw string
		if err := json.Unmarshal(price, &raw); err != nil {
			return err
		}
		amount, currency, err := SplitPrice(raw)
		if err != nil {
			return err
		}
		r.Price = decimal.NewNullDecimal(amount)
		if currency != "" {
			r.Currency = currency
		}
		return nil
	}

	amount, err := decimal.NewFromString(string(price))
	if err != nil {
		return fmt.Errorf("invalid price %s: %w", price, err)
	}
	r.Price = decimal.NewNullDecimal(amount)
	return nil
}

// SplitPrice separates "28.11GBP" into 28.11 and "GBP".
func SplitPrice(raw string) (decimal.Decimal, string, error) {
	amount, err := decimal.NewFromString(amountNoise.ReplaceAllString(raw, ""))
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("invalid price %q: %w", raw, err)
	}
	currency := strings.ToUpper(currencyNoise.ReplaceAllString(raw, ""))
	return amount, currency, nil
}

// Item converts the record into a catalog item.
func (r Record) Item() *domain.Item {
	return &domain.Item{
		Name:          r.Name,
		Brand:         r.Brand,
		Price:         r.Price,
		Currency:      r.Currency,
		StockQuantity: r.InStockQuantity,
	}
}

// ReadDocument splits a JSON array into its raw elements. Only a document
// that is not an array fails here; bad elements are left to the loader.
func ReadDocument(r io.Reader) ([]json.RawMessage, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return raws, nil
}

// Result counts the outcome of a load.
type Result struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// Loader inserts records one at a time so a bad record never blocks the
// rest of the document.
type Loader struct {
	items  repository.ItemRepository
	logger *zap.Logger
}

func NewLoader(items repository.ItemRepository, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{items: items, logger: logger}
}

// Load skips records that fail validation or violate a catalog constraint.
// Any other storage error stops the load.
func (l *Loader) Load(ctx context.Context, records []Record) (Result, error) {
	var result Result
	for i, record := range records {
		if err := l.loadRecord(ctx, i, record, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// LoadFile loads a whole document. Elements that do not decode as a
// Record, such as one with an unparseable price, are skipped like invalid
// records.
func (l *Loader) LoadFile(ctx context.Context, r io.Reader) (Result, error) {
	raws, err := ReadDocument(r)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for i, raw := range raws {
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			l.logger.Error("Skipping undecodable store item", zap.Int("index", i), zap.Error(err))
			result.Skipped++
			continue
		}
		if err := l.loadRecord(ctx, i, record, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (l *Loader) loadRecord(ctx context.Context, i int, record Record, result *Result) error {
	l.logger.Info("Loading store item into database", zap.Int("index", i), zap.String("name", record.Name))

	if err := validate.Struct(record); err != nil {
		l.logger.Error("Skipping invalid store item", zap.Int("index", i), zap.Error(err))
		result.Skipped++
		return nil
	}

	err := l.items.Create(ctx, record.Item())
	switch {
	case err == nil:
		result.Loaded++
		return nil
	case errors.Is(err, repository.ErrItemAlreadyExists), database.IsCheckViolation(err):
		l.logger.Error("Skipping store item", zap.Int("index", i), zap.Error(err))
		result.Skipped++
		return nil
	default:
		return fmt.Errorf("failed to load item %d: %w", i, err)
	}
}
