package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"giftlist/internal/database"
	"giftlist/internal/domain"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrItemAlreadyExists = errors.New("item with this name and brand already exists")
	ErrInsufficientStock = errors.New("not enough stock of item")
)

const itemColumns = `id, name, brand, price, currency, in_stock_quantity, created_at`

// ItemRepository defines the interface for catalog data access
type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	FindByID(ctx context.Context, id int64) (*domain.Item, error)
	// FindByIDForUpdate locks the item row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id int64) (*domain.Item, error)
	List(ctx context.Context, filter domain.ItemFilter) ([]*domain.Item, error)
	DecrementStock(ctx context.Context, id int64, quantity int) error
	IncrementStock(ctx context.Context, id int64, quantity int) error
}

type itemRepository struct {
	db database.Querier
}

// NewItemRepository creates a new instance of ItemRepository bound to db,
// which may be the pool or an open transaction
func NewItemRepository(db database.Querier) ItemRepository {
	return &itemRepository{db: db}
}

// Create inserts a new item and fills in its generated ID
func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `
		INSERT INTO items (name, brand, price, currency, in_stock_quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		item.Name,
		item.Brand,
		item.Price,
		item.Currency,
		item.StockQuantity,
	).Scan(&item.ID, &item.CreatedAt)

	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrItemAlreadyExists
		}
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// FindByID retrieves an item by ID
func (r *itemRepository) FindByID(ctx context.Context, id int64) (*domain.Item, error) {
	return r.findOne(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
}

func (r *itemRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Item, error) {
	return r.findOne(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id)
}

func (r *itemRepository) findOne(ctx context.Context, query string, id int64) (*domain.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to find item by ID: %w", err)
	}
	return item, nil
}

// List retrieves catalog items matching filter, ordered by ID
func (r *itemRepository) List(ctx context.Context, filter domain.ItemFilter) ([]*domain.Item, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Brand != "" {
		args = append(args, filter.Brand)
		conditions = append(conditions, fmt.Sprintf("brand = $%d", len(args)))
	}
	if filter.Currency != "" {
		args = append(args, filter.Currency)
		conditions = append(conditions, fmt.Sprintf("currency = $%d", len(args)))
	}
	if filter.InStockOnly {
		conditions = append(conditions, "in_stock_quantity > 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM items %s ORDER BY id ASC`, itemColumns, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []*domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// DecrementStock removes quantity units from stock. The guarded UPDATE never
// drives stock negative: it affects no row when stock is short.
func (r *itemRepository) DecrementStock(ctx context.Context, id int64, quantity int) error {
	query := `
		UPDATE items
		SET in_stock_quantity = in_stock_quantity - $2
		WHERE id = $1 AND in_stock_quantity >= $2
	`

	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}

	return nil
}

// IncrementStock returns quantity units to stock
func (r *itemRepository) IncrementStock(ctx context.Context, id int64, quantity int) error {
	query := `UPDATE items SET in_stock_quantity = in_stock_quantity + $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrItemNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Brand,
		&item.Price,
		&item.Currency,
		&item.StockQuantity,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
