package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"giftlist/internal/database"
	"giftlist/internal/domain"
)

var (
	ErrGiftListNotFound      = errors.New("gift list not found")
	ErrGiftNotFound          = errors.New("gift not found")
	ErrInsufficientAvailable = errors.New("quantity greater than available gift number")
	ErrCounterOutOfRange     = errors.New("gift counter out of range")
)

const giftColumns = `id, item_id, list_id, available, purchased, created_at`

// GiftRepository defines the interface for gift list and gift data access
type GiftRepository interface {
	// EnsureList returns the user's list, creating it when absent. A nil
	// userID always creates a fresh anonymous list.
	EnsureList(ctx context.Context, userID *int64) (*domain.GiftList, error)
	FindListByUser(ctx context.Context, userID int64) (*domain.GiftList, error)
	FindListByID(ctx context.Context, id int64) (*domain.GiftList, error)

	// AddOrIncrement creates the gift for (listID, itemID) or adds quantity
	// to its available count.
	AddOrIncrement(ctx context.Context, listID, itemID int64, quantity int) (*domain.Gift, error)
	FindByID(ctx context.Context, id int64) (*domain.Gift, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*domain.Gift, error)
	FindByItem(ctx context.Context, listID, itemID int64) (*domain.Gift, error)
	FindByItemForUpdate(ctx context.Context, listID, itemID int64) (*domain.Gift, error)
	ListByList(ctx context.Context, listID int64) ([]*domain.Gift, error)
	ListWithItems(ctx context.Context, listID int64) ([]*domain.GiftWithItem, error)
	// ApplyPurchase moves quantity from available to purchased.
	ApplyPurchase(ctx context.Context, id int64, quantity int) error
	Delete(ctx context.Context, id int64) error
}

type giftRepository struct {
	db database.Querier
}

// NewGiftRepository creates a new instance of GiftRepository
func NewGiftRepository(db database.Querier) GiftRepository {
	return &giftRepository{db: db}
}

func (r *giftRepository) EnsureList(ctx context.Context, userID *int64) (*domain.GiftList, error) {
	if userID == nil {
		list := &domain.GiftList{}
		err := r.db.QueryRowContext(ctx,
			`INSERT INTO gift_lists (user_id) VALUES (NULL) RETURNING id, user_id, created_at`,
		).Scan(&list.ID, &list.UserID, &list.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create gift list: %w", err)
		}
		return list, nil
	}

	// Concurrent callers for the same user converge on one row.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gift_lists (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		*userID,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create gift list: %w", err)
	}

	return r.FindListByUser(ctx, *userID)
}

func (r *giftRepository) FindListByUser(ctx context.Context, userID int64) (*domain.GiftList, error) {
	return r.findList(ctx, `SELECT id, user_id, created_at FROM gift_lists WHERE user_id = $1`, userID)
}

func (r *giftRepository) FindListByID(ctx context.Context, id int64) (*domain.GiftList, error) {
	return r.findList(ctx, `SELECT id, user_id, created_at FROM gift_lists WHERE id = $1`, id)
}

func (r *giftRepository) findList(ctx context.Context, query string, arg int64) (*domain.GiftList, error) {
	list := &domain.GiftList{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&list.ID, &list.UserID, &list.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGiftListNotFound
		}
		return nil, fmt.Errorf("failed to find gift list: %w", err)
	}
	return list, nil
}

func (r *giftRepository) AddOrIncrement(ctx context.Context, listID, itemID int64, quantity int) (*domain.Gift, error) {
	query := `
		INSERT INTO gifts (item_id, list_id, available, purchased)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (list_id, item_id)
		DO UPDATE SET available = gifts.available + EXCLUDED.available
		RETURNING ` + giftColumns

	gift, err := scanGift(r.db.QueryRowContext(ctx, query, itemID, listID, quantity))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrItemNotFound
		}
		if database.IsOutOfRange(err) {
			return nil, ErrCounterOutOfRange
		}
		return nil, fmt.Errorf("failed to add gift: %w", err)
	}
	return gift, nil
}

func (r *giftRepository) FindByID(ctx context.Context, id int64) (*domain.Gift, error) {
	return r.findGift(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1`, id)
}

func (r *giftRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Gift, error) {
	return r.findGift(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1 FOR UPDATE`, id)
}

func (r *giftRepository) FindByItem(ctx context.Context, listID, itemID int64) (*domain.Gift, error) {
	return r.findGift(ctx, `SELECT `+giftColumns+` FROM gifts WHERE list_id = $1 AND item_id = $2`, listID, itemID)
}

func (r *giftRepository) FindByItemForUpdate(ctx context.Context, listID, itemID int64) (*domain.Gift, error) {
	return r.findGift(ctx, `SELECT `+giftColumns+` FROM gifts WHERE list_id = $1 AND item_id = $2 FOR UPDATE`, listID, itemID)
}

func (r *giftRepository) findGift(ctx context.Context, query string, args ...any) (*domain.Gift, error) {
	gift, err := scanGift(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGiftNotFound
		}
		return nil, fmt.Errorf("failed to find gift: %w", err)
	}
	return gift, nil
}

// ListByList returns the gifts of a list in storage order
func (r *giftRepository) ListByList(ctx context.Context, listID int64) ([]*domain.Gift, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+giftColumns+` FROM gifts WHERE list_id = $1 ORDER BY id`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gifts: %w", err)
	}
	defer rows.Close()

	gifts := []*domain.Gift{}
	for rows.Next() {
		gift, err := scanGift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gift: %w", err)
		}
		gifts = append(gifts, gift)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gifts: %w", err)
	}

	return gifts, nil
}

// ListWithItems returns the gifts of a list joined with their catalog items
func (r *giftRepository) ListWithItems(ctx context.Context, listID int64) ([]*domain.GiftWithItem, error) {
	query := `
		SELECT g.id, g.item_id, g.list_id, g.available, g.purchased, g.created_at,
		       i.id, i.name, i.brand, i.price, i.currency, i.in_stock_quantity, i.created_at
		FROM gifts g
		JOIN items i ON i.id = g.item_id
		WHERE g.list_id = $1
		ORDER BY g.id
	`

	rows, err := r.db.QueryContext(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gifts with items: %w", err)
	}
	defer rows.Close()

	entries := []*domain.GiftWithItem{}
	for rows.Next() {
		entry := &domain.GiftWithItem{}
		err := rows.Scan(
			&entry.Gift.ID,
			&entry.Gift.ItemID,
			&entry.Gift.ListID,
			&entry.Gift.Available,
			&entry.Gift.Purchased,
			&entry.Gift.CreatedAt,
			&entry.Item.ID,
			&entry.Item.Name,
			&entry.Item.Brand,
			&entry.Item.Price,
			&entry.Item.Currency,
			&entry.Item.StockQuantity,
			&entry.Item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gift: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gifts: %w", err)
	}

	return entries, nil
}

func (r *giftRepository) ApplyPurchase(ctx context.Context, id int64, quantity int) error {
	query := `
		UPDATE gifts
		SET available = available - $2, purchased = purchased + $2
		WHERE id = $1 AND available >= $2
	`

	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		if database.IsOutOfRange(err) {
			return ErrCounterOutOfRange
		}
		return fmt.Errorf("failed to record purchase: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientAvailable
	}

	return nil
}

func (r *giftRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM gifts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete gift: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrGiftNotFound
	}

	return nil
}

func scanGift(row rowScanner) (*domain.Gift, error) {
	gift := &domain.Gift{}
	err := row.Scan(
		&gift.ID,
		&gift.ItemID,
		&gift.ListID,
		&gift.Available,
		&gift.Purchased,
		&gift.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return gift, nil
}
