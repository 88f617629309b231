package giftlist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"giftlist/internal/database"
	"giftlist/internal/domain"
	"giftlist/internal/repository"

	"go.uber.org/zap"
)

// SQLList is a gift list stored in postgres. Purchases run in a single
// transaction that locks the gift row before the item row.
type SQLList struct {
	db     *sql.DB
	user   UserRef
	userID *int64
	list   *domain.GiftList
	logger *zap.Logger
}

// NewSQLList resolves user and looks up or creates its list row. The
// anonymous ref gets a fresh list with no owner.
func NewSQLList(ctx context.Context, db *sql.DB, user UserRef, logger *zap.Logger) (*SQLList, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &SQLList{db: db, user: user, logger: logger}

	if !user.IsAnonymous() {
		u, err := ResolveUser(ctx, repository.NewUserRepository(db), user)
		if err != nil {
			if !IsKind(err, KindNotFound) {
				logger.Error("Gift list user lookup failed", zap.String("user", user.String()), zap.Error(err))
			}
			return nil, err
		}
		l.userID = &u.ID
	}

	list, err := repository.NewGiftRepository(db).EnsureList(ctx, l.userID)
	if err != nil {
		return nil, l.fail("create_list", err)
	}
	l.list = list

	logger.Info("Gift list resolved",
		zap.String("user", user.String()),
		zap.Int64("list_id", list.ID),
	)
	return l, nil
}

// SQLConstructor builds persistent lists for a Registry.
func SQLConstructor(db *sql.DB, logger *zap.Logger) Constructor {
	return func(ctx context.Context, user UserRef) (GiftList, error) {
		list, err := NewSQLList(ctx, db, user, logger)
		if err != nil {
			return nil, err
		}
		return list, nil
	}
}

// ResolveUser maps ref to a stored user by id or username. The anonymous
// ref and unknown users are KindNotFound.
func ResolveUser(ctx context.Context, users repository.UserRepository, ref UserRef) (*domain.User, error) {
	const op = "resolve_user"
	var (
		user *domain.User
		err  error
	)

	if id, ok := ref.ID(); ok {
		user, err = users.FindByID(ctx, id)
	} else if name, ok := ref.Name(); ok {
		user, err = users.FindByUsername(ctx, name)
	} else {
		return nil, newError(op, KindNotFound, ErrUserNotFound)
	}

	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, newError(op, KindNotFound, ErrUserNotFound)
	}
	if err != nil {
		return nil, newError(op, KindInternal, err)
	}
	return user, nil
}

func (l *SQLList) User() UserRef { return l.user }

// ListID is the id of the backing gift_lists row.
func (l *SQLList) ListID() int64 { return l.list.ID }

func (l *SQLList) CreateList(ctx context.Context) (*domain.GiftList, error) {
	if l.userID == nil {
		copied := *l.list
		return &copied, nil
	}

	list, err := repository.NewGiftRepository(l.db).EnsureList(ctx, l.userID)
	if err != nil {
		return nil, l.fail("create_list", err)
	}
	l.list = list
	return list, nil
}

// AddItem adds quantity of the catalog item. A Record may carry its own
// "quantity", which is used when quantity is the default of 1; a record
// quantity that contradicts an explicit one is rejected.
func (l *SQLList) AddItem(ctx context.Context, item ItemRef, quantity int) error {
	const op = "add_item"
	quantity, err := recordQuantity(op, item, quantity)
	if err != nil {
		return err
	}
	if err := validQuantity(op, quantity); err != nil {
		return err
	}

	itemID, err := catalogItemID(op, item)
	if err != nil {
		return err
	}

	gift, err := repository.NewGiftRepository(l.db).AddOrIncrement(ctx, l.list.ID, itemID, quantity)
	if err != nil {
		return l.fail(op, err)
	}

	l.logger.Info("Gift added",
		zap.Int64("list_id", l.list.ID),
		zap.Int64("gift_id", gift.ID),
		zap.Int64("item_id", itemID),
		zap.Int("available", gift.Available),
	)
	return nil
}

func (l *SQLList) RemoveItem(ctx context.Context, item ItemRef) error {
	const op = "remove_item"
	gifts := repository.NewGiftRepository(l.db)

	gift, err := l.findGift(ctx, op, gifts, item, false)
	if err != nil {
		return err
	}

	if err := gifts.Delete(ctx, gift.ID); err != nil {
		return l.fail(op, err)
	}

	l.logger.Info("Gift removed",
		zap.Int64("list_id", l.list.ID),
		zap.Int64("gift_id", gift.ID),
	)
	return nil
}

// PurchaseItem decrements the gift's available count and the item's stock
// by quantity. Either check failing rolls the whole transaction back.
func (l *SQLList) PurchaseItem(ctx context.Context, item ItemRef, quantity int) error {
	const op = "purchase_item"
	if err := validQuantity(op, quantity); err != nil {
		return err
	}

	var giftID int64
	err := database.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		gifts := repository.NewGiftRepository(tx)
		items := repository.NewItemRepository(tx)

		gift, err := l.findGift(ctx, op, gifts, item, true)
		if err != nil {
			return err
		}
		giftID = gift.ID

		if quantity > gift.Available {
			return repository.ErrInsufficientAvailable
		}

		stocked, err := items.FindByIDForUpdate(ctx, gift.ItemID)
		if err != nil {
			return err
		}
		if quantity > stocked.StockQuantity {
			return repository.ErrInsufficientStock
		}

		if err := items.DecrementStock(ctx, stocked.ID, quantity); err != nil {
			return err
		}
		return gifts.ApplyPurchase(ctx, gift.ID, quantity)
	})
	if err != nil {
		return l.fail(op, err)
	}

	l.logger.Info("Gift purchased",
		zap.Int64("list_id", l.list.ID),
		zap.Int64("gift_id", giftID),
		zap.Int("quantity", quantity),
	)
	return nil
}

func (l *SQLList) List(ctx context.Context) ([]Entry, error) {
	gifts, err := repository.NewGiftRepository(l.db).ListByList(ctx, l.list.ID)
	if err != nil {
		return nil, l.fail("get_list", err)
	}

	entries := make([]Entry, 0, len(gifts))
	for _, g := range gifts {
		entries = append(entries, entryFromGift(g))
	}
	return entries, nil
}

// Gift returns a single entry of this list.
func (l *SQLList) Gift(ctx context.Context, giftID int64) (*Entry, error) {
	gift, err := l.findGift(ctx, "get_gift", repository.NewGiftRepository(l.db), GiftID(giftID), false)
	if err != nil {
		return nil, err
	}
	entry := entryFromGift(gift)
	return &entry, nil
}

func (l *SQLList) Report(ctx context.Context) (*Report, error) {
	rows, err := repository.NewGiftRepository(l.db).ListWithItems(ctx, l.list.ID)
	if err != nil {
		return nil, l.fail("create_report", err)
	}

	report := newReport(l.user)
	if l.userID != nil {
		report.User = ByID(*l.userID)
	}
	for _, row := range rows {
		report.add(row.Item.PublicFields(), row.Gift.Available, row.Gift.Purchased)
	}
	return report, nil
}

// findGift resolves a gift or item ref to a gift of this list. Gifts of
// other lists are reported as not found.
func (l *SQLList) findGift(ctx context.Context, op string, gifts repository.GiftRepository, item ItemRef, lock bool) (*domain.Gift, error) {
	var (
		gift *domain.Gift
		err  error
	)

	switch item.kind {
	case refGiftID:
		if lock {
			gift, err = gifts.FindByIDForUpdate(ctx, item.id)
		} else {
			gift, err = gifts.FindByID(ctx, item.id)
		}
	case refItemID, refRecord:
		itemID, rerr := catalogItemID(op, item)
		if rerr != nil {
			return nil, rerr
		}
		if lock {
			gift, err = gifts.FindByItemForUpdate(ctx, l.list.ID, itemID)
		} else {
			gift, err = gifts.FindByItem(ctx, l.list.ID, itemID)
		}
	default:
		return nil, newError(op, KindValidation, ErrInvalidItem)
	}

	if err != nil {
		return nil, l.fail(op, err)
	}
	if gift.ListID != l.list.ID {
		return nil, newError(op, KindNotFound, ErrNotFound)
	}
	return gift, nil
}

// catalogItemID accepts ItemID refs and records carrying an integral
// "item_id" or "id" field.
func catalogItemID(op string, item ItemRef) (int64, error) {
	switch item.kind {
	case refItemID:
		return item.id, nil
	case refRecord:
		for _, field := range []string{"item_id", "id"} {
			if v, ok := item.record[field]; ok {
				if id, ok := asInt64(v); ok {
					return id, nil
				}
				return 0, newError(op, KindValidation, fmt.Errorf("%w: %s is not an integer", ErrInvalidItem, field))
			}
		}
	}
	return 0, newError(op, KindValidation, ErrInvalidItem)
}

func recordQuantity(op string, item ItemRef, quantity int) (int, error) {
	if item.kind != refRecord {
		return quantity, nil
	}
	v, ok := item.record["quantity"]
	if !ok {
		return quantity, nil
	}

	n, ok := asInt64(v)
	if !ok || n < 1 || n > MaxQuantity {
		return 0, newError(op, KindValidation, fmt.Errorf("%w: record quantity %v", ErrInvalidQuantity, v))
	}
	switch {
	case quantity == 1:
		return int(n), nil
	case int(n) != quantity:
		return 0, newError(op, KindValidation, fmt.Errorf("%w: record quantity %d contradicts %d", ErrInvalidQuantity, n, quantity))
	default:
		return quantity, nil
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		id, err := n.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}

// fail converts repository errors into typed errors and logs them at a
// level matching their kind.
func (l *SQLList) fail(op string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var wrapped *Error
	switch {
	case errors.Is(err, repository.ErrInsufficientAvailable):
		wrapped = newError(op, KindConflict, ErrInsufficientAvailable)
	case errors.Is(err, repository.ErrInsufficientStock):
		wrapped = newError(op, KindConflict, ErrInsufficientStock)
	case errors.Is(err, repository.ErrGiftNotFound), errors.Is(err, repository.ErrGiftListNotFound):
		wrapped = newError(op, KindNotFound, ErrNotFound)
	case errors.Is(err, repository.ErrItemNotFound):
		wrapped = newError(op, KindNotFound, ErrItemNotFound)
	case errors.Is(err, repository.ErrUserNotFound):
		wrapped = newError(op, KindNotFound, ErrUserNotFound)
	case errors.Is(err, repository.ErrCounterOutOfRange):
		wrapped = newError(op, KindValidation, ErrQuantityOverflow)
	default:
		l.logger.Error("Gift list storage failure",
			zap.String("op", op),
			zap.String("user", l.user.String()),
			zap.Error(err),
		)
		return newError(op, KindInternal, err)
	}

	l.logger.Warn("Gift list operation rejected",
		zap.String("op", op),
		zap.String("user", l.user.String()),
		zap.Error(err),
	)
	return wrapped
}
