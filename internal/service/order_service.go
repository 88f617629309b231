package service

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"

	"giftlist/internal/database"
	"giftlist/internal/domain"
	"giftlist/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

// OrderLine is one requested item of a new order
type OrderLine struct {
	ItemID   int64 `json:"item" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

// OrderService defines the interface for order business logic
type OrderService interface {
	PlaceOrder(ctx context.Context, userID int64, lines []OrderLine) (*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
	VoidOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
}

type orderService struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(db *sql.DB, logger *zap.Logger) OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderService{db: db, logger: logger}
}

// PlaceOrder records the order and takes every line out of stock in one
// transaction. A line exceeding stock aborts the whole order.
func (s *orderService) PlaceOrder(ctx context.Context, userID int64, lines []OrderLine) (*domain.Order, error) {
	lines, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{UserID: userID, Status: domain.OrderCreated}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		orders := repository.NewOrderRepository(tx)
		items := repository.NewItemRepository(tx)

		if err := orders.Create(ctx, order); err != nil {
			return err
		}

		for _, line := range lines {
			orderItem := domain.OrderItem{OrderID: order.ID, ItemID: line.ItemID, Quantity: line.Quantity}
			if err := orders.AddItem(ctx, &orderItem); err != nil {
				return err
			}
			if err := items.DecrementStock(ctx, line.ItemID, line.Quantity); err != nil {
				return err
			}
			order.Items = append(order.Items, orderItem)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Order rejected", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Int("lines", len(order.Items)),
	)
	return order, nil
}

// mergeLines folds lines naming the same item into one and orders them by
// item id, so concurrent orders lock item rows in the same order.
func mergeLines(lines []OrderLine) ([]OrderLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	index := make(map[int64]int, len(lines))
	merged := make([]OrderLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 || line.Quantity > math.MaxInt32 {
			return nil, ErrInvalidQuantity
		}
		i, seen := index[line.ItemID]
		if !seen {
			index[line.ItemID] = len(merged)
			merged = append(merged, line)
			continue
		}
		if merged[i].Quantity > math.MaxInt32-line.Quantity {
			return nil, ErrInvalidQuantity
		}
		merged[i].Quantity += line.Quantity
	}

	slices.SortFunc(merged, func(a, b OrderLine) int {
		return cmp.Compare(a.ItemID, b.ItemID)
	})
	return merged, nil
}

// GetOrder returns an order owned by userID
func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := repository.NewOrderRepository(s.db).FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := repository.NewOrderRepository(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// VoidOrder cancels a CREATED order and returns its items to stock
func (s *orderService) VoidOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	var voided *domain.Order
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		orders := repository.NewOrderRepository(tx)
		items := repository.NewItemRepository(tx)

		order, err := orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return repository.ErrOrderNotFound
		}
		if !order.Status.CanTransitionTo(domain.OrderVoided) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, domain.OrderVoided)
		}

		for _, line := range order.Items {
			if err := items.IncrementStock(ctx, line.ItemID, line.Quantity); err != nil {
				return err
			}
		}
		if err := orders.UpdateStatus(ctx, order.ID, domain.OrderVoided); err != nil {
			return err
		}

		order.Status = domain.OrderVoided
		voided = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order voided", zap.Int64("order_id", orderID), zap.Int64("user_id", userID))
	return voided, nil
}
