package transport

import (
	"errors"
	"net/http"
	"strconv"

	"giftlist/internal/catalog"
	"giftlist/internal/domain"
	"giftlist/internal/middleware"
	"giftlist/internal/repository"
	"giftlist/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PlaceOrderRequest represents the order placement payload
type PlaceOrderRequest struct {
	Items []service.OrderLine `json:"items" validate:"required,min=1,dive"`
}

// StoreHandler serves the catalog and direct store orders
type StoreHandler struct {
	items  repository.ItemRepository
	orders service.OrderService
	logger *zap.Logger
}

// NewStoreHandler creates a new StoreHandler
func NewStoreHandler(items repository.ItemRepository, orders service.OrderService, logger *zap.Logger) *StoreHandler {
	return &StoreHandler{items: items, orders: orders, logger: logger}
}

// RegisterRoutes registers catalog and order routes. Browsing the catalog
// is public, adding items requires an admin.
func (h *StoreHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	route := func(fn queryHandler) http.HandlerFunc {
		return safeQuery(h.logger, storeStatus, fn)
	}

	r.Route("/api/v1/store", func(r chi.Router) {
		r.Get("/items", route(h.ListItems))
		r.Get("/items/{item_id}", route(h.GetItem))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.With(adminMiddleware).Post("/items", route(h.CreateItem))
			r.Get("/orders", route(h.ListOrders))
			r.Post("/orders", route(h.PlaceOrder))
			r.Get("/orders/{order_id}", route(h.GetOrder))
			r.Delete("/orders/{order_id}", route(h.VoidOrder))
		})
	})
}

// ListItems handles GET /items?brand=&currency=&in_stock=
func (h *StoreHandler) ListItems(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	filter := domain.ItemFilter{
		Brand:    q.Get("brand"),
		Currency: q.Get("currency"),
	}
	if raw := q.Get("in_stock"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest("in_stock must be a boolean")
		}
		filter.InStockOnly = inStock
	}

	items, err := h.items.List(r.Context(), filter)
	if err != nil {
		return err
	}
	respondQuery(w, h.logger, items)
	return nil
}

// GetItem answers 204 for an unknown item
func (h *StoreHandler) GetItem(w http.ResponseWriter, r *http.Request) error {
	id, ok := pathID(r, "item_id")
	if !ok {
		return badRequest("invalid item id")
	}

	item, err := h.items.FindByID(r.Context(), id)
	if errors.Is(err, repository.ErrItemNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	if err != nil {
		return err
	}
	respondQuery(w, h.logger, item)
	return nil
}

// CreateItem accepts the same record shape as the catalog import
func (h *StoreHandler) CreateItem(w http.ResponseWriter, r *http.Request) error {
	var record catalog.Record
	if err := middleware.DecodeAndValidate(r, &record); err != nil {
		return err
	}

	item := record.Item()
	if err := h.items.Create(r.Context(), item); err != nil {
		return err
	}

	h.logger.Info("Item created", zap.Int64("item_id", item.ID), zap.String("name", item.Name))
	middleware.RespondWithJSON(w, http.StatusCreated, item)
	return nil
}

func (h *StoreHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) error {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return unauthorized()
	}

	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		return err
	}

	order, err := h.orders.PlaceOrder(r.Context(), userID, req.Items)
	if err != nil {
		return err
	}
	middleware.RespondWithJSON(w, http.StatusCreated, order)
	return nil
}

func (h *StoreHandler) ListOrders(w http.ResponseWriter, r *http.Request) error {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return unauthorized()
	}

	orders, err := h.orders.ListOrders(r.Context(), userID)
	if err != nil {
		return err
	}
	respondQuery(w, h.logger, orders)
	return nil
}

func (h *StoreHandler) GetOrder(w http.ResponseWriter, r *http.Request) error {
	userID, orderID, err := orderParams(r)
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		return err
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
	return nil
}

// VoidOrder cancels a CREATED order
func (h *StoreHandler) VoidOrder(w http.ResponseWriter, r *http.Request) error {
	userID, orderID, err := orderParams(r)
	if err != nil {
		return err
	}

	order, err := h.orders.VoidOrder(r.Context(), userID, orderID)
	if err != nil {
		return err
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
	return nil
}

func orderParams(r *http.Request) (userID, orderID int64, err error) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return 0, 0, unauthorized()
	}
	orderID, ok = pathID(r, "order_id")
	if !ok {
		return 0, 0, badRequest("invalid order id")
	}
	return userID, orderID, nil
}

// storeStatus maps catalog and order failures.
func storeStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmptyOrder), errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, repository.ErrItemNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrItemAlreadyExists):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
