package transport

import (
	"context"
	"net/http"

	"giftlist/internal/giftlist"
	"giftlist/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// giftLookup is implemented by lists that can fetch one entry directly.
type giftLookup interface {
	Gift(ctx context.Context, giftID int64) (*giftlist.Entry, error)
}

// GiftHandler exposes the caller's gift list over HTTP.
type GiftHandler struct {
	registry *giftlist.Registry
	variant  string
	logger   *zap.Logger
}

func NewGiftHandler(registry *giftlist.Registry, variant string, logger *zap.Logger) *GiftHandler {
	return &GiftHandler{registry: registry, variant: variant, logger: logger}
}

// RegisterRoutes mounts the gift routes. Every route requires a caller.
func (h *GiftHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	route := func(fn queryHandler) http.HandlerFunc {
		return safeQuery(h.logger, giftStatus, fn)
	}

	r.Route("/api/v1/gifts", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/list", route(h.List))
		r.Post("/list/add", route(h.AddItem))
		r.Get("/list/report", route(h.Report))
		r.Get("/list/{gift_id}", route(h.GetGift))
		r.Delete("/list/{gift_id}", route(h.RemoveGift))
		r.Post("/list/{gift_id}/purchase", route(h.PurchaseGift))
	})
}

// callerList resolves the authenticated caller's list.
func (h *GiftHandler) callerList(r *http.Request) (giftlist.GiftList, error) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return nil, unauthorized()
	}
	return h.registry.Resolve(r.Context(), giftlist.ByID(userID), h.variant)
}

func (h *GiftHandler) List(w http.ResponseWriter, r *http.Request) error {
	list, err := h.callerList(r)
	if err != nil {
		return err
	}

	entries, err := list.List(r.Context())
	if err != nil {
		return err
	}
	respondQuery(w, h.logger, entries)
	return nil
}

// AddItem handles POST /list/add?item_id=&quantity=. Quantity defaults to 1.
func (h *GiftHandler) AddItem(w http.ResponseWriter, r *http.Request) error {
	itemID, ok := queryInt(r, "item_id", 0)
	if !ok || itemID < 1 {
		return badRequest("item_id must be a positive integer")
	}
	quantity, ok := queryInt(r, "quantity", 1)
	if !ok {
		return badRequest("quantity must be an integer")
	}

	list, err := h.callerList(r)
	if err != nil {
		return err
	}
	if err := list.AddItem(r.Context(), giftlist.ItemID(int64(itemID)), quantity); err != nil {
		return err
	}

	h.logger.Info("Gift added",
		zap.Stringer("user", list.User()),
		zap.Int("item_id", itemID),
		zap.Int("quantity", quantity),
	)
	respondStatus(w, http.StatusCreated, "Gift added to list")
	return nil
}

func (h *GiftHandler) GetGift(w http.ResponseWriter, r *http.Request) error {
	_, entry, err := h.gift(r)
	if err != nil {
		return err
	}
	respondQuery(w, h.logger, entry)
	return nil
}

func (h *GiftHandler) RemoveGift(w http.ResponseWriter, r *http.Request) error {
	list, entry, err := h.gift(r)
	if err != nil {
		return err
	}
	if err := list.RemoveItem(r.Context(), refFor(entry)); err != nil {
		return err
	}
	respondStatus(w, http.StatusOK, "Gift removed from list")
	return nil
}

// PurchaseGift handles POST /list/{gift_id}/purchase?quantity=. Quantity
// defaults to 1.
func (h *GiftHandler) PurchaseGift(w http.ResponseWriter, r *http.Request) error {
	quantity, ok := queryInt(r, "quantity", 1)
	if !ok {
		return badRequest("quantity must be an integer")
	}

	list, entry, err := h.gift(r)
	if err != nil {
		return err
	}
	if err := list.PurchaseItem(r.Context(), refFor(entry), quantity); err != nil {
		return err
	}

	h.logger.Info("Gift purchased",
		zap.Stringer("user", list.User()),
		zap.Int64("gift_id", entry.ID),
		zap.Int("quantity", quantity),
	)
	respondStatus(w, http.StatusOK, "Gift purchased")
	return nil
}

// Report returns the purchased/available split. ?format=text renders the
// plain text form.
func (h *GiftHandler) Report(w http.ResponseWriter, r *http.Request) error {
	list, err := h.callerList(r)
	if err != nil {
		return err
	}

	report, err := list.Report(r.Context())
	if err != nil {
		return err
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := report.WriteText(w); err != nil {
			h.logger.Error("Failed to write report", zap.Error(err))
		}
		return nil
	}
	respondQuery(w, h.logger, report)
	return nil
}

// gift resolves the {gift_id} path parameter against the caller's list.
func (h *GiftHandler) gift(r *http.Request) (giftlist.GiftList, *giftlist.Entry, error) {
	giftID, ok := pathID(r, "gift_id")
	if !ok {
		return nil, nil, badRequest("gift_id must be a positive integer")
	}

	list, err := h.callerList(r)
	if err != nil {
		return nil, nil, err
	}

	entry, err := findEntry(r.Context(), list, giftID)
	if err != nil {
		return nil, nil, err
	}
	return list, entry, nil
}

func findEntry(ctx context.Context, list giftlist.GiftList, giftID int64) (*giftlist.Entry, error) {
	if lookup, ok := list.(giftLookup); ok {
		return lookup.Gift(ctx, giftID)
	}

	entries, err := list.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == giftID {
			return &entries[i], nil
		}
	}
	return nil, &giftlist.Error{Op: "gift", Kind: giftlist.KindNotFound, Err: giftlist.ErrNotFound}
}

// refFor addresses an entry the way its list identifies items.
func refFor(entry *giftlist.Entry) giftlist.ItemRef {
	if entry.Record != nil {
		return giftlist.Record(entry.Record)
	}
	return giftlist.GiftID(entry.ID)
}
