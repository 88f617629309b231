// Package giftlist tracks, per user, which catalog items are wanted and how
// many of each are still available versus already purchased.
package giftlist

import (
	"context"
	"math"

	"giftlist/internal/domain"
)

// GiftList is the set of operations shared by every list implementation.
type GiftList interface {
	User() UserRef
	// CreateList returns the user's list, creating it if absent. Calling it
	// again never resets existing entries.
	CreateList(ctx context.Context) (*domain.GiftList, error)
	// AddItem registers quantity more of item. Adding an item already on
	// the list accumulates into its available count.
	AddItem(ctx context.Context, item ItemRef, quantity int) error
	// RemoveItem deletes the matching entry. A missing entry is ErrNotFound.
	RemoveItem(ctx context.Context, item ItemRef) error
	// PurchaseItem moves quantity from available to purchased. It either
	// applies completely or leaves every counter unchanged.
	PurchaseItem(ctx context.Context, item ItemRef, quantity int) error
	List(ctx context.Context) ([]Entry, error)
	Report(ctx context.Context) (*Report, error)
}

// Entry is one line of a gift list.
type Entry struct {
	ID        int64          `json:"id"`
	ItemID    int64          `json:"item_id,omitempty"`
	ListID    int64          `json:"list_id,omitempty"`
	Record    map[string]any `json:"record,omitempty"`
	Available int            `json:"available"`
	Purchased int            `json:"purchased"`
}

func entryFromGift(g *domain.Gift) Entry {
	return Entry{
		ID:        g.ID,
		ItemID:    g.ItemID,
		ListID:    g.ListID,
		Available: g.Available,
		Purchased: g.Purchased,
	}
}

// MaxQuantity bounds every quantity and counter. The gifts columns are
// INTEGER.
const MaxQuantity = math.MaxInt32

func validQuantity(op string, quantity int) error {
	if quantity < 1 || quantity > MaxQuantity {
		return newError(op, KindValidation, ErrInvalidQuantity)
	}
	return nil
}

// fits reports whether count+quantity stays within MaxQuantity. Both are
// already known to be in range.
func fits(count, quantity int) bool {
	return count <= MaxQuantity-quantity
}
