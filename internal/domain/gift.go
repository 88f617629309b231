package domain

import "time"

// GiftList is a user's collection of desired catalog items. UserID is nil
// for anonymous lists.
type GiftList struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *int64    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Gift is one line of a gift list. Available counts units still desired,
// Purchased counts units already bought.
type Gift struct {
	ID        int64     `json:"id" db:"id"`
	ItemID    int64     `json:"item_id" db:"item_id"`
	ListID    int64     `json:"list_id" db:"list_id"`
	Available int       `json:"available" db:"available"`
	Purchased int       `json:"purchased" db:"purchased"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// GiftWithItem pairs a gift with its catalog item
type GiftWithItem struct {
	Gift Gift
	Item Item
}
