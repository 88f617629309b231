package giftlist

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it without inspecting text.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

var (
	ErrNotFound              = errors.New("gift not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrItemNotFound          = errors.New("item not found")
	ErrInsufficientAvailable = errors.New("quantity greater than available gift number")
	ErrInsufficientStock     = errors.New("not enough stock of gift item")
	ErrInvalidQuantity       = errors.New("quantity must be a positive integer")
	ErrQuantityOverflow      = errors.New("gift count would exceed the largest storable quantity")
	ErrInvalidItem           = errors.New("item reference cannot be resolved")
)

// Error is returned by every GiftList operation that fails.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("giftlist %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("giftlist %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf reports the Kind of err, KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a giftlist error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
