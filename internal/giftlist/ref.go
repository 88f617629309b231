package giftlist

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// UserRef identifies a user by username or numeric id. The zero value is
// the anonymous user.
type UserRef struct {
	name string
	id   int64
	byID bool
}

func ByName(username string) UserRef { return UserRef{name: username} }

func ByID(id int64) UserRef { return UserRef{id: id, byID: true} }

// ParseUserRef treats an all-digit string as an id and anything else as a
// username.
func ParseUserRef(raw string) UserRef {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ByID(id)
	}
	return ByName(raw)
}

func (u UserRef) IsAnonymous() bool { return !u.byID && u.name == "" }

// ID returns the numeric id and whether the ref holds one.
func (u UserRef) ID() (int64, bool) { return u.id, u.byID }

// Name returns the username and whether the ref holds one.
func (u UserRef) Name() (string, bool) { return u.name, !u.byID && u.name != "" }

func (u UserRef) String() string {
	switch {
	case u.byID:
		return strconv.FormatInt(u.id, 10)
	case u.name != "":
		return u.name
	default:
		return "anonymous"
	}
}

func (u UserRef) MarshalJSON() ([]byte, error) {
	switch {
	case u.byID:
		return json.Marshal(u.id)
	case u.name != "":
		return json.Marshal(u.name)
	default:
		return []byte("null"), nil
	}
}

type refKind int

const (
	refRecord refKind = iota + 1
	refItemID
	refGiftID
)

// ItemRef names the thing an operation acts on: a free-form record for
// the in-memory list, or a catalog item id or gift id for the persistent one.
type ItemRef struct {
	kind   refKind
	record map[string]any
	id     int64
}

// Record refers to an item by its field set. Key order never matters.
func Record(fields map[string]any) ItemRef { return ItemRef{kind: refRecord, record: fields} }

// ItemID refers to a catalog item.
func ItemID(id int64) ItemRef { return ItemRef{kind: refItemID, id: id} }

// GiftID refers to an existing gift entry.
func GiftID(id int64) ItemRef { return ItemRef{kind: refGiftID, id: id} }

func (r ItemRef) String() string {
	switch r.kind {
	case refRecord:
		key, err := canonicalKey(r.record)
		if err != nil {
			return fmt.Sprintf("%v", r.record)
		}
		return key
	case refItemID:
		return "item " + strconv.FormatInt(r.id, 10)
	case refGiftID:
		return "gift " + strconv.FormatInt(r.id, 10)
	default:
		return "invalid"
	}
}

// canonicalKey renders a record so that equal field sets produce equal keys.
// encoding/json writes map keys in sorted order at every level.
func canonicalKey(record map[string]any) (string, error) {
	if len(record) == 0 {
		return "", ErrInvalidItem
	}
	b, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return string(b), nil
}
