package giftlist

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"giftlist/internal/domain"

	"go.uber.org/zap"
)

type memoryEntry struct {
	id     int64
	key    string
	record map[string]any
}

// MemoryList keeps a gift list in process memory. Items are free-form
// records; two records with the same field set are the same gift.
type MemoryList struct {
	mu        sync.Mutex
	user      UserRef
	list      *domain.GiftList
	entries   []memoryEntry
	available map[string]int
	purchased map[string]int
	nextID    int64
	logger    *zap.Logger
}

// NewMemoryList returns an empty list for user.
func NewMemoryList(user UserRef, logger *zap.Logger) *MemoryList {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryList{
		user:      user,
		available: make(map[string]int),
		purchased: make(map[string]int),
		logger:    logger,
	}
}

// MemoryConstructor builds in-memory lists for a Registry.
func MemoryConstructor(logger *zap.Logger) Constructor {
	return func(_ context.Context, user UserRef) (GiftList, error) {
		return NewMemoryList(user, logger), nil
	}
}

func (l *MemoryList) User() UserRef { return l.user }

func (l *MemoryList) CreateList(_ context.Context) (*domain.GiftList, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.list == nil {
		l.list = &domain.GiftList{ID: 1, CreatedAt: time.Now()}
		if id, ok := l.user.ID(); ok {
			l.list.UserID = &id
		}
	}
	copied := *l.list
	return &copied, nil
}

func (l *MemoryList) AddItem(_ context.Context, item ItemRef, quantity int) error {
	const op = "add_item"
	if err := validQuantity(op, quantity); err != nil {
		return err
	}
	key, record, err := recordKey(op, item)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !fits(l.available[key], quantity) {
		return newError(op, KindValidation, ErrQuantityOverflow)
	}
	if l.indexOf(key) < 0 {
		l.nextID++
		l.entries = append(l.entries, memoryEntry{id: l.nextID, key: key, record: cloneRecord(record)})
	}
	l.available[key] += quantity

	l.logger.Debug("Gift added",
		zap.String("user", l.user.String()),
		zap.String("item", key),
		zap.Int("quantity", quantity),
	)
	return nil
}

// RemoveItem drops the entry together with its counters.
func (l *MemoryList) RemoveItem(_ context.Context, item ItemRef) error {
	const op = "remove_item"
	key, _, err := recordKey(op, item)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(key)
	if i < 0 {
		return newError(op, KindNotFound, ErrNotFound)
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	delete(l.available, key)
	delete(l.purchased, key)
	return nil
}

func (l *MemoryList) PurchaseItem(_ context.Context, item ItemRef, quantity int) error {
	const op = "purchase_item"
	if err := validQuantity(op, quantity); err != nil {
		return err
	}
	key, _, err := recordKey(op, item)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if quantity > l.available[key] {
		return newError(op, KindConflict, ErrInsufficientAvailable)
	}
	if !fits(l.purchased[key], quantity) {
		return newError(op, KindValidation, ErrQuantityOverflow)
	}
	l.available[key] -= quantity
	l.purchased[key] += quantity
	return nil
}

// List returns entries in insertion order.
func (l *MemoryList) List(_ context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, Entry{
			ID:        e.id,
			Record:    cloneRecord(e.record),
			Available: l.available[e.key],
			Purchased: l.purchased[e.key],
		})
	}
	return entries, nil
}

func (l *MemoryList) Report(_ context.Context) (*Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	report := newReport(l.user)
	for _, e := range l.entries {
		report.add(e.record, l.available[e.key], l.purchased[e.key])
	}
	return report, nil
}

// WriteReport renders the text report to w.
func (l *MemoryList) WriteReport(w io.Writer) error {
	report, err := l.Report(context.Background())
	if err != nil {
		return err
	}
	return report.WriteText(w)
}

// PrintReport writes the text report to standard output.
func (l *MemoryList) PrintReport() error {
	return l.WriteReport(os.Stdout)
}

// indexOf must be called with mu held.
func (l *MemoryList) indexOf(key string) int {
	for i, e := range l.entries {
		if e.key == key {
			return i
		}
	}
	return -1
}

// recordKey resolves the refs accepted by the in-memory list. A bare item
// id stands for the record {"id": n}.
func recordKey(op string, item ItemRef) (string, map[string]any, error) {
	var record map[string]any
	switch item.kind {
	case refRecord:
		record = item.record
	case refItemID:
		record = map[string]any{"id": item.id}
	default:
		return "", nil, newError(op, KindValidation, ErrInvalidItem)
	}

	key, err := canonicalKey(record)
	if err != nil {
		return "", nil, newError(op, KindValidation, err)
	}
	return key, record, nil
}

func cloneRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out
}
