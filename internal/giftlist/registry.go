package giftlist

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const (
	VariantMemory     = "memory"
	VariantPersistent = "persistent"
)

// Constructor builds the list of a user on first resolution.
type Constructor func(ctx context.Context, user UserRef) (GiftList, error)

// Registry hands out one GiftList per user for the life of the process.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]Constructor
	lists        map[UserRef]GiftList
	logger       *zap.Logger
}

// NewRegistry returns a registry that knows the memory variant.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		constructors: make(map[string]Constructor),
		lists:        make(map[UserRef]GiftList),
		logger:       logger,
	}
	r.Register(VariantMemory, MemoryConstructor(logger))
	return r
}

// Register makes variant resolvable, replacing any earlier constructor.
func (r *Registry) Register(variant string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[variant] = c
}

// Resolve returns the user's list, building it with the variant's
// constructor on first call. Unknown variants fall back to memory. Once a
// user has a list the variant argument is ignored. Failed constructions
// are not cached.
func (r *Registry) Resolve(ctx context.Context, user UserRef, variant string) (GiftList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if list, ok := r.lists[user]; ok {
		return list, nil
	}

	construct, ok := r.constructors[variant]
	if !ok {
		r.logger.Debug("Unknown gift list variant, using memory", zap.String("variant", variant))
		construct = r.constructors[VariantMemory]
	}

	list, err := construct(ctx, user)
	if err != nil {
		return nil, err
	}
	r.lists[user] = list

	r.logger.Info("Gift list created",
		zap.String("user", user.String()),
		zap.String("variant", variant),
	)
	return list, nil
}

// Len reports how many users have a resolved list.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}
