package cart

import (
	"context"
	"fmt"
	"slices"

	"bag-service/internal/models"
	"bag-service/internal/store"
	"bag-service/internal/util"

	"go.uber.org/zap"
)

// StorageKey is the key the bag is persisted under
const StorageKey = "iartwork"

// Store is the durable, ordered list of artwork ids in a bag.
// Every mutation is persisted before it returns; on a failed write the
// in-memory list is restored to the last persisted value.
// Store is not safe for concurrent use.
type Store struct {
	storage store.Storage
	ids     []int64
	dirty   bool
	logger  *zap.Logger
}

// NewStore creates a cart store over storage. Call Load before use.
func NewStore(storage store.Storage) *Store {
	return &Store{
		storage: storage,
		logger:  util.GetLogger(),
	}
}

// Load reads the persisted bag, or an empty bag when it was never written
func (s *Store) Load(ctx context.Context) ([]int64, error) {
	var ids []int64
	if _, err := store.GetJSON(ctx, s.storage, StorageKey, &ids); err != nil {
		util.StorageErrorsTotal.WithLabelValues("cart_load").Inc()
		return nil, models.NewStorageError(fmt.Errorf("failed to load cart: %w", err))
	}

	s.ids = ids
	return s.IDs(), nil
}

// IDs returns a copy of the ids in insertion order
func (s *Store) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of entries, unresolved ids included
func (s *Store) Len() int {
	return len(s.ids)
}

// Contains reports whether id is in the bag
func (s *Store) Contains(id int64) bool {
	return slices.Contains(s.ids, id)
}

// Add appends id unconditionally
func (s *Store) Add(ctx context.Context, id int64) error {
	next := append(s.IDs(), id)
	return s.persist(ctx, "cart_add", next)
}

// AddUnique appends id unless it is already present
func (s *Store) AddUnique(ctx context.Context, id int64) (bool, error) {
	if s.Contains(id) {
		return false, nil
	}
	if err := s.Add(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// Remove drops every occurrence of id and returns how many were removed
func (s *Store) Remove(ctx context.Context, id int64) (int, error) {
	next := make([]int64, 0, len(s.ids))
	for _, itemID := range s.ids {
		if itemID != id {
			next = append(next, itemID)
		}
	}

	removed := len(s.ids) - len(next)
	if err := s.persist(ctx, "cart_remove", next); err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear empties the bag
func (s *Store) Clear(ctx context.Context) error {
	return s.persist(ctx, "cart_clear", []int64{})
}

// Reset empties the bag in memory whether or not the write succeeds.
// After a failed write the store is dirty until a later write reaches storage.
func (s *Store) Reset(ctx context.Context) error {
	err := s.persist(ctx, "cart_reset", []int64{})
	if err != nil {
		s.ids = []int64{}
		s.dirty = true
	}
	return err
}

// Dirty reports whether the in-memory bag is ahead of storage
func (s *Store) Dirty() bool {
	return s.dirty
}

func (s *Store) persist(ctx context.Context, op string, next []int64) error {
	if next == nil {
		next = []int64{}
	}

	if err := store.PutJSON(ctx, s.storage, StorageKey, next); err != nil {
		util.StorageErrorsTotal.WithLabelValues(op).Inc()
		s.logger.Error("Failed to persist cart",
			zap.String("op", op),
			zap.Int("items", len(s.ids)),
			zap.Error(err))
		return models.NewStorageError(fmt.Errorf("failed to persist cart: %w", err))
	}

	s.ids = next
	s.dirty = false
	return nil
}
