// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package showcase

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/platform/apperr"
)

// MemoryStore keeps records in process memory. It backs DB-less runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[media.Category]map[int64]*Record
	nextID  map[media.Category]int64
	clock   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		records: make(map[media.Category]map[int64]*Record, len(media.Categories)),
		nextID:  make(map[media.Category]int64, len(media.Categories)),
		clock:   time.Now,
	}
	for _, kind := range media.Categories {
		store.records[kind] = make(map[int64]*Record)
	}
	return store
}

func (store *MemoryStore) Find(_ context.Context, kind media.Category, id int64) (*Record, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	record, ok := store.records[kind][id]
	if !ok {
		return nil, apperr.NotFound(kind.Label())
	}
	return record.clone(), nil
}

// List orders by Order ascending, newest first among equals.
func (store *MemoryStore) List(_ context.Context, kind media.Category) ([]*Record, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	records := make([]*Record, 0, len(store.records[kind]))
	for _, record := range store.records[kind] {
		records = append(records, record.clone())
	}

	slices.SortFunc(records, func(a, b *Record) int {
		if a.Order != b.Order {
			return cmp.Compare(a.Order, b.Order)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return records, nil
}

// ListChildren orders by Order ascending, oldest first among equals.
func (store *MemoryStore) ListChildren(_ context.Context, parentID int64) ([]*Record, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var children []*Record
	for _, record := range store.records[media.CategoryFeaturedWorkImage] {
		if record.ParentID != nil && *record.ParentID == parentID {
			children = append(children, record.clone())
		}
	}

	slices.SortFunc(children, func(a, b *Record) int {
		if a.Order != b.Order {
			return cmp.Compare(a.Order, b.Order)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return children, nil
}

func (store *MemoryStore) Create(_ context.Context, record *Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if record.Kind == media.CategoryFeaturedWorkImage {
		if record.ParentID == nil {
			return apperr.NotFound("Parent record")
		}
		if _, ok := store.records[media.CategoryFeaturedWork][*record.ParentID]; !ok {
			return apperr.NotFound("Parent record")
		}
	}

	store.nextID[record.Kind]++
	now := store.clock()

	record.ID = store.nextID[record.Kind]
	record.CreatedAt = now
	record.UpdatedAt = now

	store.records[record.Kind][record.ID] = record.clone()
	return nil
}

func (store *MemoryStore) Update(_ context.Context, record *Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	existing, ok := store.records[record.Kind][record.ID]
	if !ok {
		return apperr.NotFound(record.Kind.Label())
	}

	record.CreatedAt = existing.CreatedAt
	record.ParentID = existing.ParentID
	record.UpdatedAt = store.clock()

	store.records[record.Kind][record.ID] = record.clone()
	return nil
}

// Delete removes a record. Deleting a featured work cascades to its images.
func (store *MemoryStore) Delete(_ context.Context, kind media.Category, id int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.records[kind][id]; !ok {
		return apperr.NotFound(kind.Label())
	}
	delete(store.records[kind], id)

	if kind == media.CategoryFeaturedWork {
		for childID, child := range store.records[media.CategoryFeaturedWorkImage] {
			if child.ParentID != nil && *child.ParentID == id {
				delete(store.records[media.CategoryFeaturedWorkImage], childID)
			}
		}
	}

	return nil
}

// Len returns the number of records of a kind.
func (store *MemoryStore) Len(kind media.Category) int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.records[kind])
}
