package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Compile-time contract assertions.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)

// MemoryStore is an in-process Store used by tests and ephemeral environments.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]map[string]*Document
	bus   Bus
	Clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]map[string]*Document),
		bus:   NewLocalBus(),
		Clock: time.Now,
	}
}

func (s *MemoryStore) now() time.Time {
	return s.Clock().UTC()
}

func copyDocument(d *Document) *Document {
	return &Document{ID: d.ID, Data: cloneData(d.Data), Version: d.Version, UpdatedAt: d.UpdatedAt}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(d), nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, opts ...WriteOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := collectOptions(opts)
	now := s.now()
	body, err := normalizeMap(data, now)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	coll := s.docs[collection]
	if coll == nil {
		coll = make(map[string]*Document)
		s.docs[collection] = coll
	}
	existing, exists := coll[id]
	var current int64
	if exists {
		current = existing.Version
	}
	if err := o.checkWrite(exists, current); err != nil {
		s.mu.Unlock()
		return err
	}
	coll[id] = &Document{ID: id, Data: body, Version: current + 1, UpdatedAt: now}
	s.mu.Unlock()

	s.bus.Publish(ctx, collection)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, opts ...WriteOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := collectOptions(opts)
	now := s.now()
	patch, err := normalizeMap(fields, now)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	existing, exists := s.docs[collection][id]
	if !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	if err := o.checkWrite(true, existing.Version); err != nil {
		s.mu.Unlock()
		return err
	}
	body := cloneData(existing.Data)
	if err := applyPatch(body, patch); err != nil {
		s.mu.Unlock()
		return err
	}
	s.docs[collection][id] = &Document{ID: id, Data: body, Version: existing.Version + 1, UpdatedAt: now}
	s.mu.Unlock()

	s.bus.Publish(ctx, collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string, opts ...WriteOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := collectOptions(opts)

	s.mu.Lock()
	existing, exists := s.docs[collection][id]
	if !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	if err := o.checkWrite(true, existing.Version); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.docs[collection], id)
	s.mu.Unlock()

	s.bus.Publish(ctx, collection)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	docs := make([]*Document, 0, len(s.docs[collection]))
	for _, d := range s.docs[collection] {
		docs = append(docs, copyDocument(d))
	}
	s.mu.RUnlock()
	return runQuery(docs, q)
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, q Query, fn func([]*Document)) (func(), error) {
	return subscribe(ctx, s, s.bus, collection, q, fn)
}
