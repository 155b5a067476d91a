// Package docstore is the persistence gateway: a JSON document store with
// dotted-path patches, simple queries, versioned writes and change subscriptions.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrVersionConflict = errors.New("document version conflict")
	ErrInvalidPath     = errors.New("invalid field path")
)

// Document is a stored JSON object. Version increases by one on every write.
type Document struct {
	ID        string                 `json:"id"`
	Data      map[string]interface{} `json:"data"`
	Version   int64                  `json:"version"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Store is implemented by GormStore and MemoryStore.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Set replaces the whole document.
	Set(ctx context.Context, collection, id string, data map[string]interface{}, opts ...WriteOption) error
	// Update patches fields addressed by dotted paths, e.g. "worlds.village.progress".
	Update(ctx context.Context, collection, id string, fields map[string]interface{}, opts ...WriteOption) error
	// Delete removes the document; ErrNotFound when absent. Honors IfVersion.
	Delete(ctx context.Context, collection, id string, opts ...WriteOption) error
	Query(ctx context.Context, collection string, q Query) ([]*Document, error)
	// Subscribe calls fn with the query result now and after every change to the collection.
	Subscribe(ctx context.Context, collection string, q Query, fn func([]*Document)) (func(), error)
}

type writeOptions struct {
	mustNotExist bool
	ifVersion    *int64
}

type WriteOption func(*writeOptions)

// MustNotExist turns Set into a create that fails with ErrAlreadyExists.
func MustNotExist() WriteOption {
	return func(o *writeOptions) { o.mustNotExist = true }
}

// IfVersion makes the write conditional on the stored version.
func IfVersion(v int64) WriteOption {
	return func(o *writeOptions) { o.ifVersion = &v }
}

func collectOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// checkWrite validates write options against the current stored version (0 = absent).
func (o writeOptions) checkWrite(exists bool, current int64) error {
	if o.mustNotExist && exists {
		return ErrAlreadyExists
	}
	if o.ifVersion != nil && *o.ifVersion != current {
		return ErrVersionConflict
	}
	return nil
}

type Filter struct {
	Field string
	Op    string
	Value interface{}
}

type Order struct {
	Field string
	Desc  bool
}

type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

func Where(field, op string, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}
