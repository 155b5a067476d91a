package repository

import (
	"context"

	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/model"
	"code4kids_backend/internal/util"
)

type ProgressRepository struct {
	Store docstore.Store
}

func NewProgressRepository(store docstore.Store) *ProgressRepository {
	return &ProgressRepository{Store: store}
}

// VersionedProgress is a decoded progress document with the version it was read at.
type VersionedProgress struct {
	UID      string
	Progress *model.UserProgress
	Version  int64
}

// DecodeProgress types a raw progress document.
func DecodeProgress(doc *docstore.Document) (*VersionedProgress, error) {
	var p model.UserProgress
	if err := model.FromDocument(doc.Data, &p); err != nil {
		return nil, err
	}
	return &VersionedProgress{UID: doc.ID, Progress: &p, Version: doc.Version}, nil
}

func (r *ProgressRepository) Get(ctx context.Context, uid string) (*VersionedProgress, error) {
	doc, err := r.GetRaw(ctx, uid)
	if err != nil {
		return nil, err
	}
	return DecodeProgress(doc)
}

// GetRaw returns the untyped document, which migrations inspect before decoding.
func (r *ProgressRepository) GetRaw(ctx context.Context, uid string) (*docstore.Document, error) {
	doc, err := r.Store.Get(ctx, util.CollectionUserProgress, uid)
	return doc, storeErr("get progress", err)
}

// Create stores p only when the user has no progress yet.
func (r *ProgressRepository) Create(ctx context.Context, uid string, p *model.UserProgress) error {
	data, err := model.ToDocument(p)
	if err != nil {
		return err
	}
	data["createdAt"] = docstore.ServerTimestamp()
	data["lastPlayed"] = docstore.ServerTimestamp()
	err = r.Store.Set(ctx, util.CollectionUserProgress, uid, data, docstore.MustNotExist())
	return storeErr("create progress", err)
}

// Patch applies fields only if the document is still at version.
func (r *ProgressRepository) Patch(ctx context.Context, uid string, fields map[string]interface{}, version int64) error {
	err := r.Store.Update(ctx, util.CollectionUserProgress, uid, fields, docstore.IfVersion(version))
	return storeErr("patch progress", err)
}

// UpdateFields applies fields unconditionally.
func (r *ProgressRepository) UpdateFields(ctx context.Context, uid string, fields map[string]interface{}) error {
	err := r.Store.Update(ctx, util.CollectionUserProgress, uid, fields)
	return storeErr("update progress", err)
}

func (r *ProgressRepository) ListRaw(ctx context.Context) ([]*docstore.Document, error) {
	docs, err := r.Store.Query(ctx, util.CollectionUserProgress, docstore.Query{})
	return docs, storeErr("list progress", err)
}

func (r *ProgressRepository) List(ctx context.Context) ([]*VersionedProgress, error) {
	docs, err := r.ListRaw(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*VersionedProgress, 0, len(docs))
	for _, d := range docs {
		vp, err := DecodeProgress(d)
		if err != nil {
			return nil, err
		}
		out = append(out, vp)
	}
	return out, nil
}

// Watch calls fn with every progress document now and after each change.
func (r *ProgressRepository) Watch(ctx context.Context, fn func([]*docstore.Document)) (func(), error) {
	stop, err := r.Store.Subscribe(ctx, util.CollectionUserProgress, docstore.Query{}, fn)
	return stop, storeErr("watch progress", err)
}
