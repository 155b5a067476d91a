package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const maxPatchRetries = 5

// documentRecord is the row backing one document.
type documentRecord struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:191"`
	Data       string `gorm:"type:longtext;not null"`
	Version    int64  `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time `gorm:"index"`
}

func (documentRecord) TableName() string {
	return "documents"
}

// GormStore keeps documents as JSON rows in a relational database (MySQL in
// production, SQLite when embedded).
type GormStore struct {
	DB    *gorm.DB
	bus   Bus
	Clock func() time.Time
}

// NewGormStore migrates the documents table. A nil bus means in-process notifications only.
func NewGormStore(db *gorm.DB, bus Bus) (*GormStore, error) {
	if err := db.AutoMigrate(&documentRecord{}); err != nil {
		return nil, fmt.Errorf("migrate documents table: %w", err)
	}
	if bus == nil {
		bus = NewLocalBus()
	}
	return &GormStore{DB: db, bus: bus, Clock: time.Now}, nil
}

func (s *GormStore) now() time.Time {
	return s.Clock().UTC()
}

func (r *documentRecord) toDocument() (*Document, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(r.Data), &data); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", r.Collection, r.ID, err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Document{ID: r.ID, Data: data, Version: r.Version, UpdatedAt: r.UpdatedAt}, nil
}

func (s *GormStore) find(tx *gorm.DB, collection, id string) (*documentRecord, error) {
	var rec documentRecord
	err := tx.Where("collection = ? AND id = ?", collection, id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	rec, err := s.find(s.DB.WithContext(ctx), collection, id)
	if err != nil {
		return nil, err
	}
	return rec.toDocument()
}

// compareAndSwap writes body only if the row still carries version from.
func (s *GormStore) compareAndSwap(tx *gorm.DB, collection, id string, from int64, body []byte, now time.Time) (bool, error) {
	res := tx.Model(&documentRecord{}).
		Where("collection = ? AND id = ? AND version = ?", collection, id, from).
		Updates(map[string]interface{}{
			"data":       string(body),
			"version":    from + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, opts ...WriteOption) error {
	o := collectOptions(opts)
	now := s.now()
	body, err := normalizeMap(data, now)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}

	db := s.DB.WithContext(ctx)
	rec, err := s.find(db, collection, id)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := o.checkWrite(false, 0); err != nil {
			return err
		}
		err = db.Create(&documentRecord{
			Collection: collection,
			ID:         id,
			Data:       string(raw),
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyExists
		}
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := o.checkWrite(true, rec.Version); err != nil {
			return err
		}
		ok, err := s.compareAndSwap(db, collection, id, rec.Version, raw, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrVersionConflict
		}
	}

	s.bus.Publish(ctx, collection)
	return nil
}

// Update re-reads and re-applies the patch when another writer got in between,
// unless the caller pinned a version with IfVersion.
func (s *GormStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, opts ...WriteOption) error {
	o := collectOptions(opts)
	now := s.now()
	patch, err := normalizeMap(fields, now)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	db := s.DB.WithContext(ctx)
	for attempt := 0; attempt < maxPatchRetries; attempt++ {
		rec, err := s.find(db, collection, id)
		if err != nil {
			return err
		}
		if err := o.checkWrite(true, rec.Version); err != nil {
			return err
		}
		doc, err := rec.toDocument()
		if err != nil {
			return err
		}
		if err := applyPatch(doc.Data, patch); err != nil {
			return err
		}
		raw, err := json.Marshal(doc.Data)
		if err != nil {
			return err
		}
		ok, err := s.compareAndSwap(db, collection, id, rec.Version, raw, now)
		if err != nil {
			return err
		}
		if ok {
			s.bus.Publish(ctx, collection)
			return nil
		}
		if o.ifVersion != nil {
			return ErrVersionConflict
		}
	}
	return ErrVersionConflict
}

func (s *GormStore) Delete(ctx context.Context, collection, id string, opts ...WriteOption) error {
	o := collectOptions(opts)
	db := s.DB.WithContext(ctx)

	tx := db.Where("collection = ? AND id = ?", collection, id)
	if o.ifVersion != nil {
		tx = tx.Where("version = ?", *o.ifVersion)
	}
	res := tx.Delete(&documentRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.find(db, collection, id); err != nil {
			return err
		}
		return ErrVersionConflict
	}

	s.bus.Publish(ctx, collection)
	return nil
}

func (s *GormStore) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	var recs []documentRecord
	if err := s.DB.WithContext(ctx).Where("collection = ?", collection).Find(&recs).Error; err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(recs))
	for i := range recs {
		d, err := recs[i].toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return runQuery(docs, q)
}

func (s *GormStore) Subscribe(ctx context.Context, collection string, q Query, fn func([]*Document)) (func(), error) {
	return subscribe(ctx, s, s.bus, collection, q, fn)
}
