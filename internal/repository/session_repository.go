package repository

import (
	"context"
	"errors"
	"fmt"

	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/model"
	"code4kids_backend/internal/util"
)

const maxSessionKeyProbes = 5

type SessionRepository struct {
	Store docstore.Store
}

func NewSessionRepository(store docstore.Store) *SessionRepository {
	return &SessionRepository{Store: store}
}

func sessionKey(uid string, unixMillis int64) string {
	return fmt.Sprintf("%s_%d", uid, unixMillis)
}

// Append writes a session row keyed <uid>_<unixMillis>. Rows are never
// overwritten: a key collision moves to the next millisecond.
func (r *SessionRepository) Append(ctx context.Context, s *model.GameSession) (string, error) {
	data, err := model.ToDocument(s)
	if err != nil {
		return "", err
	}
	ms := s.Timestamp.UnixMilli()
	for i := 0; i < maxSessionKeyProbes; i++ {
		key := sessionKey(s.UserID, ms+int64(i))
		err = r.Store.Set(ctx, util.CollectionGameSessions, key, data, docstore.MustNotExist())
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, docstore.ErrAlreadyExists) {
			return "", storeErr("append session", err)
		}
	}
	return "", storeErr("append session", err)
}

func decodeSessions(docs []*docstore.Document) ([]model.GameSession, error) {
	out := make([]model.GameSession, 0, len(docs))
	for _, d := range docs {
		var s model.GameSession
		if err := model.FromDocument(d.Data, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ListByUser returns a user's sessions newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, uid string, limit int) ([]model.GameSession, error) {
	docs, err := r.Store.Query(ctx, util.CollectionGameSessions, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("userId", "==", uid)},
		OrderBy: []docstore.Order{{Field: "timestamp", Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	return decodeSessions(docs)
}

// Recent returns the newest sessions across all users.
func (r *SessionRepository) Recent(ctx context.Context, limit int) ([]model.GameSession, error) {
	docs, err := r.Store.Query(ctx, util.CollectionGameSessions, docstore.Query{
		OrderBy: []docstore.Order{{Field: "timestamp", Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, storeErr("recent sessions", err)
	}
	return decodeSessions(docs)
}
