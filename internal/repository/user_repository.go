package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/model"
	"code4kids_backend/internal/util"
	"code4kids_backend/pkg/logger"

	"go.uber.org/zap"
)

// staleClaimAge is how long an email claim without a user document is
// protected before another registration may take it over.
const staleClaimAge = time.Minute

type UserRepository struct {
	Store docstore.Store
	Clock func() time.Time
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{Store: store, Clock: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create claims the email first so two registrations cannot share it. The
// claim is released again when the user document cannot be written.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = normalizeEmail(user.Email)
	claimVersion, err := r.claimEmail(ctx, user)
	if err != nil {
		return err
	}

	data, err := model.ToDocument(user)
	if err != nil {
		r.releaseEmail(ctx, user.Email, claimVersion)
		return err
	}
	data["createdAt"] = docstore.ServerTimestamp()
	if err := r.Store.Set(ctx, util.CollectionUsers, user.UID, data, docstore.MustNotExist()); err != nil {
		r.releaseEmail(ctx, user.Email, claimVersion)
		return storeErr("create user", err)
	}
	return nil
}

// claimEmail writes the email index document and returns its version. A claim
// whose user document never appeared is taken over once it is stale.
func (r *UserRepository) claimEmail(ctx context.Context, user *model.User) (int64, error) {
	claim := map[string]interface{}{"uid": user.UID}
	err := r.Store.Set(ctx, util.CollectionUserEmails, user.Email, claim, docstore.MustNotExist())
	if err == nil {
		return 1, nil
	}
	if !errors.Is(err, docstore.ErrAlreadyExists) {
		return 0, storeErr("claim email", err)
	}

	existing, err := r.Store.Get(ctx, util.CollectionUserEmails, user.Email)
	if err != nil {
		return 0, storeErr("claim email", err)
	}
	owner, _ := existing.Data["uid"].(string)
	_, err = r.Store.Get(ctx, util.CollectionUsers, owner)
	switch {
	case err == nil:
		return 0, util.ErrEmailRegistered
	case !errors.Is(err, docstore.ErrNotFound):
		return 0, storeErr("claim email", err)
	}
	if r.Clock().Sub(existing.UpdatedAt) < staleClaimAge {
		return 0, util.ErrEmailRegistered
	}

	err = r.Store.Set(ctx, util.CollectionUserEmails, user.Email, claim, docstore.IfVersion(existing.Version))
	if errors.Is(err, docstore.ErrVersionConflict) {
		return 0, util.ErrEmailRegistered
	}
	if err != nil {
		return 0, storeErr("claim email", err)
	}
	logger.Log.Info("Took over orphaned email claim", zap.String("previous_uid", owner), zap.String("uid", user.UID))
	return existing.Version + 1, nil
}

func (r *UserRepository) releaseEmail(ctx context.Context, email string, version int64) {
	err := r.Store.Delete(ctx, util.CollectionUserEmails, email, docstore.IfVersion(version))
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		logger.Log.Warn("Failed to release email claim", zap.Error(err))
	}
}

func (r *UserRepository) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	doc, err := r.Store.Get(ctx, util.CollectionUsers, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	var user model.User
	if err := model.FromDocument(doc.Data, &user); err != nil {
		return nil, err
	}
	user.UID = doc.ID
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	doc, err := r.Store.Get(ctx, util.CollectionUserEmails, normalizeEmail(email))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("find email", err)
	}
	uid, _ := doc.Data["uid"].(string)
	return r.FindByUID(ctx, uid)
}

func (r *UserRepository) UpdateFields(ctx context.Context, uid string, fields map[string]interface{}) error {
	err := r.Store.Update(ctx, util.CollectionUsers, uid, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return util.ErrUserNotFound
	}
	return storeErr("update user", err)
}

func (r *UserRepository) ListByRole(ctx context.Context, role model.UserRole) ([]*model.User, error) {
	docs, err := r.Store.Query(ctx, util.CollectionUsers, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("role", "==", string(role))},
		OrderBy: []docstore.Order{{Field: "username"}},
	})
	if err != nil {
		return nil, storeErr("list users", err)
	}
	out := make([]*model.User, 0, len(docs))
	for _, d := range docs {
		var u model.User
		if err := model.FromDocument(d.Data, &u); err != nil {
			return nil, err
		}
		u.UID = d.ID
		out = append(out, &u)
	}
	return out, nil
}
