package service

import (
	"context"
	"errors"
	"strings"

	"code4kids_backend/internal/model"
	"code4kids_backend/internal/repository"
	"code4kids_backend/internal/util"
	"code4kids_backend/pkg/logger"

	"go.uber.org/zap"
)

type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{
		UserRepo: userRepo,
	}
}

type ProfileUpdate struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
}

// GetCurrentUser loads the account of the signed-in user.
func (s *UserService) GetCurrentUser(ctx context.Context) (*model.User, error) {
	claims, err := util.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.UserRepo.FindByUID(ctx, claims.UID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// UpdateProfile patches the signed-in user's profile and returns the stored
// result. A document that vanishes between the write and the re-read is an error.
func (s *UserService) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*model.User, error) {
	claims, err := util.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.UserRepo.UpdateFields(ctx, claims.UID, map[string]interface{}{
		"username": strings.TrimSpace(upd.Username),
	}); err != nil {
		return nil, err
	}

	user, err := s.UserRepo.FindByUID(ctx, claims.UID)
	if errors.Is(err, util.ErrUserNotFound) {
		logger.Log.Error("Profile vanished after update", zap.String("uid", claims.UID))
		return nil, util.ErrDocumentMissingAfterWrite
	}
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}
