package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"code4kids_backend/internal/config"
	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/model"
	"code4kids_backend/internal/repository"
	"code4kids_backend/internal/util"
	"code4kids_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	UserRepo    *repository.UserRepository
	ProgressSvc *ProgressService
	Cfg         *config.Config
	Clock       func() time.Time
}

func NewAuthService(userRepo *repository.UserRepository, progressSvc *ProgressService, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo:    userRepo,
		ProgressSvc: progressSvc,
		Cfg:         cfg,
		Clock:       time.Now,
	}
}

type RegisterRequest struct {
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,min=6"`
	Username string         `json:"username" binding:"required,min=2,max=32"`
	Role     model.UserRole `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	role := req.Role
	if role == "" {
		role = model.Student
	}
	if !model.ValidRole(role) || role == model.Admin {
		return nil, util.ErrPermissionDenied
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		UID:          uuid.NewString(),
		Email:        req.Email,
		Username:     strings.TrimSpace(req.Username),
		Role:         role,
		PasswordHash: string(hashed),
		CreatedAt:    s.Clock().UTC(),
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, util.ErrEmailRegistered) {
			logger.Log.Error("Failed to register user", zap.String("email", user.Email), zap.Error(err))
		}
		return nil, err
	}
	logger.Log.Info("User registered", zap.String("uid", user.UID), zap.String("role", string(role)))
	return user.Public(), nil
}

// Login checks credentials, records the login time and makes sure a student
// has a progress document before the first game starts.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(ctx, req.Email)
	if errors.Is(err, util.ErrUserNotFound) {
		return nil, util.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	if err := s.UserRepo.UpdateFields(ctx, user.UID, map[string]interface{}{
		"lastLogin": docstore.ServerTimestamp(),
	}); err != nil {
		logger.Log.Warn("Failed to record last login", zap.String("uid", user.UID), zap.Error(err))
	}

	if user.Role == model.Student {
		if _, err := s.ProgressSvc.EnsureUserProgress(ctx, user.UID); err != nil {
			return nil, err
		}
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user.Public()}, nil
}
