package service

import (
	"context"
	"errors"
	"fmt"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/util"
	"step_tracker_backend/pkg/logger"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	MaxUserNameLength = 100
)

// AccountStore 账号相关的存储操作
type AccountStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByName(ctx context.Context, name string) (*model.User, error)
	SetAdmin(ctx context.Context, name string, admin bool) error
}

type AuthService struct {
	UserRepo AccountStore
	Cfg      *config.Config
	Cost     int
}

func NewAuthService(userRepo AccountStore, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
		Cost:     bcrypt.DefaultCost,
	}
}

// Register 用户名去除首尾空格，库中唯一索引是最终保证
func (s *AuthService) Register(ctx context.Context, name, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: username is required", util.ErrInvalidRegistration)
	}
	if utf8.RuneCountInString(name) > MaxUserNameLength {
		return nil, fmt.Errorf("%w: username is longer than %d characters", util.ErrInvalidRegistration, MaxUserNameLength)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", util.ErrInvalidRegistration, MinPasswordLength)
	}

	_, err := s.UserRepo.FindByName(ctx, name)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", util.ErrUserNameTaken, name)
	} else if !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return nil, err
	}

	user := &model.User{Name: name, Password: string(hashedPassword)}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("user_name", user.Name))
	return user, nil
}

// Login 校验密码并签发带新会话 ID 的令牌
func (s *AuthService) Login(ctx context.Context, name, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, util.ErrNotFound) {
		return "", nil, util.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user.ID, user.Name, user.IsAdmin, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
