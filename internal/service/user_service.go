package service

import (
	"context"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/pkg/logger"

	"go.uber.org/zap"
)

// UserService 处理用户资料与管理员标志
type UserService struct {
	UserRepo AccountStore
}

// NewUserService 创建一个新的用户服务实例
func NewUserService(userRepo AccountStore) *UserService {
	return &UserService{
		UserRepo: userRepo,
	}
}

// GetProfile 获取当前用户资料
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	return s.UserRepo.FindByID(ctx, userID)
}

// SetAdmin 仅供运维命令行调用
func (s *UserService) SetAdmin(ctx context.Context, name string, admin bool) error {
	if err := s.UserRepo.SetAdmin(ctx, name, admin); err != nil {
		return err
	}
	logger.Log.Info("Admin flag changed", zap.String("user_name", name), zap.Bool("admin", admin))
	return nil
}
