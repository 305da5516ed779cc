package repository

import (
	"context"
	"errors"
	"fmt"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// Create 创建用户，唯一索引冲突映射为 ErrUserNameTaken
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	if err := r.DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", util.ErrUserNameTaken, user.Name)
		}
		return err
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, notFound(err, "user %d", id)
	}
	return &user, nil
}

func (r *UserRepository) FindByName(ctx context.Context, name string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("user_name = ?", name).First(&user).Error
	if err != nil {
		return nil, notFound(err, "user %q", name)
	}
	return &user, nil
}

// SetAdmin 按用户名修改管理员标志
func (r *UserRepository) SetAdmin(ctx context.Context, name string, admin bool) error {
	user, err := r.FindByName(ctx, name)
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Model(user).Update("user_admin", admin).Error
}

// notFound 将 gorm.ErrRecordNotFound 转换为 util.ErrNotFound
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", util.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
