package repository

import (
	"context"
	"errors"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

// NewSubmissionRepository 创建步数提交仓库实例
func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

// Create 插入新的提交记录
func (r *SubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	return r.DB.WithContext(ctx).Create(sub).Error
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id uint) (*model.Submission, error) {
	var sub model.Submission
	err := r.DB.WithContext(ctx).First(&sub, id).Error
	if err != nil {
		return nil, notFound(err, "submission %d", id)
	}
	return &sub, nil
}

// FindByUser 获取用户全部提交，按提交时间升序
func (r *SubmissionRepository) FindByUser(ctx context.Context, userID uint) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("form_created_at ASC, form_id ASC").
		Find(&subs).Error
	return subs, err
}

// LatestCreatedAt 用户最近一次提交的时间，没有提交时返回 nil
func (r *SubmissionRepository) LatestCreatedAt(ctx context.Context, userID uint) (*time.Time, error) {
	var sub model.Submission
	err := r.DB.WithContext(ctx).
		Select("form_created_at").
		Where("user_id = ?", userID).
		Order("form_created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub.CreatedAt, nil
}

// MarkVerified 仅当记录仍未审核时置为已审核，返回是否发生状态变化
func (r *SubmissionRepository) MarkVerified(ctx context.Context, id uint, clearFilePath bool) (bool, error) {
	updates := map[string]interface{}{"form_verified": true}
	if clearFilePath {
		updates["form_filepath"] = ""
	}

	result := r.DB.WithContext(ctx).
		Model(&model.Submission{}).
		Where("form_id = ? AND form_verified = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClearFilePath 截图被丢弃后清空文件名
func (r *SubmissionRepository) ClearFilePath(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).
		Model(&model.Submission{}).
		Where("form_id = ?", id).
		Update("form_filepath", "").Error
}

// Delete 删除记录，返回是否确有记录被删除
func (r *SubmissionRepository) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.DB.WithContext(ctx).Delete(&model.Submission{}, id)
	return result.RowsAffected > 0, result.Error
}

// DeleteAll 清空 forms 表
func (r *SubmissionRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.DB.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.Submission{})
	return result.RowsAffected, result.Error
}

// Queue 未审核且步数超过阈值的提交，附带用户名，最早的在前
func (r *SubmissionRepository) Queue(ctx context.Context, threshold int) ([]model.SubmissionWithUser, error) {
	var rows []model.SubmissionWithUser
	err := r.withUsers(ctx).
		Where("forms.form_verified = ? AND forms.form_stepcount > ?", false, threshold).
		Order("forms.form_created_at ASC, forms.form_id ASC").
		Scan(&rows).Error
	return rows, err
}

// AllWithUsers 全部提交附带用户名，date 非空时只取该日期
func (r *SubmissionRepository) AllWithUsers(ctx context.Context, date string) ([]model.SubmissionWithUser, error) {
	var rows []model.SubmissionWithUser
	query := r.withUsers(ctx)
	if date != "" {
		query = query.Where("forms.form_date = ?", date)
	}
	err := query.Order("forms.form_id ASC").Scan(&rows).Error
	return rows, err
}

func (r *SubmissionRepository) withUsers(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table("forms").
		Select("forms.*, users.user_name").
		Joins("JOIN users ON users.user_id = forms.user_id")
}

// QuarantineInvalid 过滤读出的非法记录并记录告警，合法记录保持原顺序
func QuarantineInvalid(subs []model.Submission) []model.Submission {
	valid := subs[:0:0]
	for i := range subs {
		if err := subs[i].Validate(); err != nil {
			logger.Log.Warn("Quarantined invalid submission row",
				zap.Uint("form_id", subs[i].ID),
				zap.Uint("user_id", subs[i].UserID),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, subs[i])
	}
	return valid
}

// QuarantineInvalidWithUsers 同 QuarantineInvalid，用于联表结果
func QuarantineInvalidWithUsers(rows []model.SubmissionWithUser) []model.SubmissionWithUser {
	valid := rows[:0:0]
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			logger.Log.Warn("Quarantined invalid submission row",
				zap.Uint("form_id", rows[i].ID),
				zap.String("user_name", rows[i].UserName),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, rows[i])
	}
	return valid
}
