package testutil

import (
	"fmt"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/pkg/database"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB 每个测试独立的内存 sqlite 库，已完成迁移
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn), false)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateUser 直接写入用户，密码字段为占位哈希
func CreateUser(t *testing.T, db *gorm.DB, name string, admin bool) *model.User {
	t.Helper()

	user := &model.User{Name: name, Password: "x", IsAdmin: admin, CreatedAt: time.Now()}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateSubmission 直接写入提交记录，绕过业务校验
func CreateSubmission(t *testing.T, db *gorm.DB, sub model.Submission) *model.Submission {
	t.Helper()

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	require.NoError(t, db.Create(&sub).Error)
	return &sub
}
