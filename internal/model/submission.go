package model

import (
	"fmt"
	"regexp"
	"time"
)

// MaxFilePathLength 存储文件名的最大长度
const MaxFilePathLength = 255

var safeFilePath = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)

// Submission 用户某一天的步数提交记录（表 forms）
// swagger:model Submission
type Submission struct {
	ID        uint      `gorm:"column:form_id;primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"column:user_id;index;not null" json:"userId"`
	Date      string    `gorm:"column:form_date;size:10;index;not null" json:"date"`
	StepCount int       `gorm:"column:form_stepcount;not null" json:"stepCount"`
	FilePath  string    `gorm:"column:form_filepath;size:255" json:"filePath,omitempty"`
	Verified  bool      `gorm:"column:form_verified;not null;default:false;index" json:"verified"`
	CreatedAt time.Time `gorm:"column:form_created_at;index" json:"createdAt"`
}

func (Submission) TableName() string {
	return "forms"
}

// HasEvidence 截图是否仍保留在存储中
func (s *Submission) HasEvidence() bool {
	return s.FilePath != ""
}

// Validate 校验从存储读出的记录是否结构完整，步数上限只在提交时检查
func (s *Submission) Validate() error {
	if _, err := ParseDate(s.Date, time.UTC); err != nil {
		return fmt.Errorf("form %d: invalid date %q", s.ID, s.Date)
	}
	if s.StepCount < 0 {
		return fmt.Errorf("form %d: step count %d out of range", s.ID, s.StepCount)
	}
	if s.FilePath != "" && (!safeFilePath.MatchString(s.FilePath) || s.FilePath == "." || s.FilePath == "..") {
		return fmt.Errorf("form %d: unsafe file path %q", s.ID, s.FilePath)
	}
	return nil
}

// SubmissionWithUser 审核队列与导出使用的联表结果
type SubmissionWithUser struct {
	Submission
	UserName string `gorm:"column:user_name" json:"userName"`
}
