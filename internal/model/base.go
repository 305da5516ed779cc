package model

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout 表单日期的存储格式
const DateLayout = "2006-01-02"

// ParseDate 解析 YYYY-MM-DD 格式的日期，结果为 loc 时区的零点
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// FormatDate 以存储格式输出日期
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// GenerateUUID 随机 UUID，用作确认令牌和证据文件名后缀
func GenerateUUID() string {
	return uuid.New().String()
}
