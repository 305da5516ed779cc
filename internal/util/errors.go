package util

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidStepCount     = errors.New("invalid step count")
	ErrInvalidDate          = errors.New("invalid date")
	ErrMissingEvidence      = errors.New("a screenshot is required as evidence")
	ErrTooLarge             = errors.New("upload too large")
	ErrInvalidImage         = errors.New("upload is not a valid image")
	ErrStoreWriteFailed     = errors.New("failed to save submission")
	ErrNotFound             = errors.New("not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrInvalidTransition    = errors.New("submission is not awaiting verification")
	ErrConfirmationNotFound = errors.New("confirmation not found or expired")
	ErrUserNameTaken        = errors.New("that username is already taken")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrInvalidRegistration  = errors.New("invalid registration")
)

// RateLimitedError 冷却期内再次提交，Remaining 为剩余等待时间
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Minutes() int {
	return int(e.Remaining / time.Minute)
}

// Seconds 不足一分钟的部分，截断而非四舍五入
func (e *RateLimitedError) Seconds() int {
	return int((e.Remaining % time.Minute) / time.Second)
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("please wait %d minutes %d seconds before submitting again", e.Minutes(), e.Seconds())
}

// AsRateLimited 判断 err 是否为冷却限制
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
