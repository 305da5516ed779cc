package service

import "time"

// CooldownDecision 冷却检查结果，Allowed 为 false 时 Wait 为剩余时间
type CooldownDecision struct {
	Allowed bool
	Wait    time.Duration
}

// EvaluateCooldown 距上次提交不足 cooldown 时拒绝
// last 晚于 now（时钟回拨）按刚提交处理
func EvaluateCooldown(now time.Time, last *time.Time, cooldown time.Duration) CooldownDecision {
	if last == nil || cooldown <= 0 {
		return CooldownDecision{Allowed: true}
	}

	elapsed := now.Sub(*last)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= cooldown {
		return CooldownDecision{Allowed: true}
	}
	return CooldownDecision{Wait: cooldown - elapsed}
}
