package service

import (
	"step_tracker_backend/internal/config"
	"sync"
)

// RuleSet 运行时的活动规则，配置热更新时整体替换
type RuleSet struct {
	mu       sync.RWMutex
	campaign config.CampaignConfig
}

func NewRuleSet(c config.CampaignConfig) *RuleSet {
	return &RuleSet{campaign: c}
}

// Get 返回当前规则的副本
func (r *RuleSet) Get() config.CampaignConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := r.campaign
	c.LevelBreakpoints = append([]int(nil), r.campaign.LevelBreakpoints...)
	return c
}

// Update 校验通过后替换规则，失败时保持原规则
func (r *RuleSet) Update(c config.CampaignConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaign = c
	return nil
}
