package service

import (
	"context"
	"sort"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/repository"
	"time"
)

// ProgressRules 进度计算所需的规则
type ProgressRules struct {
	Location         *time.Location
	KmPerStep        float64
	KcalPerStep      float64
	LevelBreakpoints []int
}

func ProgressRulesFrom(c config.CampaignConfig) ProgressRules {
	return ProgressRules{
		Location:         c.Location(),
		KmPerStep:        c.KmPerStep,
		KcalPerStep:      c.KcalPerStep,
		LevelBreakpoints: c.LevelBreakpoints,
	}
}

type Badge struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type badgeRule struct {
	Badge
	minTotal  int
	minStreak int
}

// 按固定顺序评估
var badgeRules = []badgeRule{
	{Badge: Badge{Code: "total_10k", Name: "10K Steps"}, minTotal: 10000},
	{Badge: Badge{Code: "total_50k", Name: "50K Steps"}, minTotal: 50000},
	{Badge: Badge{Code: "total_100k", Name: "100K Steps"}, minTotal: 100000},
	{Badge: Badge{Code: "total_200k", Name: "200K Steps"}, minTotal: 200000},
	{Badge: Badge{Code: "streak_7", Name: "7 Day Streak"}, minStreak: 7},
}

var levelNames = []string{"Starter", "Strider", "Trailblazer"}

type Level struct {
	Tier             int    `json:"tier"`
	Name             string `json:"name"`
	StepsToNextLevel *int   `json:"stepsToNextLevel"`
}

type DailyTotal struct {
	Date  string `json:"date"`
	Steps int    `json:"steps"`
}

// Progress 由用户提交推导出的统计，不落库
type Progress struct {
	TotalSteps          int          `json:"totalSteps"`
	StepsToday          int          `json:"stepsToday"`
	DaysParticipated    int          `json:"daysParticipated"`
	AvgDailySteps       float64      `json:"avgDailySteps"`
	EstimatedDistanceKm float64      `json:"estimatedDistanceKm"`
	EstimatedCalories   float64      `json:"estimatedCalories"`
	Streak              int          `json:"streak"`
	Badges              []Badge      `json:"badges"`
	Level               Level        `json:"level"`
	Daily               []DailyTotal `json:"daily"`
}

// ComputeProgress 纯函数，subs 需为已校验的单个用户的记录
func ComputeProgress(subs []model.Submission, now time.Time, rules ProgressRules) Progress {
	loc := rules.Location
	if loc == nil {
		loc = time.Local
	}
	today := model.FormatDate(now.In(loc))

	perDay := make(map[string]int)
	total := 0
	for _, s := range subs {
		total += s.StepCount
		perDay[s.Date] += s.StepCount
	}

	dates := make([]string, 0, len(perDay))
	for d := range perDay {
		dates = append(dates, d)
	}
	// YYYY-MM-DD 字典序即时间序
	sort.Strings(dates)

	daily := make([]DailyTotal, 0, len(dates))
	for _, d := range dates {
		daily = append(daily, DailyTotal{Date: d, Steps: perDay[d]})
	}

	p := Progress{
		TotalSteps:          total,
		StepsToday:          perDay[today],
		DaysParticipated:    len(dates),
		EstimatedDistanceKm: float64(total) * rules.KmPerStep,
		EstimatedCalories:   float64(total) * rules.KcalPerStep,
		Streak:              streak(dates, today),
		Daily:               daily,
	}
	if p.DaysParticipated > 0 {
		p.AvgDailySteps = float64(total) / float64(p.DaysParticipated)
	}

	p.Badges = make([]Badge, 0, len(badgeRules))
	for _, r := range badgeRules {
		if r.minTotal > 0 && total < r.minTotal {
			continue
		}
		if r.minStreak > 0 && p.Streak < r.minStreak {
			continue
		}
		p.Badges = append(p.Badges, r.Badge)
	}

	p.Level = levelFor(total, rules.LevelBreakpoints)
	return p
}

// streak dates 为升序去重后的日期，最后一天不是今天时为 0
func streak(dates []string, today string) int {
	if len(dates) == 0 || dates[len(dates)-1] != today {
		return 0
	}

	count := 1
	prev, _ := time.Parse(model.DateLayout, dates[len(dates)-1])
	for i := len(dates) - 2; i >= 0; i-- {
		d, err := time.Parse(model.DateLayout, dates[i])
		if err != nil || !d.AddDate(0, 0, 1).Equal(prev) {
			break
		}
		count++
		prev = d
	}
	return count
}

func levelFor(total int, breakpoints []int) Level {
	tier := 0
	for tier < len(breakpoints) && total >= breakpoints[tier] {
		tier++
	}

	level := Level{Tier: tier + 1, Name: levelNames[min(tier, len(levelNames)-1)]}
	if tier < len(breakpoints) {
		remaining := breakpoints[tier] - total
		level.StepsToNextLevel = &remaining
	}
	return level
}

type ProgressService struct {
	Repo  SubmissionStore
	Rules *RuleSet
	Now   func() time.Time
}

func NewProgressService(repo SubmissionStore, rules *RuleSet) *ProgressService {
	return &ProgressService{Repo: repo, Rules: rules, Now: time.Now}
}

// GetProgress 读取用户提交，剔除非法记录后计算进度
func (s *ProgressService) GetProgress(ctx context.Context, userID uint) (*Progress, error) {
	rules := s.Rules.Get()

	subs, err := s.Repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	subs = repository.QuarantineInvalid(subs)

	p := ComputeProgress(subs, s.Now(), ProgressRulesFrom(rules))
	return &p, nil
}
