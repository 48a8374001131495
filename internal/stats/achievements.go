package stats

import (
	"time"

	"bucket-list/internal/model"
)

// Summary gathers the figures shown on the stats view.
type Summary struct {
	Total          int                              `json:"total"`
	Completed      int                              `json:"completed"`
	Pending        int                              `json:"pending"`
	WithPhotos     int                              `json:"withPhotos"`
	WithLocations  int                              `json:"withLocations"`
	CompletionRate float64                          `json:"completionRate"`
	Streak         int                              `json:"streak"`
	ByCategory     map[model.Category]CategoryCount `json:"byCategory"`
}

// Summarize computes a Summary with streak days taken in loc.
func Summarize(items []model.Activity, loc *time.Location) Summary {
	p := ComputeProgress(items)
	s := Summary{
		Total:          p.Total,
		Completed:      p.Completed,
		Pending:        p.Total - p.Completed,
		CompletionRate: p.Percentage / 100,
		Streak:         CompletionStreakIn(items, loc),
		ByCategory:     ByCategory(items),
	}
	for _, a := range items {
		if a.HasPhoto() {
			s.WithPhotos++
		}
		if a.Location != nil {
			s.WithLocations++
		}
	}
	return s
}

// Metric names a Summary figure an achievement is measured against.
type Metric string

const (
	MetricCompleted     Metric = "completed"
	MetricWithPhotos    Metric = "withPhotos"
	MetricWithLocations Metric = "withLocations"
	MetricStreak        Metric = "streak"
	MetricTotal         Metric = "total"
)

// Value reads the metric from s. Unknown metrics read as zero.
func (m Metric) Value(s Summary) int {
	switch m {
	case MetricCompleted:
		return s.Completed
	case MetricWithPhotos:
		return s.WithPhotos
	case MetricWithLocations:
		return s.WithLocations
	case MetricStreak:
		return s.Streak
	case MetricTotal:
		return s.Total
	default:
		return 0
	}
}

// Achievement is reached once Metric is at least Threshold.
type Achievement struct {
	Key         string `json:"key"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Metric      Metric `json:"metric"`
	Threshold   int    `json:"threshold"`
}

// AchievementStatus is an evaluated Achievement.
type AchievementStatus struct {
	Achievement
	Achieved bool `json:"achieved"`
	Current  int  `json:"current"`
}

// DefaultAchievements is the stock badge set, in display order.
var DefaultAchievements = []Achievement{
	{Key: "first-completion", Icon: "🎯", Title: "Getting Started", Description: "Complete your first activity", Metric: MetricCompleted, Threshold: 1},
	{Key: "memory-keeper", Icon: "📸", Title: "Memory Keeper", Description: "Add photos to 5 activities", Metric: MetricWithPhotos, Threshold: 5},
	{Key: "on-fire", Icon: "🔥", Title: "On Fire!", Description: "3-day completion streak", Metric: MetricStreak, Threshold: 3},
	{Key: "summer-champion", Icon: "🏆", Title: "Summer Champion", Description: "Complete 10 activities", Metric: MetricCompleted, Threshold: 10},
}

// Achievements evaluates defs against s, keeping their order. With no defs
// the DefaultAchievements are used.
func Achievements(s Summary, defs ...Achievement) []AchievementStatus {
	if len(defs) == 0 {
		defs = DefaultAchievements
	}
	out := make([]AchievementStatus, len(defs))
	for i, def := range defs {
		current := def.Metric.Value(s)
		out[i] = AchievementStatus{
			Achievement: def,
			Achieved:    current >= def.Threshold,
			Current:     current,
		}
	}
	return out
}
