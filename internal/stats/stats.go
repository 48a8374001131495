// Package stats derives progress figures from an activity snapshot.
// Every function is pure and leaves its input untouched.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bucket-list/internal/model"
)

// Mode selects which activities Filter keeps.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeCompleted Mode = "completed"
	ModePending   Mode = "pending"
)

// ParseMode accepts all, completed or pending (case-insensitive).
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeAll, ModeCompleted, ModePending:
		return m, nil
	case "":
		return ModeAll, nil
	default:
		return "", fmt.Errorf("unknown filter %q", raw)
	}
}

// Filter returns the activities matching mode, in input order.
func Filter(items []model.Activity, mode Mode) []model.Activity {
	out := make([]model.Activity, 0, len(items))
	for _, a := range items {
		switch mode {
		case ModeCompleted:
			if !a.Completed {
				continue
			}
		case ModePending:
			if a.Completed {
				continue
			}
		}
		out = append(out, a.Clone())
	}
	return out
}

// SortForDisplay orders activities newest first; ties keep input order.
func SortForDisplay(items []model.Activity) []model.Activity {
	out := model.CloneAll(items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Progress is the completed share of a collection.
type Progress struct {
	Completed  int     `json:"completedCount"`
	Total      int     `json:"totalCount"`
	Percentage float64 `json:"percentage"`
}

func ComputeProgress(items []model.Activity) Progress {
	p := Progress{Total: len(items)}
	for _, a := range items {
		if a.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percentage = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}

// CategoryCount tallies one category.
type CategoryCount struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// ByCategory counts activities per category. Categories without activities
// are absent from the result.
func ByCategory(items []model.Activity) map[model.Category]CategoryCount {
	out := make(map[model.Category]CategoryCount)
	for _, a := range items {
		cat := a.Category
		if !cat.Valid() {
			cat = model.CategoryOther
		}
		c := out[cat]
		c.Total++
		if a.Completed {
			c.Completed++
		}
		out[cat] = c
	}
	return out
}

// CompletionStreak is CompletionStreakIn using the local time zone.
func CompletionStreak(items []model.Activity) int {
	return CompletionStreakIn(items, time.Local)
}

// CompletionStreakIn returns the longest run of consecutive calendar days in
// loc with at least one completion. Several completions on one day count once.
func CompletionStreakIn(items []model.Activity, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}

	days := make([]time.Time, 0, len(items))
	for _, a := range items {
		if !a.Completed || a.CompletedAt == nil {
			continue
		}
		days = append(days, calendarDay(*a.CompletedAt, loc))
	}
	if len(days) == 0 {
		return 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		switch gap := daysBetween(days[i-1], days[i]); {
		case gap == 0:
		case gap == 1:
			run++
		default:
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// calendarDay maps t to midnight UTC of its date in loc, so day arithmetic
// is free of DST shifts.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// Memories returns completed activities carrying a photo, newest first.
func Memories(items []model.Activity) []model.Activity {
	out := make([]model.Activity, 0)
	for _, a := range items {
		if a.Completed && a.HasPhoto() {
			out = append(out, a)
		}
	}
	return SortForDisplay(out)
}
