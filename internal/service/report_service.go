package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"bucket-list/internal/model"
	"bucket-list/internal/stats"
)

var categoryIcons = map[model.Category]string{
	model.CategoryAdventure: "🏔️",
	model.CategoryBeach:     "🏖️",
	model.CategoryFood:      "🍔",
	model.CategoryTravel:    "✈️",
	model.CategoryFun:       "🎉",
	model.CategoryOther:     "⭐",
}

// ReportService builds human-readable (Telegram HTML) views of a snapshot.
type ReportService struct {
	loc *time.Location
}

func NewReportService(loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{loc: loc}
}

// CategoryIcon returns the emoji shown next to a category.
func CategoryIcon(c model.Category) string {
	if icon, ok := categoryIcons[c]; ok {
		return icon
	}
	return categoryIcons[model.CategoryOther]
}

// Stats renders the progress overview with category breakdown and badges.
func (s *ReportService) Stats(items []model.Activity) string {
	summary := stats.Summarize(items, s.loc)

	var b strings.Builder
	b.WriteString("📊 <b>Your Summer Stats</b>\n\n")
	fmt.Fprintf(&b, "Total: %d · Completed: %d · Pending: %d\n", summary.Total, summary.Completed, summary.Pending)
	fmt.Fprintf(&b, "Progress: %.0f%%\n", summary.CompletionRate*100)
	fmt.Fprintf(&b, "📸 With photos: %d · 📍 With locations: %d\n", summary.WithPhotos, summary.WithLocations)
	fmt.Fprintf(&b, "🔥 Best streak: %d day(s)\n", summary.Streak)

	if len(summary.ByCategory) > 0 {
		b.WriteString("\n<b>By category</b>\n")
		for _, cat := range model.Categories {
			c, ok := summary.ByCategory[cat]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "%s %s: %d/%d\n", CategoryIcon(cat), cat.Label(), c.Completed, c.Total)
		}
	}

	b.WriteString("\n<b>Achievements</b>\n")
	for _, a := range stats.Achievements(summary) {
		mark := "▫️"
		if a.Achieved {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s <b>%s</b> · %s\n", mark, a.Icon, html.EscapeString(a.Title), html.EscapeString(a.Description))
	}

	return strings.TrimSpace(b.String())
}

// List renders the activities matching mode in display order. Numbers are
// positions in the full display order, so they stay valid across filters.
func (s *ReportService) List(items []model.Activity, mode stats.Mode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>Bucket list</b> (%s)\n", mode)
	shown := 0
	for i, a := range stats.SortForDisplay(items) {
		if len(stats.Filter([]model.Activity{a}, mode)) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.line(a))
		shown++
	}
	if shown == 0 {
		b.WriteString("— nothing here yet")
	}
	return strings.TrimSpace(b.String())
}

// Memories renders completed activities with photos.
func (s *ReportService) Memories(items []model.Activity) string {
	memories := stats.Memories(items)
	if len(memories) == 0 {
		return "📸 No memories yet! Complete activities and add photos to see them here."
	}
	var b strings.Builder
	b.WriteString("📸 <b>Summer Memories</b>\n")
	for _, a := range memories {
		fmt.Fprintf(&b, "%s %s · completed on %s\n", CategoryIcon(a.Category), html.EscapeString(a.Text),
			a.CompletedAt.In(s.loc).Format("2006-01-02"))
	}
	return strings.TrimSpace(b.String())
}

// Detail renders every field of one activity.
func (s *ReportService) Detail(a model.Activity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n", CategoryIcon(a.Category), html.EscapeString(a.Text))
	if a.Completed {
		b.WriteString("✅ Completed")
		if a.CompletedAt != nil {
			fmt.Fprintf(&b, " on %s", a.CompletedAt.In(s.loc).Format("2006-01-02"))
		}
		b.WriteByte('\n')
	} else {
		b.WriteString("⏳ Pending\n")
	}
	fmt.Fprintf(&b, "🗓 Added %s\n", a.CreatedAt.In(s.loc).Format("2006-01-02"))
	if a.Location != nil {
		fmt.Fprintf(&b, "📍 %.5f, %.5f\n", a.Location.Latitude, a.Location.Longitude)
	}
	if a.HasPhoto() {
		fmt.Fprintf(&b, "📸 %s\n", html.EscapeString(*a.Photo))
	}
	if notes := strings.TrimSpace(a.Notes); notes != "" {
		fmt.Fprintf(&b, "📝 %s\n", html.EscapeString(notes))
	}
	return strings.TrimSpace(b.String())
}

func (s *ReportService) line(a model.Activity) string {
	mark := "⬜"
	if a.Completed {
		mark = "✅"
	}
	text := html.EscapeString(strings.TrimSpace(a.Text))
	if a.Completed {
		text = "<s>" + text + "</s>"
	}
	return fmt.Sprintf("%s %s %s", mark, CategoryIcon(a.Category), text)
}
