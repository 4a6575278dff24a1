// Package derive computes read-only aggregates over store snapshots. Every
// calendar-day comparison uses the location of the supplied now.
package derive

import (
	"math"
	"sort"
	"time"

	"taskhive/internal/model"
)

// Day truncates t to local midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Streak counts consecutive calendar days with at least one completion.
// A day without a completion today does not end the streak until the day is
// over: the walk starts at today when today is completed, otherwise at
// yesterday. With neither the streak is 0.
func Streak(completions []model.HabitCompletion, now time.Time) int {
	loc := now.Location()
	days := make(map[time.Time]struct{}, len(completions))
	for _, c := range completions {
		days[Day(c.CompletedAt, loc)] = struct{}{}
	}

	today := Day(now, loc)
	anchor := today
	if _, ok := days[today]; !ok {
		anchor = today.AddDate(0, 0, -1)
		if _, ok := days[anchor]; !ok {
			return 0
		}
	}

	streak := 0
	for day := anchor; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day]; !ok {
			return streak
		}
		streak++
	}
}

// CompletedOn reports whether any completion falls on the calendar day of
// day.
func CompletedOn(completions []model.HabitCompletion, day time.Time) bool {
	target := Day(day, day.Location())
	for _, c := range completions {
		if Day(c.CompletedAt, day.Location()).Equal(target) {
			return true
		}
	}
	return false
}

// CompletionRate is the percentage of completed tasks, rounded to the
// nearest integer. An empty collection yields 0.
func CompletionRate(tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Completed() {
			completed++
		}
	}
	return percent(completed, len(tasks))
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

// IsDueToday reports whether the task's due date falls on today's calendar
// day.
func IsDueToday(t model.Task, now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return Day(*t.DueDate, now.Location()).Equal(Day(now, now.Location()))
}

// DueToday keeps the tasks due today, preserving order.
func DueToday(tasks []model.Task, now time.Time) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if IsDueToday(t, now) {
			out = append(out, t)
		}
	}
	return out
}

// Overdue keeps open tasks whose due day is before today, oldest due first.
func Overdue(tasks []model.Task, now time.Time) []model.Task {
	today := Day(now, now.Location())
	var out []model.Task
	for _, t := range tasks {
		if t.DueDate == nil || t.Completed() {
			continue
		}
		if Day(*t.DueDate, now.Location()).Before(today) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out
}

// TrendPoint is one day of the trend series.
type TrendPoint struct {
	Date      time.Time `json:"date"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
}

// TrendSeries buckets tasks by creation day over the last days calendar days,
// oldest first. Total counts tasks created that day, Completed the subset now
// completed.
func TrendSeries(tasks []model.Task, days int, now time.Time) []TrendPoint {
	if days <= 0 {
		return nil
	}
	loc := now.Location()
	today := Day(now, loc)
	points := make([]TrendPoint, days)
	index := make(map[time.Time]int, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i-days+1)
		points[i].Date = day
		index[day] = i
	}
	for _, t := range tasks {
		i, ok := index[Day(t.CreatedAt, loc)]
		if !ok {
			continue
		}
		points[i].Total++
		if t.Completed() {
			points[i].Completed++
		}
	}
	return points
}

// HeatCell is one day of the activity heatmap.
type HeatCell struct {
	Date      time.Time
	Completed bool
}

// Heatmap lays out weeks full weeks of activity ending with the current week.
// Rows are weeks, oldest first; each row starts on Sunday.
func Heatmap(completions []model.HabitCompletion, weeks int, now time.Time) [][]HeatCell {
	if weeks <= 0 {
		return nil
	}
	loc := now.Location()
	done := make(map[time.Time]struct{}, len(completions))
	for _, c := range completions {
		done[Day(c.CompletedAt, loc)] = struct{}{}
	}

	today := Day(now, loc)
	start := today.AddDate(0, 0, -int(today.Weekday())-7*(weeks-1))
	grid := make([][]HeatCell, weeks)
	for w := range grid {
		grid[w] = make([]HeatCell, 7)
		for d := range grid[w] {
			day := start.AddDate(0, 0, w*7+d)
			_, ok := done[day]
			grid[w][d] = HeatCell{Date: day, Completed: ok}
		}
	}
	return grid
}
