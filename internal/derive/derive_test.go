package derive

import (
	"testing"
	"time"

	"taskhive/internal/model"
)

var berlin = mustLoad("Europe/Berlin")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, 2*3600)
	}
	return loc
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.June, day, hour, minute, 0, 0, berlin)
}

func completions(times ...time.Time) []model.HabitCompletion {
	out := make([]model.HabitCompletion, len(times))
	for i, ts := range times {
		out[i] = model.HabitCompletion{ID: model.NewID(), HabitID: "h1", CompletedAt: ts}
	}
	return out
}

func TestStreak(t *testing.T) {
	now := at(15, 12, 0)
	tests := []struct {
		name string
		in   []model.HabitCompletion
		want int
	}{
		{name: "none", want: 0},
		{
			name: "gap at day three",
			in:   completions(at(15, 8, 0), at(14, 8, 0), at(13, 8, 0), at(11, 8, 0)),
			want: 3,
		},
		{
			name: "today open, yesterday run still counts",
			in:   completions(at(14, 20, 0), at(13, 7, 0)),
			want: 2,
		},
		{
			name: "last completion two days ago",
			in:   completions(at(13, 9, 0), at(12, 9, 0)),
			want: 0,
		},
		{
			name: "same day counted once",
			in:   completions(at(15, 6, 0), at(15, 22, 0), at(14, 23, 59)),
			want: 2,
		},
		{
			name: "unsorted input",
			in:   completions(at(13, 9, 0), at(15, 9, 0), at(14, 9, 0)),
			want: 3,
		},
		{
			// 23:30 UTC on the 14th is already the 15th in Berlin
			name: "day uses now's location",
			in:   completions(time.Date(2026, time.June, 14, 23, 30, 0, 0, time.UTC)),
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Streak(tt.in, now); got != tt.want {
				t.Fatalf("Streak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCompletionRate(t *testing.T) {
	if got := CompletionRate(nil); got != 0 {
		t.Fatalf("empty rate = %d, want 0", got)
	}
	tasks := []model.Task{
		{Status: model.StatusCompleted},
		{Status: model.StatusPending},
		{Status: model.StatusInProgress},
	}
	if got := CompletionRate(tasks); got != 33 {
		t.Fatalf("rate = %d, want 33", got)
	}
	tasks = append(tasks, model.Task{Status: model.StatusCompleted})
	if got := CompletionRate(tasks); got != 50 {
		t.Fatalf("rate = %d, want 50", got)
	}
}

func TestDueToday(t *testing.T) {
	now := at(15, 9, 0)
	lateToday := at(15, 23, 59)
	earlyTomorrow := at(16, 0, 1)
	yesterday := at(14, 18, 0)
	tasks := []model.Task{
		{ID: "late", DueDate: &lateToday},
		{ID: "tomorrow", DueDate: &earlyTomorrow},
		{ID: "yesterday", DueDate: &yesterday},
		{ID: "undated"},
	}

	got := DueToday(tasks, now)
	if len(got) != 1 || got[0].ID != "late" {
		t.Fatalf("DueToday = %+v", got)
	}

	overdue := Overdue(tasks, now)
	if len(overdue) != 1 || overdue[0].ID != "yesterday" {
		t.Fatalf("Overdue = %+v", overdue)
	}
}

func TestTrendSeries(t *testing.T) {
	now := at(15, 12, 0)
	tasks := []model.Task{
		{CreatedAt: at(15, 8, 0), Status: model.StatusCompleted},
		{CreatedAt: at(15, 9, 0), Status: model.StatusPending},
		{CreatedAt: at(13, 9, 0), Status: model.StatusCompleted},
		{CreatedAt: at(1, 9, 0), Status: model.StatusCompleted},
	}
	series := TrendSeries(tasks, 3, now)
	if len(series) != 3 {
		t.Fatalf("len = %d", len(series))
	}
	if !series[0].Date.Equal(at(13, 0, 0)) || !series[2].Date.Equal(at(15, 0, 0)) {
		t.Fatalf("dates = %v .. %v", series[0].Date, series[2].Date)
	}
	want := []TrendPoint{{Completed: 1, Total: 1}, {}, {Completed: 1, Total: 2}}
	for i, p := range series {
		if p.Completed != want[i].Completed || p.Total != want[i].Total {
			t.Fatalf("point %d = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestHeatmap(t *testing.T) {
	now := at(17, 12, 0) // Wednesday
	grid := Heatmap(completions(at(17, 7, 0), at(14, 7, 0)), 12, now)
	if len(grid) != 12 {
		t.Fatalf("weeks = %d", len(grid))
	}
	for _, week := range grid {
		if week[0].Date.Weekday() != time.Sunday {
			t.Fatalf("week starts on %s", week[0].Date.Weekday())
		}
	}
	last := grid[11]
	if !last[0].Date.Equal(at(14, 0, 0)) {
		t.Fatalf("last week starts %v", last[0].Date)
	}
	if !last[0].Completed || !last[3].Completed || last[1].Completed {
		t.Fatalf("last week = %+v", last)
	}
}

func TestSummarize(t *testing.T) {
	now := at(15, 12, 0)
	due := at(10, 9, 0)
	tasks := []model.Task{
		{Status: model.StatusCompleted},
		{Status: model.StatusPending, DueDate: &due},
		{Status: model.StatusInProgress},
	}
	habits := []model.Habit{{ID: "h1"}, {ID: "h2"}}
	cs := completions(at(15, 8, 0), at(14, 8, 0))

	s := Summarize(tasks, habits, cs, 7, now)
	if s.Tasks.Completed != 1 || s.Tasks.Pending != 1 || s.Tasks.InProgress != 1 || s.Tasks.Overdue != 1 {
		t.Fatalf("task stats = %+v", s.Tasks)
	}
	if s.Habits.LongestStreak != 2 || s.Habits.TotalCompletions != 2 {
		t.Fatalf("habit stats = %+v", s.Habits)
	}
	// 2 habit-days out of 14
	if s.Habits.Consistency != 14 {
		t.Fatalf("consistency = %d, want 14", s.Habits.Consistency)
	}
}
