package derive

import (
	"time"

	"taskhive/internal/model"
)

// TaskStats is the task half of the insights payload.
type TaskStats struct {
	Completed      int `json:"completed"`
	Pending        int `json:"pending"`
	InProgress     int `json:"inProgress"`
	Overdue        int `json:"overdue"`
	CompletionRate int `json:"completionRate"`
}

// HabitStats is the habit half of the insights payload.
type HabitStats struct {
	ActiveHabits     int `json:"activeHabits"`
	LongestStreak    int `json:"longestStreak"`
	Consistency      int `json:"consistency"`
	TotalCompletions int `json:"totalCompletions"`
}

// Summary aggregates a workspace snapshot over the last Days days.
type Summary struct {
	Days   int        `json:"days"`
	Tasks  TaskStats  `json:"tasksData"`
	Habits HabitStats `json:"habitsData"`
}

// Summarize builds the stats sent with a productivity insights request.
// Consistency is the share of habit-days in the window with a completion.
func Summarize(tasks []model.Task, habits []model.Habit, completions []model.HabitCompletion, days int, now time.Time) Summary {
	s := Summary{Days: days}

	for _, t := range tasks {
		switch t.Status {
		case model.StatusCompleted:
			s.Tasks.Completed++
		case model.StatusInProgress:
			s.Tasks.InProgress++
		default:
			s.Tasks.Pending++
		}
	}
	s.Tasks.Overdue = len(Overdue(tasks, now))
	s.Tasks.CompletionRate = CompletionRate(tasks)

	byHabit := make(map[string][]model.HabitCompletion, len(habits))
	for _, c := range completions {
		byHabit[c.HabitID] = append(byHabit[c.HabitID], c)
	}

	loc := now.Location()
	since := Day(now, loc).AddDate(0, 0, -days+1)
	hit := 0
	for _, h := range habits {
		cs := byHabit[h.ID]
		if streak := Streak(cs, now); streak > s.Habits.LongestStreak {
			s.Habits.LongestStreak = streak
		}
		seen := make(map[time.Time]struct{})
		for _, c := range cs {
			day := Day(c.CompletedAt, loc)
			if day.Before(since) {
				continue
			}
			seen[day] = struct{}{}
		}
		hit += len(seen)
		s.Habits.TotalCompletions += len(cs)
	}
	s.Habits.ActiveHabits = len(habits)
	if days > 0 {
		s.Habits.Consistency = percent(hit, len(habits)*days)
	}
	return s
}
