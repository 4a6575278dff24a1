package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"taskhive/internal/derive"
	"taskhive/internal/model"
)

type TaskLister interface {
	ListVisible(ctx context.Context, userID string) ([]model.Task, error)
}

type HabitLister interface {
	ListByUser(ctx context.Context, userID string) ([]model.Habit, error)
}

type CompletionLister interface {
	ListByUser(ctx context.Context, userID string) ([]model.HabitCompletion, error)
}

// DigestService builds the daily digest message for Telegram.
type DigestService struct {
	tasks       TaskLister
	habits      HabitLister
	completions CompletionLister
}

func NewDigestService(tasks TaskLister, habits HabitLister, completions CompletionLister) *DigestService {
	return &DigestService{tasks: tasks, habits: habits, completions: completions}
}

// DailySummary lists today's and overdue open tasks and the habit streaks of
// userID, formatted as Telegram HTML.
func (s *DigestService) DailySummary(ctx context.Context, userID string, now time.Time) (string, error) {
	tasks, err := s.tasks.ListVisible(ctx, userID)
	if err != nil {
		return "", err
	}
	habits, err := s.habits.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	completions, err := s.completions.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}

	var today []model.Task
	for _, task := range derive.DueToday(tasks, now) {
		if !task.Completed() {
			today = append(today, task)
		}
	}
	sort.SliceStable(today, func(i, j int) bool { return today[i].DueDate.Before(*today[j].DueDate) })
	overdue := derive.Overdue(tasks, now)

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon, 02 Jan 2006")))

	builder.WriteString("🔥 <b>Due today</b>\n")
	if len(today) == 0 {
		builder.WriteString("— nothing due today\n")
	} else {
		for _, task := range today {
			builder.WriteString(FormatTask(task, now))
		}
	}

	if len(overdue) > 0 {
		builder.WriteString("\n⚠️ <b>Overdue</b>\n")
		for _, task := range overdue {
			builder.WriteString(FormatTask(task, now))
		}
	}

	builder.WriteString("\n♻️ <b>Habits</b>\n")
	if len(habits) == 0 {
		builder.WriteString("— no habits yet\n")
	} else {
		byHabit := make(map[string][]model.HabitCompletion, len(habits))
		for _, c := range completions {
			byHabit[c.HabitID] = append(byHabit[c.HabitID], c)
		}
		for _, habit := range habits {
			builder.WriteString(formatHabit(habit, byHabit[habit.ID], now))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatTask renders one task line with its priority, category and due date.
func FormatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.Completed():
		icon = "✅"
	case task.DueDate != nil && now.After(*task.DueDate):
		icon = "⚠️"
	case task.Priority == model.PriorityHigh:
		icon = "🔴"
	case task.DueDate != nil && task.DueDate.Sub(now) <= 48*time.Hour:
		icon = "⏳"
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s", icon, title))

	if category := strings.TrimSpace(task.Category); category != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(category)))
	}

	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if now.After(d) && !task.Completed() {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>overdue</b>", d.Format("2006-01-02 15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s", d.Format("2006-01-02 15:04")))
		}
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatHabit(habit model.Habit, completions []model.HabitCompletion, now time.Time) string {
	mark := "⬜"
	if derive.CompletedOn(completions, now) {
		mark = "✅"
	}
	streak := derive.Streak(completions, now)
	return fmt.Sprintf("%s %s · 🔥 %d\n", mark, html.EscapeString(strings.TrimSpace(habit.Name)), streak)
}
