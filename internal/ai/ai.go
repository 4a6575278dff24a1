// Package ai talks to the suggestion functions and, on the server side, to
// the chat-completions gateway behind them.
package ai

import (
	"errors"
	"fmt"
	"strings"

	"taskhive/internal/derive"
	"taskhive/internal/model"
)

var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrPaymentRequired = errors.New("payment required")
)

// StatusError is any other non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("ai function failed (%d): %s", e.Code, body)
}

// Function names as routed under /functions/v1/.
const (
	FuncTaskSuggestions      = "ai-task-suggestions"
	FuncHabitRecommendations = "ai-habit-recommendations"
	FuncProductivityInsights = "ai-productivity-insights"
)

type TaskSuggestion struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    model.Priority `json:"priority"`
	Category    string         `json:"category"`
}

// Draft turns an accepted suggestion into a task draft.
func (s TaskSuggestion) Draft() model.TaskDraft {
	d := model.TaskDraft{
		Title:       strings.TrimSpace(s.Title),
		Description: s.Description,
		Priority:    s.Priority,
		Category:    s.Category,
	}
	switch d.Priority {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
	default:
		d.Priority = model.PriorityMedium
	}
	return d
}

type HabitRecommendation struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Frequency   model.Frequency `json:"frequency"`
	Category    string          `json:"category"`
	Benefit     string          `json:"benefit"`
}

func (r HabitRecommendation) Draft() model.HabitDraft {
	d := model.HabitDraft{
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Frequency:   r.Frequency,
		Category:    r.Category,
	}
	switch d.Frequency {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly:
	default:
		d.Frequency = model.FrequencyDaily
	}
	return d
}

type Insights struct {
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`
}

// TaskItem is the reduced view of an existing task sent for context.
type TaskItem struct {
	Title    string           `json:"title"`
	Status   model.TaskStatus `json:"status"`
	Priority model.Priority   `json:"priority"`
	Category string           `json:"category,omitempty"`
}

type HabitItem struct {
	Name      string          `json:"name"`
	Frequency model.Frequency `json:"frequency"`
	Category  string          `json:"category,omitempty"`
}

type TaskSuggestionRequest struct {
	Context       string     `json:"userContext"`
	ExistingTasks []TaskItem `json:"existingTasks"`
}

type HabitRecommendationRequest struct {
	Goals          string         `json:"userGoals"`
	ExistingHabits []HabitItem    `json:"existingHabits"`
	CompletionData map[string]int `json:"completionData"`
}

type InsightsRequest struct {
	Tasks     derive.TaskStats  `json:"tasksData"`
	Habits    derive.HabitStats `json:"habitsData"`
	Timeframe string            `json:"timeframe"`
}

func taskItems(tasks []model.Task) []TaskItem {
	items := make([]TaskItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, TaskItem{Title: t.Title, Status: t.Status, Priority: t.Priority, Category: t.Category})
	}
	return items
}

func habitItems(habits []model.Habit) []HabitItem {
	items := make([]HabitItem, 0, len(habits))
	for _, h := range habits {
		items = append(items, HabitItem{Name: h.Name, Frequency: h.Frequency, Category: h.Category})
	}
	return items
}
