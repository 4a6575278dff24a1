package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskhive/internal/derive"
	"taskhive/internal/model"
)

// Client calls the suggestion functions. Failures are returned as-is and
// never retried.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient targets the functions server at baseURL. token is sent as a
// bearer token when set.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// TaskSuggestions asks for tasks that complement the existing ones.
func (c *Client) TaskSuggestions(ctx context.Context, userContext string, existing []model.Task) ([]TaskSuggestion, error) {
	var resp struct {
		Suggestions []TaskSuggestion `json:"suggestions"`
	}
	req := TaskSuggestionRequest{Context: userContext, ExistingTasks: taskItems(existing)}
	if err := c.invoke(ctx, FuncTaskSuggestions, req, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

// HabitRecommendations asks for habits given goals, the current habits and
// how often each was completed.
func (c *Client) HabitRecommendations(ctx context.Context, goals string, existing []model.Habit, completions []model.HabitCompletion) ([]HabitRecommendation, error) {
	names := make(map[string]string, len(existing))
	for _, h := range existing {
		names[h.ID] = h.Name
	}
	counts := make(map[string]int, len(existing))
	for _, c := range completions {
		if name, ok := names[c.HabitID]; ok {
			counts[name]++
		}
	}

	var resp struct {
		Recommendations []HabitRecommendation `json:"recommendations"`
	}
	req := HabitRecommendationRequest{Goals: goals, ExistingHabits: habitItems(existing), CompletionData: counts}
	if err := c.invoke(ctx, FuncHabitRecommendations, req, &resp); err != nil {
		return nil, err
	}
	return resp.Recommendations, nil
}

// ProductivityInsights analyses a stats summary.
func (c *Client) ProductivityInsights(ctx context.Context, summary derive.Summary) (Insights, error) {
	var insights Insights
	req := InsightsRequest{
		Tasks:     summary.Tasks,
		Habits:    summary.Habits,
		Timeframe: fmt.Sprintf("%d days", summary.Days),
	}
	err := c.invoke(ctx, FuncProductivityInsights, req, &insights)
	return insights, err
}

func (c *Client) invoke(ctx context.Context, name string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/v1/"+name, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read %s response: %w", name, err)
	}

	if err := statusError(resp.StatusCode, respBody); err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

// statusError maps a non-2xx status to ErrRateLimited, ErrPaymentRequired
// or a *StatusError.
func statusError(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	var payload struct {
		Error string `json:"error"`
	}
	msg := string(body)
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	switch code {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrPaymentRequired, msg)
	default:
		return &StatusError{Code: code, Body: msg}
	}
}
