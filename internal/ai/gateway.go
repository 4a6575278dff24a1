package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"
)

const (
	DefaultGatewayURL = "https://ai.gateway.lovable.dev/v1/chat/completions"
	DefaultModel      = "google/gemini-2.5-flash"
)

var ErrNoToolCall = errors.New("no tool call in gateway response")

// Gateway calls an OpenAI-compatible chat-completions endpoint with a forced
// tool call and decodes the tool arguments.
type Gateway struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewGateway(url, apiKey, model string) *Gateway {
	if url == "" {
		url = DefaultGatewayURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gateway{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice toolChoice    `json:"tool_choice"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

const taskSystemPrompt = `You are a productivity assistant helping users manage their tasks effectively.
Based on the user's context and existing tasks, suggest 3-5 actionable tasks that would help them achieve their goals.
Consider task priorities, deadlines, and workload balance. Return suggestions in a structured format.`

const habitSystemPrompt = `You are a habit formation coach helping users build positive routines.
Analyze their goals, existing habits, and completion patterns to recommend new habits that complement their lifestyle.
Focus on achievable, sustainable habits with clear benefits.`

const insightsSystemPrompt = `You are an AI productivity analyst. Analyze user data to provide actionable insights.
Identify patterns, trends, strengths, and areas for improvement. Be specific and encouraging.`

// TaskSuggestions returns the decoded {suggestions} arguments.
func (g *Gateway) TaskSuggestions(ctx context.Context, req TaskSuggestionRequest) ([]TaskSuggestion, error) {
	userContext := req.Context
	if userContext == "" {
		userContext = "General productivity"
	}
	prompt := fmt.Sprintf("User context: %s\nExisting tasks: %s\n\nGenerate 3-5 smart task suggestions that complement their current workload.",
		userContext, compact(req.ExistingTasks))

	fn := toolFunction{
		Name:        "suggest_tasks",
		Description: "Return 3-5 actionable task suggestions.",
		Parameters: arrayOf("suggestions", map[string]any{
			"title":       str(),
			"description": str(),
			"priority":    enum("low", "medium", "high"),
			"category":    str(),
		}),
	}
	var out struct {
		Suggestions []TaskSuggestion `json:"suggestions"`
	}
	if err := g.call(ctx, taskSystemPrompt, prompt, fn, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// HabitRecommendations returns the decoded {recommendations} arguments.
func (g *Gateway) HabitRecommendations(ctx context.Context, req HabitRecommendationRequest) ([]HabitRecommendation, error) {
	goals := req.Goals
	if goals == "" {
		goals = "Improve productivity and wellness"
	}
	prompt := fmt.Sprintf("User goals: %s\nExisting habits: %s\nCompletion patterns: %s\n\nRecommend 3-5 habits that would help them achieve their goals.",
		goals, compact(req.ExistingHabits), compact(req.CompletionData))

	fn := toolFunction{
		Name:        "recommend_habits",
		Description: "Return 3-5 personalized habit recommendations.",
		Parameters: arrayOf("recommendations", map[string]any{
			"name":        str(),
			"description": str(),
			"frequency":   enum("daily", "weekly", "monthly"),
			"category":    str(),
			"benefit":     str(),
		}),
	}
	var out struct {
		Recommendations []HabitRecommendation `json:"recommendations"`
	}
	if err := g.call(ctx, habitSystemPrompt, prompt, fn, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// ProductivityInsights returns the decoded insights arguments.
func (g *Gateway) ProductivityInsights(ctx context.Context, req InsightsRequest) (Insights, error) {
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = "7 days"
	}
	prompt := fmt.Sprintf(`Analyze this productivity data from the last %s:

Tasks completed: %d
Tasks pending: %d
Task completion rate: %d%%

Habit streak: %d days
Habit consistency: %d%%
Total habit completions: %d

Provide insights and actionable recommendations.`,
		timeframe, req.Tasks.Completed, req.Tasks.Pending, req.Tasks.CompletionRate,
		req.Habits.LongestStreak, req.Habits.Consistency, req.Habits.TotalCompletions)

	list := map[string]any{"type": "array", "items": str()}
	fn := toolFunction{
		Name:        "generate_insights",
		Description: "Generate productivity insights and recommendations.",
		Parameters: object(map[string]any{
			"summary":         str(),
			"strengths":       list,
			"improvements":    list,
			"recommendations": list,
		}),
	}
	var out Insights
	err := g.call(ctx, insightsSystemPrompt, prompt, fn, &out)
	return out, err
}

func (g *Gateway) call(ctx context.Context, system, user string, fn toolFunction, out any) error {
	if g.apiKey == "" {
		return fmt.Errorf("AI_GATEWAY_KEY is not configured")
	}

	req := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Tools: []tool{{Type: "function", Function: fn}},
	}
	req.ToolChoice.Type = "function"
	req.ToolChoice.Function.Name = fn.Name

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[warn] ai gateway %s: status %d: %s", fn.Name, resp.StatusCode, respBody)
		return statusError(resp.StatusCode, respBody)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	if len(chat.Choices) == 0 || len(chat.Choices[0].Message.ToolCalls) == 0 {
		return ErrNoToolCall
	}
	args := chat.Choices[0].Message.ToolCalls[0].Function.Arguments
	if args == "" {
		return ErrNoToolCall
	}
	if err := json.Unmarshal([]byte(args), out); err != nil {
		return fmt.Errorf("decode %s arguments: %w", fn.Name, err)
	}
	return nil
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "[]"
	}
	return string(b)
}

func str() map[string]any { return map[string]any{"type": "string"} }

func enum(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func arrayOf(key string, item map[string]any) map[string]any {
	return object(map[string]any{
		key: map[string]any{"type": "array", "items": object(item)},
	})
}
