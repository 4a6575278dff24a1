package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"taskhive/internal/ai"
	"taskhive/internal/service"
	"taskhive/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	err     error
	lastReq ai.TaskSuggestionRequest
}

func (g *fakeGenerator) TaskSuggestions(_ context.Context, req ai.TaskSuggestionRequest) ([]ai.TaskSuggestion, error) {
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	return []ai.TaskSuggestion{{Title: "Write tests", Priority: "high"}}, nil
}

func (g *fakeGenerator) HabitRecommendations(context.Context, ai.HabitRecommendationRequest) ([]ai.HabitRecommendation, error) {
	return nil, g.err
}

func (g *fakeGenerator) ProductivityInsights(context.Context, ai.InsightsRequest) (ai.Insights, error) {
	return ai.Insights{Summary: "fine"}, g.err
}

type fakeSweeper struct {
	results []service.SweepResult
	err     error
}

func (s fakeSweeper) Sweep(context.Context, time.Time) ([]service.SweepResult, error) {
	return s.results, s.err
}

func post(t *testing.T, h http.Handler, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestTaskSuggestions(t *testing.T) {
	gen := &fakeGenerator{}
	srv := NewServer(":0", gen, fakeSweeper{}, nil)

	w := post(t, srv.Handler(), "/functions/v1/ai-task-suggestions", `{"userContext":"exam prep","existingTasks":[{"title":"read ch. 1"}]}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Suggestions []ai.TaskSuggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Suggestions) != 1 || gen.lastReq.Context != "exam prep" || len(gen.lastReq.ExistingTasks) != 1 {
		t.Fatalf("resp = %+v, req = %+v", resp, gen.lastReq)
	}
}

func TestAIErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "rate limited", err: ai.ErrRateLimited, want: http.StatusTooManyRequests},
		{name: "payment", err: ai.ErrPaymentRequired, want: http.StatusPaymentRequired},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", &fakeGenerator{err: tt.err}, fakeSweeper{}, nil)
			w := post(t, srv.Handler(), "/functions/v1/ai-productivity-insights", `{"timeframe":"7 days"}`, "")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSendTaskReminder(t *testing.T) {
	sweeper := fakeSweeper{results: []service.SweepResult{
		{TaskID: "t1", Status: service.SweepSent},
		{TaskID: "t2", Status: service.SweepSkipped},
	}}
	srv := NewServer(":0", &fakeGenerator{}, sweeper, nil)

	w := post(t, srv.Handler(), "/functions/v1/send-task-reminder", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Success   bool                  `json:"success"`
		Processed int                   `json:"processed"`
		Results   []service.SweepResult `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Processed != 2 || resp.Results[1].Status != service.SweepSkipped {
		t.Fatalf("resp = %+v", resp)
	}

	failing := NewServer(":0", &fakeGenerator{}, fakeSweeper{err: errors.New("db down")}, nil)
	if w := post(t, failing.Handler(), "/functions/v1/send-task-reminder", "", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAuthentication(t *testing.T) {
	tokens := session.NewTokenProvider("secret")
	good, err := tokens.Issue(session.Identity{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	srv := NewServer(":0", &fakeGenerator{}, fakeSweeper{}, tokens)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "garbage", token: "nope", want: http.StatusUnauthorized},
		{name: "valid", token: good, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, srv.Handler(), "/functions/v1/ai-task-suggestions", `{}`, tt.token)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSendTaskReminderNeedsServiceToken(t *testing.T) {
	tokens := session.NewTokenProvider("secret")
	user, err := tokens.Issue(session.Identity{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue user token: %v", err)
	}
	svc, err := tokens.Issue(session.Identity{UserID: session.ServiceUserID}, time.Hour)
	if err != nil {
		t.Fatalf("issue service token: %v", err)
	}
	srv := NewServer(":0", &fakeGenerator{}, fakeSweeper{}, tokens)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "user", token: user, want: http.StatusForbidden},
		{name: "service", token: svc, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, srv.Handler(), "/functions/v1/send-task-reminder", "", tt.token)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
