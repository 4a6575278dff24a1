// Package functions serves the HTTP functions: AI suggestions and the
// reminder sweep trigger.
package functions

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskhive/internal/ai"
	"taskhive/internal/service"
	"taskhive/internal/session"
)

type Generator interface {
	TaskSuggestions(ctx context.Context, req ai.TaskSuggestionRequest) ([]ai.TaskSuggestion, error)
	HabitRecommendations(ctx context.Context, req ai.HabitRecommendationRequest) ([]ai.HabitRecommendation, error)
	ProductivityInsights(ctx context.Context, req ai.InsightsRequest) (ai.Insights, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) ([]service.SweepResult, error)
}

type TokenVerifier interface {
	Verify(token string) (*session.Session, error)
}

// Server hosts the functions under /functions/v1.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	ai      Generator
	sweeper Sweeper
	tokens  TokenVerifier
	now     func() time.Time
}

// NewServer builds the router. With a nil verifier requests are not
// authenticated.
func NewServer(addr string, gen Generator, sweeper Sweeper, tokens TokenVerifier) *Server {
	s := &Server{
		ai:      gen,
		sweeper: sweeper,
		tokens:  tokens,
		now:     time.Now,
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}
	router.Use(cors.New(config))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "TaskHive functions are running"})
	})

	v1 := router.Group("/functions/v1", s.authenticate())
	v1.POST("/"+ai.FuncTaskSuggestions, s.taskSuggestions)
	v1.POST("/"+ai.FuncHabitRecommendations, s.habitRecommendations)
	v1.POST("/"+ai.FuncProductivityInsights, s.productivityInsights)
	v1.POST("/send-task-reminder", s.requireService(), s.sendTaskReminder)

	s.router = router
	s.http = &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[info] functions listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
