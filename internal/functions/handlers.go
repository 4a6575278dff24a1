package functions

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskhive/internal/ai"
	"taskhive/internal/session"
)

const userIDKey = "userId"

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.tokens == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is missing"})
			return
		}
		sess, err := s.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is expired or invalid"})
			return
		}
		c.Set(userIDKey, sess.Identity.UserID)
		c.Next()
	}
}

// requireService admits only service tokens. Without a verifier every
// request passes, as in authenticate.
func (s *Server) requireService() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.tokens == nil {
			c.Next()
			return
		}
		if c.GetString(userIDKey) != session.ServiceUserID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Service token required"})
			return
		}
		c.Next()
	}
}

func (s *Server) taskSuggestions(c *gin.Context) {
	var req ai.TaskSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	suggestions, err := s.ai.TaskSuggestions(c.Request.Context(), req)
	if err != nil {
		s.aiError(c, ai.FuncTaskSuggestions, "Failed to generate task suggestions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (s *Server) habitRecommendations(c *gin.Context) {
	var req ai.HabitRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	recs, err := s.ai.HabitRecommendations(c.Request.Context(), req)
	if err != nil {
		s.aiError(c, ai.FuncHabitRecommendations, "Failed to generate habit recommendations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

func (s *Server) productivityInsights(c *gin.Context) {
	var req ai.InsightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	insights, err := s.ai.ProductivityInsights(c.Request.Context(), req)
	if err != nil {
		s.aiError(c, ai.FuncProductivityInsights, "Failed to generate insights", err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

// aiError passes rate limiting and exhausted credits through with their own
// status codes. Everything else is a 500.
func (s *Server) aiError(c *gin.Context, fn, fallback string, err error) {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again later."})
	case errors.Is(err, ai.ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment required. Please add credits to your workspace."})
	default:
		log.Printf("%s: %v", fn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func (s *Server) sendTaskReminder(c *gin.Context) {
	results, err := s.sweeper.Sweep(c.Request.Context(), s.now())
	if err != nil {
		log.Printf("send-task-reminder: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": len(results),
		"results":   results,
	})
}
