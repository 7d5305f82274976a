package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"conduit/internal/agent"
	conduiterrors "conduit/internal/errors"
	"conduit/internal/memory"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		},
	})
}

func (s *Server) handleCreateRun(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	in, err := agent.DecodeInput(raw)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RunTimeout)
	defer cancel()
	result, err := s.deps.Runner.Run(ctx, in)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: result})
}

func (s *Server) handleListRuns(c *gin.Context) {
	store, ok := s.store(c)
	if !ok {
		return
	}
	runs, err := store.All(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []memory.Run{}
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: runs})
}

func (s *Server) handleLatestRun(c *gin.Context) {
	store, ok := s.store(c)
	if !ok {
		return
	}
	run, found, err := store.Latest(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: "no runs recorded"})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: run})
}

func (s *Server) handleClearRuns(c *gin.Context) {
	store, ok := s.store(c)
	if !ok {
		return
	}
	if err := store.Clear(c.Request.Context()); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) store(c *gin.Context) (memory.Store, bool) {
	if s.deps.Store == nil {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: "run history is disabled"})
		return nil, false
	}
	return s.deps.Store, true
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, APIResponse{Success: false, Error: err.Error()})
}

// statusFor maps a run abort to an HTTP status.
func statusFor(err error) int {
	switch {
	case conduiterrors.IsGuardrailViolation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case conduiterrors.KindOf(err) == conduiterrors.KindInputValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
