package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/toefl-tutor-core/server/internal/agent/graph"
	"github.com/toefl-tutor-core/server/internal/agent/graph/conversations"
	"github.com/toefl-tutor-core/server/internal/agent/model"
	errx "github.com/toefl-tutor-core/server/internal/core/error"
	"github.com/toefl-tutor-core/server/internal/knowledge"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
)

// Server is the HTTP boundary around the agent graph. It invokes the graph
// exactly once per interaction request and never exposes traversal
// internals in responses.
type Server struct {
	runner   graph.Runner
	sessions *conversations.MessagesManager
	store    knowledge.Store
}

func New(runner graph.Runner, sessions *conversations.MessagesManager, store knowledge.Store) *Server {
	return &Server{runner: runner, sessions: sessions, store: store}
}

type interactRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

type interactResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	v1 := r.Group("/v1")
	{
		v1.POST("/interact", s.handleInteract)
		v1.DELETE("/sessions/:id", s.handleClearSession)
	}
	return r
}

func (s *Server) handleInteract(c *gin.Context) {
	var req interactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	reply, err := s.runner.Invoke(c.Request.Context(), model.QueryInput{
		SessionID: sessionID,
		Query:     req.Message,
	})
	if err != nil {
		status := errx.StatusOf(err)
		logx.Error().Err(err).Str("session_id", sessionID).Int("status", status).Msg("Traversal failed")
		c.JSON(status, gin.H{"error": publicMessage(status)})
		return
	}

	c.JSON(http.StatusOK, interactResponse{SessionID: sessionID, Reply: reply})
}

func (s *Server) handleClearSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := s.sessions.ClearSession(c.Request.Context(), sessionID); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Failed to clear session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": errx.SystemErrorMessage})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHealth(c *gin.Context) {
	entries := s.store.Len()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"store_ready":   entries > 0,
		"store_entries": entries,
	})
}

// publicMessage keeps error bodies generic; node state and stack information
// stay in the logs.
func publicMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusServiceUnavailable:
		return "knowledge base not ready"
	default:
		return errx.SystemErrorMessage
	}
}
