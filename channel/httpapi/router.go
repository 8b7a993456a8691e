package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	honeypot "github.com/decoynet/honeypot-agent-go"
)

// TurnProcessor is what the handler needs from the engine.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, conversationID, message string) (*honeypot.TurnResult, error)
}

// HealthFunc reports the service status and the session store state
// ("primary" or "fallback").
type HealthFunc func(ctx context.Context) (status, storeState string)

// Handler serves the honeypot HTTP API.
type Handler struct {
	proc   TurnProcessor
	health HealthFunc
	logger *zap.Logger
}

// NewHandler creates the handler. health may be nil.
func NewHandler(proc TurnProcessor, health HealthFunc, logger *zap.Logger) *Handler {
	return &Handler{proc: proc, health: health, logger: logger}
}

// NewRouter builds the gin engine with auth, logging and routes.
func NewRouter(h *Handler, apiKeys []string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	router.GET("/health", h.Health)

	api := router.Group("/honeypot", APIKeyAuth(apiKeys, logger))
	api.POST("/message", h.Message)

	return router
}

// Message handles POST /honeypot/message.
func (h *Handler) Message(c *gin.Context) {
	var req honeypot.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id and message are required"})
		return
	}

	result, err := h.proc.ProcessTurn(c.Request.Context(), req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, honeypot.ErrStoreUnavailable) {
			h.logger.Error("Session store unavailable", zap.String("conversation_id", req.ConversationID), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		}
		h.logger.Error("Turn processing failed", zap.String("conversation_id", req.ConversationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, result.Response())
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	status, storeState := "healthy", "unknown"
	if h.health != nil {
		status, storeState = h.health(c.Request.Context())
	}
	// Degraded still serves traffic, so /health always answers 200.
	c.JSON(http.StatusOK, gin.H{"status": status, "session_store": storeState})
}
