package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/llm"
	"simple-gpt/internal/service"
)

// ChatHandler mantiene dependencias para el endpoint de chat.
type ChatHandler struct {
	logger  *zap.Logger
	client  llm.Client
	tracker *service.UsageTracker
}

// NewChatHandler crea una instancia con las dependencias necesarias.
func NewChatHandler(logger *zap.Logger, client llm.Client, tracker *service.UsageTracker) *ChatHandler {
	return &ChatHandler{
		logger:  logger,
		client:  client,
		tracker: tracker,
	}
}

// Chat maneja POST /chat. Acepta usuarios autenticados y anónimos; los
// anónimos gastan su prueba única y después deben registrarse.
func (h *ChatHandler) Chat(c *gin.Context) {
	identity, _ := GetIdentity(c)

	var req struct {
		Messages []messagePayload `json:"messages" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid messages"})
		return
	}

	messages, err := toDomainMessages(req.Messages)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message role"})
		return
	}

	status, err := h.tracker.Check(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("usage check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check usage"})
		return
	}
	if status.HasReachedLimit {
		// Cuota agotada es un bloqueo suave, nunca se llama al modelo.
		if !identity.IsSignedIn() {
			c.JSON(http.StatusForbidden, gin.H{"error": "sign-up required"})
			return
		}
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          "daily limit reached",
			"timeUntilReset": status.TimeUntilReset,
		})
		return
	}

	reply, err := h.client.Complete(c.Request.Context(), llm.SystemPrompt, messages)
	if err != nil {
		h.logger.Error("model request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate response"})
		return
	}

	if _, err := h.tracker.Increment(c.Request.Context(), identity); err != nil {
		// El usuario ya tiene su respuesta; el contador se reconcilia en
		// el próximo check.
		h.logger.Warn("usage increment failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"reply": domain.Message{
			Role:    domain.RoleAssistant,
			Content: reply,
		},
	})
}
