package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/repository"
	"simple-gpt/internal/service"
)

// ConversationHandler mantiene dependencias para endpoints de conversaciones.
type ConversationHandler struct {
	logger    *zap.Logger
	gateway   *service.ConversationGateway
	retention *service.RetentionService
}

// NewConversationHandler crea una instancia con las dependencias necesarias.
func NewConversationHandler(logger *zap.Logger, gateway *service.ConversationGateway, retention *service.RetentionService) *ConversationHandler {
	return &ConversationHandler{
		logger:    logger,
		gateway:   gateway,
		retention: retention,
	}
}

type messagePayload struct {
	ID      string `json:"id"`
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// List maneja GET /conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok || !identity.IsSignedIn() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conversations, err := h.gateway.List(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("list conversations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch conversations"})
		return
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}

	// Poda de retención fuera del request, como el análisis asíncrono.
	if h.retention != nil {
		go func(ownerID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := h.retention.PruneOwner(ctx, ownerID); err != nil {
				h.logger.Warn("retention prune failed", zap.Error(err), zap.String("user_id", ownerID))
			}
		}(identity.UserID)
	}

	c.JSON(http.StatusOK, conversations)
}

// Create maneja POST /conversations.
func (h *ConversationHandler) Create(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok || !identity.IsSignedIn() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Title    string           `json:"title"`
		Messages []messagePayload `json:"messages" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create conversation request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	messages, err := toDomainMessages(req.Messages)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message role"})
		return
	}

	conv, err := h.gateway.CreateWithMessages(c.Request.Context(), identity.UserID, req.Title, messages)
	if err != nil {
		if errors.Is(err, service.ErrGatewayInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		h.logger.Error("create conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// Get maneja GET /conversations/:id.
func (h *ConversationHandler) Get(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok || !identity.IsSignedIn() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conv, err := h.gateway.Get(c.Request.Context(), c.Param("id"), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Error("get conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch conversation"})
		return
	}
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}

	c.JSON(http.StatusOK, conv)
}

// Update maneja PATCH /conversations/:id: título nuevo, mensajes a anexar,
// o ambos. El anexado es idempotente respecto de mensajes ya persistidos.
func (h *ConversationHandler) Update(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok || !identity.IsSignedIn() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Title    string           `json:"title"`
		Messages []messagePayload `json:"messages" binding:"omitempty,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update conversation request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Title == "" && len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	id := c.Param("id")

	if req.Title != "" {
		if err := h.gateway.Rename(c.Request.Context(), id, identity.UserID, req.Title); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
				return
			}
			h.logger.Error("rename conversation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update conversation"})
			return
		}
	}

	if len(req.Messages) > 0 {
		messages, err := toDomainMessages(req.Messages)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message role"})
			return
		}
		if _, err := h.gateway.Append(c.Request.Context(), id, identity.UserID, messages); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
				return
			}
			h.logger.Error("append messages failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save messages"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete maneja DELETE /conversations/:id.
func (h *ConversationHandler) Delete(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok || !identity.IsSignedIn() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.gateway.Delete(c.Request.Context(), c.Param("id"), identity.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Error("delete conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func toDomainMessages(payload []messagePayload) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(payload))
	for _, p := range payload {
		role := domain.Role(p.Role)
		if !role.Valid() {
			return nil, service.ErrGatewayInvalidInput
		}
		messages = append(messages, domain.Message{
			ID:      p.ID,
			Role:    role,
			Content: p.Content,
		})
	}
	return messages, nil
}
